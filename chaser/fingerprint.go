package chaser

import (
	"crypto/sha256"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

// FingerprintEnv overrides the generated machine fingerprint when set.
const FingerprintEnv = "LICENSE_CHASER_FINGERPRINT"

// GenerateFingerprint produces a deterministic machine identifier used to
// key this host in a registry. It combines hostname, MAC addresses, OS,
// architecture, and machine-id (Linux) into a SHA-256 hex string.
func GenerateFingerprint() (string, error) {
	if fp := os.Getenv(FingerprintEnv); fp != "" {
		return fp, nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("get hostname: %w", err)
	}
	parts := []string{hostname}

	// best-effort, containers may have none
	if macs, err := macAddresses(); err == nil {
		parts = append(parts, macs...)
	}

	parts = append(parts, runtime.GOOS, runtime.GOARCH)

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		parts = append(parts, strings.TrimSpace(string(machineID)))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum), nil
}

// macAddresses returns sorted, non-loopback hardware addresses.
func macAddresses() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" {
			macs = append(macs, mac)
		}
	}
	sort.Strings(macs)
	return macs, nil
}
