package chaser

import (
	"os"
	"testing"
)

func TestGenerateFingerprint_NotEmpty(t *testing.T) {
	fp, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// SHA-256 hex = 64 chars
	if len(fp) != 64 {
		t.Errorf("expected 64 char hex string, got %d chars: %s", len(fp), fp)
	}
}

func TestGenerateFingerprint_Deterministic(t *testing.T) {
	fp1, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fp2, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp1 != fp2 {
		t.Errorf("fingerprint should be deterministic: %s != %s", fp1, fp2)
	}
}

func TestGenerateFingerprint_EnvOverride(t *testing.T) {
	t.Setenv(FingerprintEnv, "workstation-07")

	fp, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp != "workstation-07" {
		t.Errorf("expected %q, got %q", "workstation-07", fp)
	}
}

func TestGenerateFingerprint_EmptyEnvIgnored(t *testing.T) {
	t.Setenv(FingerprintEnv, "")
	os.Unsetenv(FingerprintEnv)

	fp, err := GenerateFingerprint()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fp) != 64 {
		t.Errorf("expected generated fingerprint, got %q", fp)
	}
}
