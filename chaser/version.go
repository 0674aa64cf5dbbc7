package chaser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoSeparator = errors.New(`missing "." separator`)

// Version is a product version as reported by the license server.
// The server only emits components in the 0-255 range.
type Version struct {
	Major uint8
	Minor uint8
}

// ParseVersion parses a "MAJOR.MINOR" string. The input is split on the
// first dot and both halves must be base-10 unsigned integers that fit in
// 8 bits; out of range values fail instead of being truncated.
func ParseVersion(s string) (Version, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, &VersionParseError{Input: s, Err: errNoSeparator}
	}
	major, err := strconv.ParseUint(majorStr, 10, 8)
	if err != nil {
		return Version{}, &VersionParseError{Input: s, Err: fmt.Errorf("major: %w", err)}
	}
	minor, err := strconv.ParseUint(minorStr, 10, 8)
	if err != nil {
		return Version{}, &VersionParseError{Input: s, Err: fmt.Errorf("minor: %w", err)}
	}
	return Version{Major: uint8(major), Minor: uint8(minor)}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// MarshalJSON encodes the version in its wire form, "MAJOR.MINOR".
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a "MAJOR.MINOR" JSON string.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &VersionParseError{Input: string(data), Err: err}
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
