package chaser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const licensesKey = "licenses"

// ParseResponse decodes a cmd_ls response body.
//
// Unknown keys are ignored. The "licenses" key is required; its absence
// is reported as ErrLicensesMissing. A single record with a malformed
// version fails the whole envelope.
func ParseResponse(data []byte) (*ResponseEnvelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &ResponseParseError{Reason: "malformed response", Err: err}
	}
	if top == nil {
		return nil, &ResponseParseError{Reason: "malformed response", Err: errors.New("body is null")}
	}
	raw, ok := top[licensesKey]
	if !ok {
		return nil, &ResponseParseError{Reason: "incomplete response", Err: ErrLicensesMissing}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &ResponseParseError{Reason: "malformed licenses", Err: fmt.Errorf("expected array, got %.32s", raw)}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &ResponseParseError{Reason: "malformed licenses", Err: err}
	}

	env := &ResponseEnvelope{Licenses: make([]LicenseRecord, 0, len(items))}
	for i, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			return nil, &ResponseParseError{Reason: fmt.Sprintf("license %d", i), Err: err}
		}
		env.Licenses = append(env.Licenses, rec)
	}
	return env, nil
}

// UnmarshalJSON decodes a single license entry, deriving Kind from the
// product_id tag.
func (r *LicenseRecord) UnmarshalJSON(data []byte) error {
	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func decodeRecord(data []byte) (LicenseRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return LicenseRecord{}, fmt.Errorf("decode record: %w", err)
	}
	switch {
	case w.ProductID == nil:
		return LicenseRecord{}, errors.New("missing product_id")
	case w.Version == nil:
		return LicenseRecord{}, errors.New("missing version")
	case w.Available == nil:
		return LicenseRecord{}, errors.New("missing available")
	}
	var version Version
	if err := version.UnmarshalJSON(*w.Version); err != nil {
		return LicenseRecord{}, err
	}
	return LicenseRecord{
		Kind:              ProductKindFromTag(*w.ProductID),
		ProductID:         *w.ProductID,
		Version:           version,
		Available:         *w.Available,
		TotalTokens:       w.TotalTokens,
		ID:                w.ID,
		Platform:          w.Platform,
		Product:           w.Product,
		Expires:           w.Expires,
		IPMask:            w.IPMask,
		IPMatch:           w.IPMatch,
		Servers:           w.Servers,
		Signature:         w.Signature,
		LicenseAccessMode: w.LicenseAccessMode,
	}, nil
}
