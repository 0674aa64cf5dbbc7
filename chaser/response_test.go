package chaser

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleResponse = `{
  "server_version": "20.5.370",
  "licenses": [
    {
      "id": "a1b2c3d4",
      "platform": "*",
      "product": "Houdini Core",
      "product_id": "Houdini-Escape",
      "version": "20.5",
      "available": 3,
      "total_tokens": 10,
      "expires": "01-jan-2030",
      "ip_mask": "+.+.+.+",
      "ipmatch": true,
      "servers": "host-a",
      "signature": "sig-1",
      "license_access_mode": "Full",
      "extra": {"ignored": true}
    },
    {
      "id": "e5f6a7b8",
      "product_id": "Houdini-Master",
      "version": "20.0",
      "available": -1,
      "total_tokens": 4
    },
    {
      "id": "c9d0e1f2",
      "product_id": "Houdini-Indie",
      "version": "19.5",
      "available": 1,
      "total_tokens": 1
    }
  ]
}`

func TestParseResponse_Success(t *testing.T) {
	env, err := ParseResponse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.Licenses) != 3 {
		t.Fatalf("expected 3 licenses, got %d", len(env.Licenses))
	}

	core := env.Licenses[0]
	if core.Kind != ProductCore {
		t.Errorf("expected kind core, got %s", core.Kind)
	}
	if core.Version != (Version{Major: 20, Minor: 5}) {
		t.Errorf("expected version 20.5, got %v", core.Version)
	}
	if core.Available != 3 || core.TotalTokens != 10 {
		t.Errorf("expected 3/10 seats, got %d/%d", core.Available, core.TotalTokens)
	}
	if core.Servers != "host-a" || core.Signature != "sig-1" || !core.IPMatch || core.LicenseAccessMode != "Full" {
		t.Errorf("passthrough metadata lost: %+v", core)
	}

	if env.Licenses[1].Kind != ProductFx {
		t.Errorf("expected kind fx, got %s", env.Licenses[1].Kind)
	}
	if env.Licenses[1].Available != -1 {
		t.Errorf("expected available -1 to be kept, got %d", env.Licenses[1].Available)
	}

	other := env.Licenses[2]
	if other.Kind != ProductOther {
		t.Errorf("expected unknown tag to map to other, got %s", other.Kind)
	}
	if other.ProductID != "Houdini-Indie" {
		t.Errorf("expected raw tag Houdini-Indie, got %q", other.ProductID)
	}
}

func TestParseResponse_RoundTrip(t *testing.T) {
	env, err := ParseResponse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := ParseResponse(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(again.Licenses) != len(env.Licenses) {
		t.Fatalf("expected %d licenses, got %d", len(env.Licenses), len(again.Licenses))
	}
	for i := range env.Licenses {
		if again.Licenses[i] != env.Licenses[i] {
			t.Errorf("license %d changed:\n got  %+v\n want %+v", i, again.Licenses[i], env.Licenses[i])
		}
	}
}

func TestParseResponse_EmptyList(t *testing.T) {
	env, err := ParseResponse([]byte(`{"licenses": []}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.Licenses) != 0 {
		t.Errorf("expected no licenses, got %d", len(env.Licenses))
	}
}

func TestParseResponse_MissingLicensesKey(t *testing.T) {
	_, err := ParseResponse([]byte(`{"users": []}`))
	if !errors.Is(err, ErrLicensesMissing) {
		t.Fatalf("expected ErrLicensesMissing, got %v", err)
	}
	var rpe *ResponseParseError
	if !errors.As(err, &rpe) {
		t.Fatalf("expected *ResponseParseError, got %T", err)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>502 Bad Gateway</html>`},
		{"array body", `[1, 2]`},
		{"null body", `null`},
		{"licenses null", `{"licenses": null}`},
		{"licenses object", `{"licenses": {"id": "x"}}`},
		{"record not object", `{"licenses": ["x"]}`},
		{"missing version", `{"licenses": [{"product_id": "Houdini-Escape", "available": 1}]}`},
		{"missing product_id", `{"licenses": [{"version": "20.5", "available": 1}]}`},
		{"missing available", `{"licenses": [{"product_id": "Houdini-Escape", "version": "20.5"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body))
			var rpe *ResponseParseError
			if !errors.As(err, &rpe) {
				t.Fatalf("expected *ResponseParseError, got %T: %v", err, err)
			}
			if errors.Is(err, ErrLicensesMissing) {
				t.Errorf("malformed content must not report a missing key: %v", err)
			}
		})
	}
}

func TestParseResponse_BadVersionFailsEnvelope(t *testing.T) {
	body := `{"licenses": [
		{"product_id": "Houdini-Escape", "version": "20.5", "available": 1},
		{"product_id": "Houdini-Escape", "version": "20", "available": 1}
	]}`
	_, err := ParseResponse([]byte(body))
	if err == nil {
		t.Fatal("expected error")
	}
	var vpe *VersionParseError
	if !errors.As(err, &vpe) {
		t.Fatalf("expected *VersionParseError in chain, got %v", err)
	}
	if vpe.Input != "20" {
		t.Errorf("expected input 20, got %q", vpe.Input)
	}
	if !strings.Contains(err.Error(), "license 1") {
		t.Errorf("expected error to name the record index, got %q", err.Error())
	}
}

func TestLicenseRecord_UnmarshalJSON(t *testing.T) {
	var rec LicenseRecord
	err := json.Unmarshal([]byte(`{"product_id": "Karma-Render", "version": "2.1", "available": 7}`), &rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Kind != ProductKarma {
		t.Errorf("expected kind karma, got %s", rec.Kind)
	}
	if rec.Available != 7 {
		t.Errorf("expected 7 available, got %d", rec.Available)
	}
}
