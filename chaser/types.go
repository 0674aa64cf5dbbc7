package chaser

import "encoding/json"

// LicenseRecord is one entry of the server's license listing.
// Fields match the "licenses" array returned by the cmd_ls command.
// Available is reported as-is and may be negative.
type LicenseRecord struct {
	Kind        ProductKind `json:"-"`
	ProductID   string      `json:"product_id"`
	Version     Version     `json:"version"`
	Available   int         `json:"available"`
	TotalTokens int         `json:"total_tokens"`

	// Passthrough metadata, kept verbatim.
	ID                string `json:"id"`
	Platform          string `json:"platform"`
	Product           string `json:"product"`
	Expires           string `json:"expires"`
	IPMask            string `json:"ip_mask"`
	IPMatch           bool   `json:"ipmatch"`
	Servers           string `json:"servers"`
	Signature         string `json:"signature"`
	LicenseAccessMode string `json:"license_access_mode"`
}

// wireRecord mirrors LicenseRecord with pointers for the fields a record
// cannot be interpreted without.
type wireRecord struct {
	ProductID   *string          `json:"product_id"`
	Version     *json.RawMessage `json:"version"`
	Available   *int             `json:"available"`
	TotalTokens int              `json:"total_tokens"`

	ID                string `json:"id"`
	Platform          string `json:"platform"`
	Product           string `json:"product"`
	Expires           string `json:"expires"`
	IPMask            string `json:"ip_mask"`
	IPMatch           bool   `json:"ipmatch"`
	Servers           string `json:"servers"`
	Signature         string `json:"signature"`
	LicenseAccessMode string `json:"license_access_mode"`
}

// ResponseEnvelope is the decoded body of a cmd_ls response.
// It is built fresh for every response and never modified.
type ResponseEnvelope struct {
	Licenses []LicenseRecord `json:"licenses"`
}

// Event kinds emitted by a Chaser.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventResponded
	EventErrored
	EventLaunchRequested
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventResponded:
		return "responded"
	case EventErrored:
		return "errored"
	case EventLaunchRequested:
		return "launch_requested"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a Chaser.
type State int

const (
	StateSuspended State = iota
	StateStarting
	StatePolling
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateSleeping:
		return "sleeping"
	default:
		return "suspended"
	}
}
