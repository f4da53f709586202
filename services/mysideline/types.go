package mysideline

import (
	"time"

	"oldmanfooty-backend/lib/carnivalstore"
)

// RawCandidate is one entry lifted off the listing page, untouched
// beyond text cleanup.
type RawCandidate struct {
	SourceId    string
	TitleRaw    string
	LocationRaw string
	DateRaw     string
	DetailUrl   string
}

// Detail is what a per-record detail page yields. Every field is
// best-effort; absent values stay "".
type Detail struct {
	Title            string
	DateRaw          string
	LocationAddress  string
	RegistrationLink string
	ContactName      string
	ContactEmail     string
	ContactPhone     string
	LogoUrl          string
	Description      string
}

// Candidate is a normalized record ready for reconciliation.
type Candidate struct {
	SourceId string
	Title    string
	// lowercased, de-punctuated title used only for fingerprinting
	CanonicalTitle        string
	Date                  time.Time // zero when the source gave no parseable date
	DateRaw               string
	State                 string // "" when it could not be derived from the address
	LocationAddress       string
	RegistrationLink      string
	OrganiserContactName  string
	OrganiserContactEmail string
	OrganiserContactPhone string
	LogoUrl               string
	Description           string
	Fingerprint           string
}

type ActionKind int

const (
	ActionCreate ActionKind = iota
	ActionUpdate
	ActionBlocked
	ActionSkip
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update-safe"
	case ActionBlocked:
		return "update-blocked"
	case ActionSkip:
		return "skip"
	}
	return "unknown"
}

// Skip and block reasons recorded in run counters and logs.
const (
	ReasonManualOwned = "manual-owned"
	ReasonNoChange    = "no-change"
	ReasonFieldLocked = "field-locked-no-other-change"
	ReasonAmbiguous   = "ambiguous"
	ReasonNoState     = "no-state"
	ReasonNoDate      = "no-date"
	ReasonStale       = "stale"
	ReasonCancelled   = "cancelled"
)

// Trigger refusal reasons reported to operators.
const (
	ReasonRunInProgress = "run-in-progress"
	ReasonSyncDisabled  = "sync-disabled"
)

// Action is the classification of one candidate against the store.
type Action struct {
	Kind      ActionKind
	Candidate Candidate
	// reason string for ActionBlocked and ActionSkip
	Reason string

	// for ActionUpdate: the row to patch and the patch itself
	TargetId int64
	Patch    carnivalstore.Patch
	// set when a fingerprint match adopts the candidate's source id
	AdoptSourceId string
}
