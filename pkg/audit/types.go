package audit

import "encoding/json"

// EntityType is the closed set of row kinds an audit entry can point at.
type EntityType string

const (
	EntityQuestion EntityType = "question"
	EntityAnswer   EntityType = "answer"
)

// Descriptor names the guarded action and carries its logical input for
// traceability. EntityType is optional; when set and the action succeeds,
// the created row's id is linked into the entry.
type Descriptor struct {
	Action     string
	Payload    any
	EntityType EntityType
}

// RequestMeta is the ambient request context snapshotted before a guarded
// action runs. Empty strings persist as NULL columns.
type RequestMeta struct {
	IPAddress      string
	GeoCity        string
	GeoCountry     string
	GeoCountryFlag string
	GeoRegion      string
	GeoEdgeRegion  string
	GeoLatitude    string
	GeoLongitude   string
	GeoPostalCode  string
	UserAgent      string
	Referer        string
	AcceptLanguage string
}

// Entry is one append-only audit row. Entries are written exactly once per
// guarded invocation and never updated or deleted.
type Entry struct {
	RequestMeta

	ActorID      string // empty when the action was unauthenticated
	Action       string
	Payload      json.RawMessage
	EntityType   EntityType
	EntityID     *int64
	Success      bool
	ErrorMessage string
}

// Resulter lets an action's return value report a failure state of its own,
// independent of the returned error.
type Resulter interface {
	AuditSuccess() bool
	AuditErrorMessage() string
}

// Entity exposes the numeric id of the row an action created, for linking
// into the audit entry.
type Entity interface {
	AuditEntityID() int64
}
