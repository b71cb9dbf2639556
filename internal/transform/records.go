package transform

import "fmt"

// Device is one vessel tracking unit from the device directory.
// Field names follow the API wire schema.
type Device struct {
	ID           string `json:"ID"`
	RegistryCode string `json:"codMarinha"`
	Name         string `json:"nome"`
}

// Message is one raw VMS position report. DeviceID is a foreign key into
// the device directory, not unique. Timestamp arrives as
// "DD-MM-YYYY HH:MM:SS". Speed is absent in older schema versions.
type Message struct {
	DeviceID  string   `json:"ID"`
	Course    float64  `json:"curso"`
	Timestamp string   `json:"datahora"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	MessageID string   `json:"mID"`
	Speed     *float64 `json:"speed,omitempty"`
}

// Record is the canonical output row: a message enriched with its owning
// device's registry code and name, timestamp reformatted to
// "YYYY-MM-DD HH:MM:SS" (a straight reformat, no timezone conversion).
type Record struct {
	DeviceID     string   `json:"ID"`
	Course       float64  `json:"curso"`
	Timestamp    string   `json:"datahora"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	MessageID    string   `json:"mID"`
	Speed        *float64 `json:"speed,omitempty"`
	RegistryCode string   `json:"codMarinha"`
	Name         string   `json:"nome"`
}

// SchemaMismatchError reports a payload missing its expected top-level key.
// Never retried: a malformed response is not a transient failure.
type SchemaMismatchError struct {
	Path string
	Key  string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s has no top-level %q key", e.Path, e.Key)
}

// TimestampParseError aborts the whole transform; partial or ambiguous
// position data is never silently dropped.
type TimestampParseError struct {
	MessageID string
	Value     string
	Err       error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("message %s: cannot parse timestamp %q: %v", e.MessageID, e.Value, e.Err)
}

func (e *TimestampParseError) Unwrap() error { return e.Err }
