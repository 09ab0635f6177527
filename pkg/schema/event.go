package schema

import "time"

// EventKind names one of the observable ledger events.
type EventKind string

const (
	// EventRecordCreated carries the new record id and its proposal URI.
	EventRecordCreated EventKind = "RecordCreated"
	// EventStatusChanged carries the record id and its new status.
	EventStatusChanged EventKind = "StatusChanged"
	// EventReportAttached carries the record id and the completion report URI.
	EventReportAttached EventKind = "ReportAttached"
)

// Event is one entry of the ordered, append-only ledger log consumed by indexers and front-ends.
type Event struct {
	Seq      uint64    `json:"seq" yaml:"seq"`
	ID       string    `json:"id" yaml:"id"`
	Kind     EventKind `json:"kind" yaml:"kind"`
	RecordID uint64    `json:"record_id" yaml:"record_id"`
	Status   Status    `json:"status" yaml:"status"`
	URI      string    `json:"uri,omitempty" yaml:"uri,omitempty"`
	Actor    string    `json:"actor" yaml:"actor"`
	At       time.Time `json:"at" yaml:"at"`
}
