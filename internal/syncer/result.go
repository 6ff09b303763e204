// Package syncer moves CRM entities between the local store and the remote
// platform. The importer maps remote payloads into local rows, the exporter
// pushes local rows that have never been linked to a remote record, and the
// engine sequences both directions phase by phase so one bad collection
// cannot take down a whole run.
package syncer

import "fmt"

// SyncResult tallies what one phase or one full run did.
type SyncResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Merge folds another result into this one.
func (r *SyncResult) Merge(other SyncResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

func (r *SyncResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Preview counts what an import would touch without writing anything.
type Preview struct {
	Tags          int `json:"tags"`
	CustomFields  int `json:"custom_fields"`
	CustomValues  int `json:"custom_values"`
	Pipelines     int `json:"pipelines"`
	Contacts      int `json:"contacts"`
	Opportunities int `json:"opportunities"`
}
