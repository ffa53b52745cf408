package models

import "time"

// Dispute описывает спор по сделке. Одновременно по сделке может быть
// открыт только один спор.
type Dispute struct {
	ID              int64      `db:"id" json:"id"`
	JobID           int64      `db:"job_id" json:"job_id"`
	RaisedBy        string     `db:"raised_by" json:"raised_by"`
	Reason          string     `db:"reason" json:"reason"`
	EvidenceURI     string     `db:"evidence_uri" json:"evidence_uri"`
	Status          string     `db:"status" json:"status"`
	Resolver        string     `db:"resolver" json:"resolver"`
	ResolutionNotes string     `db:"resolution_notes" json:"resolution_notes"`
	ClientPercent   *int       `db:"client_percent" json:"client_percent,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
