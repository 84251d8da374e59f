package models

import (
	"time"
)

// EvidenceLink associates a signal with an ingestion that justifies it.
// Unique on (signal_id, ingestion_id); inserting a duplicate pair is a no-op.
type EvidenceLink struct {
	SignalID      string        `json:"signal_id"`
	IngestionID   string        `json:"ingestion_id"`
	ReferenceType ReferenceType `json:"reference_type"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ReferenceType records which stage of the pipeline asserted the link.
type ReferenceType string

const (
	ReferenceDetected ReferenceType = "detected"
	ReferenceMomentum ReferenceType = "momentum"
	ReferenceManual   ReferenceType = "manual"
)
