package models

import (
	"time"
)

// Ingestion is one deduplicated unit of scraped content tied to a source.
// The (source_id, content_hash) pair is unique; content is immutable after
// creation, only status/processed/error fields change.
type Ingestion struct {
	ID               string           `json:"id"`
	SourceID         string           `json:"source_id"`
	Content          string           `json:"content"`
	ContentHash      string           `json:"content_hash"` // SHA-256 of normalized content
	WordCount        int              `json:"word_count"`
	ScrapedAt        time.Time        `json:"scraped_at"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	Status           IngestionStatus  `json:"status"`
	Processed        bool             `json:"processed"`
	ErrorMessage     string           `json:"error_message,omitempty"`
}

// IngestionStatus tracks where an ingestion sits in the analysis lifecycle.
type IngestionStatus string

const (
	IngestionStatusPendingAnalysis IngestionStatus = "pending_analysis"
	IngestionStatusAnalyzed        IngestionStatus = "analyzed"
	IngestionStatusAnalysisFailed  IngestionStatus = "analysis_failed"
)

// ExtractionMethod records which extraction tier produced the content.
type ExtractionMethod string

const (
	ExtractionMethodFeed        ExtractionMethod = "feed"
	ExtractionMethodForumAPI    ExtractionMethod = "forum_api"
	ExtractionMethodReadability ExtractionMethod = "readability"
	ExtractionMethodBrowser     ExtractionMethod = "browser"
)
