package models

// ScrapeRunSummary is the structured outcome of one scheduler invocation.
type ScrapeRunSummary struct {
	ProjectsChecked   int                 `json:"projects_checked"`
	ProjectsRefreshed int                 `json:"projects_refreshed"`
	ProjectsSkipped   int                 `json:"projects_skipped"`
	SourcesScraped    int                 `json:"sources_scraped"`
	Successful        int                 `json:"successful"`
	Failed            int                 `json:"failed"`
	Duplicates        int                 `json:"duplicates"`
	SignalsDetected   int                 `json:"signals_detected"`
	Errors            map[string][]string `json:"errors,omitempty"` // project id -> error messages
	ExecutionTimeMs   int64               `json:"execution_time_ms"`
}

// ProjectScrapeResult is the outcome of scraping a single project's sources,
// whether scheduled or on-demand.
type ProjectScrapeResult struct {
	ProjectID       string   `json:"project_id"`
	SourcesScraped  int      `json:"sources_scraped"`
	Successful      int      `json:"successful"`
	Failed          int      `json:"failed"`
	Duplicates      int      `json:"duplicates"`
	SignalsDetected int      `json:"signals_detected"`
	Errors          []string `json:"errors,omitempty"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

// DetectionResult is returned by the signal detection entry point.
type DetectionResult struct {
	IngestionsAnalyzed int        `json:"ingestions_analyzed"`
	SignalsDetected    int        `json:"signals_detected"`
	Signals            []Signal   `json:"signals"`
	TokenUsage         TokenUsage `json:"token_usage"`
	AnalysisNotes      string     `json:"analysis_notes,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// MomentumResult is returned by the momentum analysis entry point.
type MomentumResult struct {
	SignalsAnalyzed  int        `json:"signals_analyzed"`
	SignalsUpdated   int        `json:"signals_updated"`
	SignalsUnchanged int        `json:"signals_unchanged"`
	UpdatedSignals   []Signal   `json:"updated_signals"`
	TokenUsage       TokenUsage `json:"token_usage"`
	AnalysisNotes    string     `json:"analysis_notes,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// PipelineResult is the combined detection-then-momentum outcome with
// partial-success semantics: momentum runs even when detection failed.
type PipelineResult struct {
	Detection  DetectionResult `json:"detection"`
	Momentum   MomentumResult  `json:"momentum"`
	TokenUsage TokenUsage      `json:"token_usage"`
	Error      string          `json:"error,omitempty"`
}
