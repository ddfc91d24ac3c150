package store

import "time"

// RunID is a type-safe identifier for runs.
type RunID int64

// Run records one extraction.
type Run struct {
	ID        RunID     `json:"id"`
	Entry     string    `json:"entry"`
	BaseDir   string    `json:"base_dir"`
	Engine    string    `json:"engine"`
	CreatedAt time.Time `json:"created_at"`
	EdgeCount int       `json:"edge_count"`
}

// Span is a file-relative byte range.
type Span struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Edge is one stored caller/callee pair.
type Edge struct {
	RunID  RunID `json:"run_id"`
	Caller Span  `json:"caller"`
	Callee Span  `json:"callee"`
}
