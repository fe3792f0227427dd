package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a scrape session. The legal
// transitions are Active -> Consolidated -> Cleaned and Active -> Cleaned;
// Cleaned is terminal.
type SessionStatus string

const (
	SessionStatusActive       SessionStatus = "active"
	SessionStatusConsolidated SessionStatus = "consolidated"
	SessionStatusCleaned      SessionStatus = "cleaned"
)

// SessionKind distinguishes single-day sessions from range sessions.
type SessionKind string

const (
	SessionKindSingle SessionKind = "single"
	SessionKindRange  SessionKind = "range"
)

// SessionInfo is the caller-visible view of a scrape session.
type SessionInfo struct {
	ID        string        `json:"id"`
	Kind      SessionKind   `json:"kind"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Files     []string      `json:"files"`
	Summary   RangeSummary  `json:"summary"`
}

// FilePreview is a bounded sample of one held file's rows.
type FilePreview struct {
	Filename     string        `json:"filename"`
	Kind         DataKind      `json:"kind"`
	TotalRecords int           `json:"total_records"`
	Rows         []DailyRecord `json:"rows"`
}

// SessionPreview is the preview of every file held by an active session.
type SessionPreview struct {
	SessionID string        `json:"session_id"`
	Files     []FilePreview `json:"files"`
}
