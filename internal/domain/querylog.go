package domain

import "time"

// QueryKind distinguishes the two retrieval entry points.
type QueryKind string

const (
	QuerySearch QueryKind = "search"
	QueryAsk    QueryKind = "ask"
)

// QueryLog records one retrieval call, enabling asynchronous feedback and
// latency reporting.
type QueryLog struct {
	ID            string
	OrgID         string
	Kind          QueryKind
	QueryText     string
	ResultCount   int
	TopSimilarity float64
	ItemIDs       []string
	LatencyMS     int64
	CreatedAt     time.Time
}

// QueryFeedback captures quality feedback on a logged query. A non-empty
// Correction spawns a tier 4 knowledge item through ingestion.
type QueryFeedback struct {
	ID         string
	QueryLogID string
	Helpful    bool
	Comment    string
	Correction string
	ItemID     string
	CreatedAt  time.Time
}

// LatencyStats summarizes recent query latency for health reporting.
type LatencyStats struct {
	Count     int64
	AvgMS     float64
	MaxMS     int64
	AvgTopSim float64
}
