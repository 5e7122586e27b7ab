package domain

import "time"

// RawRecord is the unnormalized record a subsystem emits. Collector
// adapters turn records into Events; the ingest layer writes them to
// the record store as received.
type RawRecord struct {
	ID        string                 `json:"id"`
	System    string                 `json:"system"`
	Kind      string                 `json:"kind,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}
