package models

import (
	"encoding/json"
	"time"
)

// SyncStatus enumerates the lifecycle states of a sync run. A run is
// created pending and mutated exactly once to a terminal state. A run
// with record-level errors but at least one successful record ends as
// partial; success is reserved for zero-error runs.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncError   SyncStatus = "error"
)

// SyncOperation enumerates logged operation types.
type SyncOperation string

const (
	OpProductSync SyncOperation = "product_sync"
)

// SyncDirection marks data flow relative to the local store.
type SyncDirection string

const (
	DirectionInbound  SyncDirection = "inbound"
	DirectionOutbound SyncDirection = "outbound"
)

// SyncCounters are the running totals a sync run accumulates.
type SyncCounters struct {
	Imported       int      `json:"imported"`
	Updated        int      `json:"updated"`
	Errors         int      `json:"errors"`
	TotalProcessed int      `json:"totalProcessed"`
	Messages       []string `json:"messages,omitempty"`
}

// SyncLog is the audit row for one sync run. Data holds the final
// SyncCounters as JSON; it is written once, at run completion.
type SyncLog struct {
	ID          int             `db:"id" json:"id"`
	RunID       string          `db:"run_id" json:"runId"`
	TenantID    int             `db:"tenant_id" json:"tenantId"`
	CustomerID  int             `db:"customer_id" json:"customerId"`
	Operation   SyncOperation   `db:"operation" json:"operation"`
	Platform    Marketplace     `db:"platform" json:"platform"`
	Direction   SyncDirection   `db:"direction" json:"direction"`
	Status      SyncStatus      `db:"status" json:"status"`
	Data        json.RawMessage `db:"data" json:"data,omitempty"`
	Message     string          `db:"message" json:"message,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time      `db:"completed_at" json:"completedAt,omitempty"`
}

// Counters decodes the stored counter payload; zero counters when the
// run has not completed or the payload is unreadable.
func (l *SyncLog) Counters() SyncCounters {
	var c SyncCounters
	if len(l.Data) > 0 {
		_ = json.Unmarshal(l.Data, &c)
	}
	return c
}
