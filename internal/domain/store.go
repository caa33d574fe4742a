package domain

import (
	"context"
	"time"
)

// ArbStore persists arbitrage history.
type ArbStore interface {
	Insert(ctx context.Context, rec ArbRecord) error
	ListRecent(ctx context.Context, limit int) ([]ArbRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ArbRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit int) ([]AuditEntry, error)
}
