package pgaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agentsafe/agentsafe/internal/audit"
)

// Insert mirrors one audit event into Postgres. It is best-effort and
// never blocks the ALLOW/BLOCK decision path: callers log-and-continue on
// error rather than propagating it into the proxy pipeline.
func (db *DB) Insert(ctx context.Context, event audit.Event) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_events (request_id, actor, tool, decision, rule_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.RequestID, event.Actor, event.Tool, event.Decision, event.RuleID, event.Reason)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// InsertAsync fires Insert in a goroutine and logs any failure, for
// callers on the hot decision path that must never wait on Postgres.
func (db *DB) InsertAsync(ctx context.Context, event audit.Event) {
	go func() {
		if err := db.Insert(ctx, event); err != nil {
			log.Warn().Err(err).Str("request_id", event.RequestID).Msg("audit mirror insert failed")
		}
	}()
}

// Filter selects audit_events rows matching the given non-empty fields,
// newest first, capped at limit.
type Filter struct {
	Actor    string
	Tool     string
	Decision string
	Limit    int
}

// Query returns audit events matching filter, backing the admin API's
// /api/v1/audit/query endpoint with indexed filtering a JSONL tail cannot
// do efficiently.
func (db *DB) Query(ctx context.Context, f Filter) ([]audit.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT request_id, actor, tool, decision, rule_id, reason, recorded_at
	          FROM audit_events WHERE ($1 = '' OR actor = $1)
	            AND ($2 = '' OR tool = $2)
	            AND ($3 = '' OR decision = $3)
	          ORDER BY recorded_at DESC LIMIT $4`

	rows, err := db.Pool.Query(ctx, query, f.Actor, f.Tool, f.Decision, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var recordedAt time.Time
		if err := rows.Scan(&e.RequestID, &e.Actor, &e.Tool, &e.Decision, &e.RuleID, &e.Reason, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event row: %w", err)
		}
		e.Timestamp = recordedAt.UTC().Format(time.RFC3339Nano)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit event rows: %w", err)
	}
	return out, nil
}
