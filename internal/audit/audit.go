// Package audit keeps an append-only history of provider replies. Lead rows
// only hold the latest notes; this log preserves every message.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result values other than ResultApplied name the reason nothing changed.
const (
	ResultApplied          = "applied"
	ResultProviderNotFound = "provider_not_found"
	ResultNoRecentLead     = "no_recent_lead"
	ResultUnknownKeyword   = "unknown_keyword"
	ResultError            = "error"
)

// Event is one processed provider reply.
type Event struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Sender     string    `json:"sender"`
	ProviderID string    `json:"provider_id,omitempty"`
	LeadID     string    `json:"lead_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Result     string    `json:"result"`
	RawMessage string    `json:"raw_message"`
	ExternalID string    `json:"external_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows Query results.
type Filter struct {
	ProviderID string
	LeadID     string
	Channel    string
	Limit      int
	Offset     int
}

// Store writes and reads reply_audit_events.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("audit: sql db required")
	}
	return &Store{db: db}
}

// Record appends one event.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reply_audit_events (
			id, channel, sender, provider_id, lead_id, action,
			outcome, result, raw_message, external_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Channel,
		e.Sender,
		nullString(e.ProviderID),
		nullString(e.LeadID),
		nullString(e.Action),
		nullString(e.Outcome),
		e.Result,
		e.RawMessage,
		nullString(e.ExternalID),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record reply event: %w", err)
	}
	return nil
}

// Query returns events newest first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, channel, sender, provider_id, lead_id, action,
			   outcome, result, raw_message, external_id, created_at
		FROM reply_audit_events
		WHERE 1=1
	`
	var args []any
	argIdx := 1

	if filter.ProviderID != "" {
		query += fmt.Sprintf(" AND provider_id = $%d", argIdx)
		args = append(args, filter.ProviderID)
		argIdx++
	}
	if filter.LeadID != "" {
		query += fmt.Sprintf(" AND lead_id = $%d", argIdx)
		args = append(args, filter.LeadID)
		argIdx++
	}
	if filter.Channel != "" {
		query += fmt.Sprintf(" AND channel = $%d", argIdx)
		args = append(args, filter.Channel)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query reply events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var providerID, leadID, action, outcome, externalID sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Channel, &e.Sender, &providerID, &leadID, &action,
			&outcome, &e.Result, &e.RawMessage, &externalID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: failed to scan reply event: %w", err)
		}
		e.ProviderID = providerID.String
		e.LeadID = leadID.String
		e.Action = action.String
		e.Outcome = outcome.String
		e.ExternalID = externalID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate reply events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
