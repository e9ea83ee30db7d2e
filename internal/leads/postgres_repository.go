package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{db: db}
}

const leadColumns = `id, full_name, phone, COALESCE(email, ''), COALESCE(address1, ''),
	city, state, zip, urgency, COALESCE(notes, ''), source, price_cents,
	routed_to_id, routed_at, claimed_at, first_contact_at, completed_at,
	status, outcome, COALESCE(outcome_notes, ''), COALESCE(provider_notes, ''), call_attempts,
	created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var (
		l       Lead
		urgency string
		status  string
		outcome *string
	)
	if err := row.Scan(
		&l.ID, &l.FullName, &l.Phone, &l.Email, &l.Address1,
		&l.City, &l.State, &l.ZIP, &urgency, &l.Notes, &l.Source, &l.PriceCents,
		&l.RoutedToID, &l.RoutedAt, &l.ClaimedAt, &l.FirstContactAt, &l.CompletedAt,
		&status, &outcome, &l.OutcomeNotes, &l.ProviderNotes, &l.CallAttempts,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Urgency = Urgency(urgency)
	l.Status = Status(status)
	if outcome != nil {
		o := Outcome(*outcome)
		l.Outcome = &o
	}
	return &l, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	l := newLead(req, time.Time{})

	query := `
		INSERT INTO leads (id, full_name, phone, email, address1, city, state, zip, urgency, notes, source, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'OPEN')
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		l.ID,
		l.FullName,
		l.Phone,
		nullable(l.Email),
		nullable(l.Address1),
		l.City,
		l.State,
		l.ZIP,
		string(l.Urgency),
		nullable(l.Notes),
		l.Source,
		l.PriceCents,
	).Scan(&l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	return r.one(ctx, "select", `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForProvider(ctx context.Context, id, providerID string) (*Lead, error) {
	if providerID == "" {
		return nil, ErrLeadNotFound
	}
	return r.one(ctx, "select", `SELECT `+leadColumns+` FROM leads WHERE id = $1 AND routed_to_id = $2`, id, providerID)
}

func (r *PostgresRepository) MostRecentForProvider(ctx context.Context, providerID string, since time.Time) (*Lead, error) {
	if providerID == "" {
		return nil, ErrLeadNotFound
	}
	return r.one(ctx, "select", `SELECT `+leadColumns+` FROM leads
		WHERE routed_to_id = $1 AND routed_at >= $2
		ORDER BY routed_at DESC, id DESC
		LIMIT 1`, providerID, since)
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.RoutedToID != "" {
		args = append(args, filter.RoutedToID)
		query += fmt.Sprintf(" AND routed_to_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: rows failed: %w", err)
	}
	return out, nil
}

// MarkRouted only assigns unrouted leads. A lead that exists but is already
// routed yields ErrAlreadyRouted.
func (r *PostgresRepository) MarkRouted(ctx context.Context, id, providerID string, at time.Time) (*Lead, error) {
	l, err := r.one(ctx, "route", `UPDATE leads
		SET routed_to_id = $2, routed_at = $3, updated_at = $3
		WHERE id = $1 AND routed_to_id IS NULL
		RETURNING `+leadColumns, id, providerID, at)
	if errors.Is(err, ErrLeadNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrAlreadyRouted
		}
	}
	return l, err
}

// Each action is one UPDATE so concurrent replies converge: COALESCE keeps the
// first timestamp, the CASE keeps status from moving backward and the counter
// increments in place.
const (
	applyClaimSQL = `UPDATE leads SET
			status = CASE WHEN status = 'OPEN' THEN 'CLAIMED' ELSE status END,
			claimed_at = COALESCE(claimed_at, $3),
			call_attempts = call_attempts + 1,
			provider_notes = $4,
			updated_at = $3
		WHERE id = $1 AND routed_to_id = $2
		RETURNING ` + leadColumns

	applyContactSQL = `UPDATE leads SET
			first_contact_at = COALESCE(first_contact_at, $3),
			call_attempts = call_attempts + 1,
			provider_notes = $4,
			updated_at = $3
		WHERE id = $1 AND routed_to_id = $2
		RETURNING ` + leadColumns

	applyOutcomeSQL = `UPDATE leads SET
			outcome = $5,
			outcome_notes = $4,
			status = CASE WHEN status = 'OPEN' THEN 'CLAIMED' ELSE status END,
			claimed_at = COALESCE(claimed_at, $3),
			updated_at = $3
		WHERE id = $1 AND routed_to_id = $2
		RETURNING ` + leadColumns

	applyCompleteSQL = `UPDATE leads SET
			completed_at = COALESCE(completed_at, $3),
			status = 'DELIVERED',
			outcome = COALESCE($5, outcome),
			provider_notes = $4,
			updated_at = $3
		WHERE id = $1 AND routed_to_id = $2
		RETURNING ` + leadColumns
)

func (r *PostgresRepository) Apply(ctx context.Context, id, providerID string, t Transition) (*Lead, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if providerID == "" {
		return nil, ErrLeadNotFound
	}
	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch t.Action {
	case ActionClaim:
		return r.one(ctx, "claim", applyClaimSQL, id, providerID, at, t.Notes)
	case ActionContact:
		return r.one(ctx, "contact", applyContactSQL, id, providerID, at, t.Notes)
	case ActionUpdateOutcome:
		return r.one(ctx, "outcome", applyOutcomeSQL, id, providerID, at, t.Notes, string(t.Outcome))
	default:
		return r.one(ctx, "complete", applyCompleteSQL, id, providerID, at, t.Notes, nullable(string(t.Outcome)))
	}
}

func (r *PostgresRepository) one(ctx context.Context, op, query string, args ...any) (*Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: %s failed: %w", op, err)
	}
	return l, nil
}
