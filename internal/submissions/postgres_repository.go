package submissions

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

// PostgresRepository stores submissions in the submissions table.
type PostgresRepository struct {
	db rowQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("submissions: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("submissions: querier required")
	}
	return &PostgresRepository{db: db}
}

const submissionColumns = `id, business_name, contact_name, email, phone, website, description,
	address, city, state, zip_code, service_area, status, provider_id, submitted_at, reviewed_at`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var (
		s      Submission
		status string
	)
	if err := row.Scan(
		&s.ID, &s.BusinessName, &s.ContactName, &s.Email, &s.Phone, &s.Website, &s.Description,
		&s.Address, &s.City, &s.State, &s.ZIPCode, &s.ServiceArea, &status, &s.ProviderID,
		&s.SubmittedAt, &s.ReviewedAt,
	); err != nil {
		return nil, err
	}
	s.Status = Status(status)
	return &s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, req *CreateRequest) (*Submission, error) {
	s := newSubmission(req, time.Now().UTC())
	query := `
		INSERT INTO submissions (id, business_name, contact_name, email, phone, website, description,
			address, city, state, zip_code, service_area, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + submissionColumns
	out, err := scanSubmission(r.db.QueryRow(ctx, query,
		s.ID, s.BusinessName, s.ContactName, s.Email, s.Phone, s.Website, s.Description,
		s.Address, s.City, s.State, s.ZIPCode, s.ServiceArea, string(s.Status), s.SubmittedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("submissions: insert: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("submissions: get %s: %w", id, err)
	}
	return s, nil
}

func (r *PostgresRepository) List(ctx context.Context, status Status) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	var args []any
	if status != "" {
		args = append(args, string(status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("submissions: list: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("submissions: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("submissions: list: %w", err)
	}
	return out, nil
}

// MarkReviewed is a single conditional update so two admins cannot both
// approve the same submission.
func (r *PostgresRepository) MarkReviewed(ctx context.Context, id string, status Status, providerID *string, at time.Time) (*Submission, error) {
	s, err := scanSubmission(r.db.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2, provider_id = COALESCE($3, provider_id), reviewed_at = $4
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+submissionColumns, id, string(status), providerID, at))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("submissions: mark %s %s: %w", id, status, err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotPending
}
