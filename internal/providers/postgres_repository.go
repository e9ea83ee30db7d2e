package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores providers and their coverage rows.
type PostgresRepository struct {
	db pgxDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("providers: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const providerColumns = `id, name, slug, email, phone, claim_email, notification_email, website,
	primary_city, primary_state, zip_codes, service_radius_miles, nationwide,
	eligible_for_leads, is_phlebotomy, notify_sms, notify_email,
	operating_days, operating_hours_start, operating_hours_end, timezone,
	status, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var (
		p      Provider
		days   string
		status string
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Email, &p.Phone, &p.ClaimEmail, &p.NotificationEmail, &p.Website,
		&p.PrimaryCity, &p.PrimaryState, &p.ZIPCodes, &p.ServiceRadiusMiles, &p.Nationwide,
		&p.EligibleForLeads, &p.IsPhlebotomy, &p.NotifySMS, &p.NotifyEmail,
		&days, &p.Schedule.Start, &p.Schedule.End, &p.Schedule.Timezone,
		&status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Schedule.Days = ParseDays(days)
	p.Status = Status(status)
	return &p, nil
}

// Create inserts the provider and its coverage rows in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateProviderRequest) (*Provider, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.normalize()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("providers: begin create: %w", err)
	}
	defer tx.Rollback(ctx)

	id := uuid.New().String()
	query := `
		INSERT INTO providers (id, name, slug, email, phone, claim_email, notification_email, website,
			primary_city, primary_state, zip_codes, service_radius_miles, nationwide,
			eligible_for_leads, is_phlebotomy, notify_sms, notify_email,
			operating_days, operating_hours_start, operating_hours_end, timezone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	err = tx.QueryRow(ctx, query,
		id, req.Name, Slugify(req.Name), req.Email, req.Phone, req.ClaimEmail, req.NotificationEmail, req.Website,
		req.PrimaryCity, req.PrimaryState, req.ZIPCodes, req.ServiceRadiusMiles, req.Nationwide,
		req.EligibleForLeads, req.IsPhlebotomy, req.NotifySMS, req.NotifyEmail,
		strings.Join(req.Schedule.Days, ","), req.Schedule.Start, req.Schedule.End, req.Schedule.Timezone, string(req.Status),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("providers: insert failed: %w", err)
	}

	for _, c := range req.Coverage {
		if _, err := tx.Exec(ctx,
			`INSERT INTO provider_coverage (id, provider_id, state, cities) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), id, c.State, c.Cities,
		); err != nil {
			return nil, fmt.Errorf("providers: insert coverage: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("providers: commit create: %w", err)
	}

	return &Provider{
		ID:                 id,
		Name:               req.Name,
		Slug:               Slugify(req.Name),
		Email:              req.Email,
		Phone:              req.Phone,
		ClaimEmail:         req.ClaimEmail,
		NotificationEmail:  req.NotificationEmail,
		Website:            req.Website,
		PrimaryCity:        req.PrimaryCity,
		PrimaryState:       req.PrimaryState,
		ZIPCodes:           req.ZIPCodes,
		ServiceRadiusMiles: req.ServiceRadiusMiles,
		Nationwide:         req.Nationwide,
		Coverage:           req.Coverage,
		EligibleForLeads:   req.EligibleForLeads,
		IsPhlebotomy:       req.IsPhlebotomy,
		NotifySMS:          req.NotifySMS,
		NotifyEmail:        req.NotifyEmail,
		Schedule:           req.Schedule,
		Status:             req.Status,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("providers: select failed: %w", err)
	}
	if err := r.attachCoverage(ctx, []*Provider{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryProviders(ctx, query, args...)
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, variants []string) (*Provider, error) {
	var nonEmpty []string
	for _, v := range variants {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, ErrProviderNotFound
	}
	return r.findOne(ctx, `SELECT `+providerColumns+` FROM providers
		WHERE phone = ANY($1)
		ORDER BY created_at, id
		LIMIT 1`, nonEmpty)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, addr string) (*Provider, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrProviderNotFound
	}
	// Substring matches stay literal; sender addresses may contain % or _.
	return r.findOne(ctx, `SELECT `+providerColumns+` FROM providers
		WHERE claim_email = $1 OR email = $1
			OR strpos(lower(claim_email), lower($1)) > 0
			OR strpos(lower(email), lower($1)) > 0
		ORDER BY (claim_email = $1 OR email = $1) DESC, created_at, id
		LIMIT 1`, addr)
}

func (r *PostgresRepository) ListMatchable(ctx context.Context) ([]*Provider, error) {
	return r.queryProviders(ctx, `SELECT `+providerColumns+` FROM providers
		WHERE is_phlebotomy
		ORDER BY created_at, id`)
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, id string, settings Settings) (*Provider, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p, err := r.updateOne(ctx, `UPDATE providers
		SET operating_days = $2, operating_hours_start = $3, operating_hours_end = $4,
			timezone = $5, service_radius_miles = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+providerColumns,
		id, strings.Join(settings.Schedule.Days, ","), settings.Schedule.Start, settings.Schedule.End,
		settings.Schedule.Timezone, settings.ServiceRadiusMiles)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) SetEligibility(ctx context.Context, id string, eligible bool) (*Provider, error) {
	return r.updateOne(ctx, `UPDATE providers
		SET eligible_for_leads = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+providerColumns, id, eligible)
}

// Delete removes coverage rows first, then the providers, in one transaction.
func (r *PostgresRepository) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("providers: begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM provider_coverage WHERE provider_id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("providers: delete coverage: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM providers WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("providers: delete providers: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("providers: commit delete: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("providers: lookup failed: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) (*Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("providers: update failed: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) queryProviders(ctx context.Context, query string, args ...any) ([]*Provider, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("providers: query failed: %w", err)
	}
	var out []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("providers: scan failed: %w", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("providers: rows failed: %w", err)
	}
	if err := r.attachCoverage(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) attachCoverage(ctx context.Context, list []*Provider) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*Provider, len(list))
	ids := make([]string, 0, len(list))
	for _, p := range list {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	rows, err := r.db.Query(ctx, `SELECT provider_id, state, cities FROM provider_coverage
		WHERE provider_id = ANY($1)
		ORDER BY provider_id, state`, ids)
	if err != nil {
		return fmt.Errorf("providers: query coverage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			providerID string
			c          Coverage
		)
		if err := rows.Scan(&providerID, &c.State, &c.Cities); err != nil {
			return fmt.Errorf("providers: scan coverage: %w", err)
		}
		if p, ok := byID[providerID]; ok {
			p.Coverage = append(p.Coverage, c)
		}
	}
	return rows.Err()
}
