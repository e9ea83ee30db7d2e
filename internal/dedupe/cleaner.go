package dedupe

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/mobilephlebotomy/leadrouter/pkg/logging"
)

// Cleaner finds duplicate providers and merges each group into its newest
// listing.
type Cleaner struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewCleaner(db *sql.DB, logger *logging.Logger) *Cleaner {
	if db == nil {
		panic("dedupe: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cleaner{db: db, logger: logger}
}

// Detail describes one merged group.
type Detail struct {
	Key           string   `json:"matchKey"`
	Kept          string   `json:"kept"`
	Deleted       []string `json:"deleted"`
	CoverageMoved int      `json:"coverageMoved"`
}

// Report summarizes a Remove run.
type Report struct {
	DryRun           bool     `json:"dryRun"`
	GroupsFound      int      `json:"groupsFound"`
	ProvidersDeleted int      `json:"providersDeleted"`
	CoverageMoved    int      `json:"coverageMoved"`
	Details          []Detail `json:"details"`
}

// Find loads every provider and returns the duplicate groups.
func (c *Cleaner) Find(ctx context.Context) ([]Group, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, website, phone, email, primary_city, primary_state, created_at
		FROM providers
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("dedupe: load providers: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Name, &l.Website, &l.Phone, &l.Email, &l.PrimaryCity, &l.PrimaryState, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("dedupe: scan provider: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dedupe: iterate providers: %w", err)
	}
	return FindGroups(listings), nil
}

// Remove merges every duplicate group. A listing can sit in both a name and
// a website group; it is only ever deleted once and a group reduced below two
// live listings is skipped. With dryRun nothing is written.
func (c *Cleaner) Remove(ctx context.Context, dryRun bool) (*Report, error) {
	groups, err := c.Find(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{DryRun: dryRun, GroupsFound: len(groups), Details: []Detail{}}
	deleted := map[string]bool{}

	for _, g := range groups {
		live := make([]Listing, 0, len(g.Listings))
		for _, l := range g.Listings {
			if !deleted[l.ID] {
				live = append(live, l)
			}
		}
		if len(live) < 2 {
			continue
		}
		g = Group{Key: g.Key, Listings: live}
		kept := g.Kept()
		loserIDs := make([]string, 0, len(live)-1)
		detail := Detail{Key: g.Key, Kept: label(kept)}
		for _, l := range g.Losers() {
			loserIDs = append(loserIDs, l.ID)
			detail.Deleted = append(detail.Deleted, label(l))
		}

		if !dryRun {
			moved, err := c.merge(ctx, kept.ID, loserIDs)
			if err != nil {
				return report, fmt.Errorf("dedupe: merge %s: %w", g.Key, err)
			}
			detail.CoverageMoved = moved
			c.logger.Info("duplicate providers merged",
				"match_key", g.Key,
				"kept_id", kept.ID,
				"deleted_ids", loserIDs,
				"coverage_moved", moved,
			)
		}
		for _, id := range loserIDs {
			deleted[id] = true
		}
		report.ProvidersDeleted += len(loserIDs)
		report.CoverageMoved += detail.CoverageMoved
		report.Details = append(report.Details, detail)
	}
	return report, nil
}

func label(l Listing) string {
	return fmt.Sprintf("%s (%s)", l.Name, l.ID)
}

// merge runs in one transaction: loser coverage for states the survivor
// lacks moves to the survivor, the rest is deleted, routed leads follow the
// survivor, and the losers are deleted.
func (c *Cleaner) merge(ctx context.Context, survivorID string, loserIDs []string) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	have, err := survivorStates(ctx, tx, survivorID)
	if err != nil {
		return 0, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, state FROM provider_coverage
		WHERE provider_id = ANY($1)
		ORDER BY state, id`, pq.Array(loserIDs))
	if err != nil {
		return 0, fmt.Errorf("load loser coverage: %w", err)
	}
	var move []string
	for rows.Next() {
		var id, state string
		if err := rows.Scan(&id, &state); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan coverage: %w", err)
		}
		if !have[state] {
			have[state] = true
			move = append(move, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate coverage: %w", err)
	}
	rows.Close()

	if len(move) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE provider_coverage SET provider_id = $1 WHERE id = ANY($2)`,
			survivorID, pq.Array(move)); err != nil {
			return 0, fmt.Errorf("move coverage: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM provider_coverage WHERE provider_id = ANY($1)`, pq.Array(loserIDs)); err != nil {
		return 0, fmt.Errorf("delete coverage: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET routed_to_id = $1, updated_at = now() WHERE routed_to_id = ANY($2)`,
		survivorID, pq.Array(loserIDs)); err != nil {
		return 0, fmt.Errorf("reassign leads: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM providers WHERE id = ANY($1)`, pq.Array(loserIDs)); err != nil {
		return 0, fmt.Errorf("delete providers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(move), nil
}

func survivorStates(ctx context.Context, tx *sql.Tx, providerID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT state FROM provider_coverage WHERE provider_id = $1`, providerID)
	if err != nil {
		return nil, fmt.Errorf("load survivor coverage: %w", err)
	}
	defer rows.Close()
	have := map[string]bool{}
	for rows.Next() {
		var state string
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("scan survivor coverage: %w", err)
		}
		have[state] = true
	}
	return have, rows.Err()
}
