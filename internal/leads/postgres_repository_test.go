package leads

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadColumnNames = []string{
	"id", "full_name", "phone", "email", "address1",
	"city", "state", "zip", "urgency", "notes", "source", "price_cents",
	"routed_to_id", "routed_at", "claimed_at", "first_contact_at", "completed_at",
	"status", "outcome", "outcome_notes", "provider_notes", "call_attempts",
	"created_at", "updated_at",
}

func leadRow(id, providerID, status string, claimedAt *time.Time, outcome *string, attempts int) *pgxmock.Rows {
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	routedAt := created.Add(time.Minute)
	return pgxmock.NewRows(leadColumnNames).AddRow(
		id, "Jane Patient", "3135550199", "", "",
		"Dearborn", "MI", "48126", "STANDARD", "", "web_form", 2000,
		&providerID, &routedAt, claimedAt, nil, nil,
		status, outcome, "", "CLAIMED", attempts,
		created, created,
	)
}

func TestPostgresApplyClaimUsesSingleConditionalUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	at := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE leads SET status = CASE WHEN status = 'OPEN' THEN 'CLAIMED' ELSE status END, claimed_at = COALESCE\(claimed_at, \$3\), call_attempts = call_attempts \+ 1`).
		WithArgs("lead1", "p1", at, "CLAIMED").
		WillReturnRows(leadRow("lead1", "p1", "CLAIMED", &at, nil, 1))

	lead, err := repo.Apply(context.Background(), "lead1", "p1", Transition{Action: ActionClaim, Notes: "CLAIMED", At: at})
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, lead.Status)
	assert.Equal(t, 1, lead.CallAttempts)
	assert.Equal(t, "p1", lead.RoutedTo())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyOutcomeAndComplete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	at := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)
	booked := "APPOINTMENT_BOOKED"

	mock.ExpectQuery(`UPDATE leads SET outcome = \$5, outcome_notes = \$4`).
		WithArgs("lead1", "p1", at, "BOOKED for friday", "APPOINTMENT_BOOKED").
		WillReturnRows(leadRow("lead1", "p1", "CLAIMED", &at, &booked, 0))

	lead, err := repo.Apply(context.Background(), "lead1", "p1", Transition{
		Action: ActionUpdateOutcome, Outcome: OutcomeAppointmentBooked, Notes: "BOOKED for friday", At: at,
	})
	require.NoError(t, err)
	require.NotNil(t, lead.Outcome)
	assert.Equal(t, OutcomeAppointmentBooked, *lead.Outcome)

	var noOutcome *string
	mock.ExpectQuery(`UPDATE leads SET completed_at = COALESCE\(completed_at, \$3\), status = 'DELIVERED'`).
		WithArgs("lead1", "p1", at, "done", noOutcome).
		WillReturnRows(leadRow("lead1", "p1", "DELIVERED", &at, &booked, 0))

	lead, err = repo.Apply(context.Background(), "lead1", "p1", Transition{Action: ActionComplete, Notes: "done", At: at})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, lead.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyOtherProviderIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	at := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE leads SET`).
		WithArgs("lead1", "intruder", at, "CLAIMED").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.Apply(context.Background(), "lead1", "intruder", Transition{Action: ActionClaim, Notes: "CLAIMED", At: at})
	assert.ErrorIs(t, err, ErrLeadNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkRoutedAlreadyRouted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	at := time.Date(2026, 10, 1, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE leads SET routed_to_id = \$2, routed_at = \$3`).
		WithArgs("lead1", "p2", at).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE id = \$1`).
		WithArgs("lead1").
		WillReturnRows(leadRow("lead1", "p1", "OPEN", nil, nil, 0))

	_, err = repo.MarkRouted(context.Background(), "lead1", "p2", at)
	assert.ErrorIs(t, err, ErrAlreadyRouted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMostRecentForProvider(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE routed_to_id = \$1 AND routed_at >= \$2 ORDER BY routed_at DESC`).
		WithArgs("p1", since).
		WillReturnRows(leadRow("lead1", "p1", "OPEN", nil, nil, 0))

	lead, err := repo.MostRecentForProvider(context.Background(), "p1", since)
	require.NoError(t, err)
	assert.Equal(t, "lead1", lead.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	var nilString *string

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "Jane Patient", "313-555-0199", nilString, nilString,
			"Dearborn", "MI", "48126", "STANDARD", nilString, "web_form", 2000).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	lead, err := repo.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, now, lead.CreatedAt)
	assert.Len(t, lead.ID, 20)
	require.NoError(t, mock.ExpectationsWereMet())
}
