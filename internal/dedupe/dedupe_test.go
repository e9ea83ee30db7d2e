package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Acme Labs":          "acme labs",
		"ACME LABS, LLC":     "acme labs",
		"  Acme   Labs Inc. ": "acme labs",
		"Metro Draws Co":     "metro draws",
		"Draw Corp, Inc":     "draw",
		"Inc":                "inc",
		"":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}

func TestNormalizeWebsite(t *testing.T) {
	tests := map[string]string{
		"https://www.AcmeLabs.com/about?x=1": "acmelabs.com",
		"http://acmelabs.com":                "acmelabs.com",
		"www.acmelabs.com/book":              "acmelabs.com",
		"acmelabs.com":                       "acmelabs.com",
		"":                                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeWebsite(in), in)
	}
}

func TestNormalizeContact(t *testing.T) {
	assert.Equal(t, NormalizePhone("+1 (313) 555-0101"), NormalizePhone("313.555.0101"))
	assert.Equal(t, "owner@metrodraws.com", NormalizeEmail("  Owner@MetroDraws.com "))
}

func TestFindGroupsByNameKeepsNewest(t *testing.T) {
	groups := FindGroups([]Listing{
		{ID: "p-old", Name: "Acme Labs", CreatedAt: base},
		{ID: "p-new", Name: "ACME LABS, LLC", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "p-other", Name: "Lakeside Mobile Labs", CreatedAt: base},
	})
	require.Len(t, groups, 1)
	assert.Equal(t, "acme labs", groups[0].Key)
	assert.Equal(t, "p-new", groups[0].Kept().ID)
	require.Len(t, groups[0].Losers(), 1)
	assert.Equal(t, "p-old", groups[0].Losers()[0].ID)
}

func TestFindGroupsWebsiteOnlyWhenNamesDiffer(t *testing.T) {
	groups := FindGroups([]Listing{
		{ID: "a", Name: "Metro Draws", Website: "https://metrodraws.com", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b", Name: "Metro Draws LLC", Website: "www.metrodraws.com", CreatedAt: base.Add(time.Hour)},
		{ID: "c", Name: "Same Site", Website: "sameSite.com", CreatedAt: base},
		{ID: "d", Name: "Same Site", Website: "http://samesite.com", CreatedAt: base},
	})
	keys := make([]string, 0, len(groups))
	for _, g := range groups {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"metro draws", "same site"}, keys)
}

func providerRows(listings ...Listing) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name", "website", "phone", "email", "primary_city", "primary_state", "created_at"})
	for _, l := range listings {
		rows.AddRow(l.ID, l.Name, l.Website, l.Phone, l.Email, l.PrimaryCity, l.PrimaryState, l.CreatedAt)
	}
	return rows
}

func TestCleanerDryRunDeletesEachListingOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, website, phone, email, primary_city, primary_state, created_at FROM providers").
		WillReturnRows(providerRows(
			Listing{ID: "a", Name: "Metro Draws", Website: "metrodraws.com", CreatedAt: base.Add(2 * time.Hour)},
			Listing{ID: "b", Name: "Metro Draws LLC", Website: "metrodraws.com", CreatedAt: base.Add(time.Hour)},
			Listing{ID: "c", Name: "Draws of Metro", Website: "https://metrodraws.com", CreatedAt: base},
		))

	report, err := NewCleaner(db, nil).Remove(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.GroupsFound)
	assert.Equal(t, 2, report.ProvidersDeleted)
	require.Len(t, report.Details, 2)
	assert.Equal(t, "Metro Draws (a)", report.Details[0].Kept)
	assert.Equal(t, []string{"Metro Draws LLC (b)"}, report.Details[0].Deleted)
	assert.Equal(t, []string{"Draws of Metro (c)"}, report.Details[1].Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanerMergesCoverageIntoSurvivor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, website").
		WillReturnRows(providerRows(
			Listing{ID: "p-new", Name: "ACME LABS, LLC", CreatedAt: base.Add(48 * time.Hour)},
			Listing{ID: "p-old", Name: "Acme Labs", CreatedAt: base},
		))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT state FROM provider_coverage").
		WithArgs("p-new").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("MI"))
	mock.ExpectQuery("SELECT id, state FROM provider_coverage").
		WithArgs(pq.Array([]string{"p-old"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "state"}).AddRow("cov-2", "MI").AddRow("cov-3", "OH"))
	mock.ExpectExec("UPDATE provider_coverage SET provider_id").
		WithArgs("p-new", pq.Array([]string{"cov-3"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM provider_coverage").
		WithArgs(pq.Array([]string{"p-old"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE leads SET routed_to_id").
		WithArgs("p-new", pq.Array([]string{"p-old"})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM providers").
		WithArgs(pq.Array([]string{"p-old"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	report, err := NewCleaner(db, nil).Remove(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, report.DryRun)
	assert.Equal(t, 1, report.ProvidersDeleted)
	assert.Equal(t, 1, report.CoverageMoved)
	require.Len(t, report.Details, 1)
	assert.Equal(t, "ACME LABS, LLC (p-new)", report.Details[0].Kept)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanerRollsBackFailedGroup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, name, website").
		WillReturnRows(providerRows(
			Listing{ID: "p-new", Name: "Acme Labs", CreatedAt: base.Add(time.Hour)},
			Listing{ID: "p-old", Name: "Acme Labs", CreatedAt: base},
		))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT state FROM provider_coverage").
		WithArgs("p-new").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))
	mock.ExpectQuery("SELECT id, state FROM provider_coverage").
		WillReturnRows(sqlmock.NewRows([]string{"id", "state"}))
	mock.ExpectExec("DELETE FROM provider_coverage").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	report, err := NewCleaner(db, nil).Remove(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedupe: merge acme labs")
	assert.Equal(t, 0, report.ProvidersDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

type stubService struct {
	groups     []Group
	report     *Report
	err        error
	lastDryRun *bool
}

func (s *stubService) Find(context.Context) ([]Group, error) {
	return s.groups, s.err
}

func (s *stubService) Remove(_ context.Context, dryRun bool) (*Report, error) {
	s.lastDryRun = &dryRun
	if s.err != nil {
		return nil, s.err
	}
	r := *s.report
	r.DryRun = dryRun
	return &r, nil
}

func TestHandlerListDuplicates(t *testing.T) {
	svc := &stubService{groups: []Group{{
		Key: "acme labs",
		Listings: []Listing{
			{ID: "p-new", Name: "ACME LABS, LLC", PrimaryCity: "Dearborn", PrimaryState: "MI", CreatedAt: base.Add(time.Hour)},
			{ID: "p-old", Name: "Acme Labs", PrimaryState: "MI", CreatedAt: base},
		},
	}}}
	rec := httptest.NewRecorder()
	NewHandler(svc, nil).ListDuplicates(rec, httptest.NewRequest(http.MethodGet, "/admin/duplicates", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		GroupsFound     int         `json:"groupsFound"`
		TotalDuplicates int         `json:"totalDuplicates"`
		Groups          []groupView `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.GroupsFound)
	assert.Equal(t, 1, body.TotalDuplicates)
	require.Len(t, body.Groups, 1)
	assert.Equal(t, "Dearborn, MI", body.Groups[0].Providers[0].Location)
	assert.Equal(t, "MI", body.Groups[0].Providers[1].Location)
}

func TestHandlerRemoveDefaultsToDryRun(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"empty body", "", true},
		{"no flag", `{}`, true},
		{"explicit true", `{"dryRun": true}`, true},
		{"explicit false", `{"dryRun": false}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{report: &Report{GroupsFound: 1, ProvidersDeleted: 1, Details: []Detail{}}}
			rec := httptest.NewRecorder()
			NewHandler(svc, nil).RemoveDuplicates(rec, httptest.NewRequest(http.MethodPost, "/admin/duplicates", strings.NewReader(tt.body)))

			require.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, svc.lastDryRun)
			assert.Equal(t, tt.want, *svc.lastDryRun)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["dryRun"])
		})
	}
}

func TestHandlerRemoveErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&stubService{}, nil).RemoveDuplicates(rec, httptest.NewRequest(http.MethodPost, "/admin/duplicates", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(&stubService{err: errors.New("db down")}, nil).RemoveDuplicates(rec, httptest.NewRequest(http.MethodPost, "/admin/duplicates", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
