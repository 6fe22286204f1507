package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equestrolabs/leadgen-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_CreateCompleteGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	input := model.RunInput{Area: "Morgan Hill CA", Category: "plumber", Tab: "Leads", CampaignID: "c1"}
	run, err := st.CreateRun(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := &model.PipelineSummary{
		Area:       "Morgan Hill CA",
		Category:   "plumber",
		NewLeads:   3,
		Touch1Sent: 2,
		StartedAt:  time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
		Results:    []model.LeadResult{{Row: 2, BusinessName: "Acme Plumbing", Touch1Sent: true}},
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, summary))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, input, got.Input)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 3, got.Summary.NewLeads)
	assert.Equal(t, 2, got.Summary.Touch1Sent)
	require.Len(t, got.Summary.Results, 1)
	assert.Equal(t, "Acme Plumbing", got.Summary.Results[0].BusinessName)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunInput{Area: "Gilroy CA", Category: "hvac"})
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "pipeline: ensure table: quota"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "pipeline: ensure table: quota", got.Error)
	assert.Nil(t, got.Summary)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = st.CompleteRun(ctx, "missing", &model.PipelineSummary{})
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = st.FailRun(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, model.RunInput{Area: "Morgan Hill CA", Category: "plumber"})
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, model.RunInput{Area: "South Bay CA", Category: "electrician", CampaignID: "electrician_morgan_hill_south_bay"})
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, model.RunInput{Area: "Morgan Hill CA", Category: "electrician", CampaignID: "electrician_morgan_hill_south_bay"})
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.PipelineSummary{}))
	require.NoError(t, st.FailRun(ctx, b.ID, "boom"))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	byArea, err := st.ListRuns(ctx, RunFilter{Area: "morgan hill ca"})
	require.NoError(t, err)
	assert.Len(t, byArea, 2)

	byCampaign, err := st.ListRuns(ctx, RunFilter{CampaignID: "electrician_morgan_hill_south_bay", Category: "ELECTRICIAN"})
	require.NoError(t, err)
	assert.Len(t, byCampaign, 2)

	page, err := st.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(ctx, model.RunInput{Area: "A", Category: "b"})
	require.NoError(t, err)
	_, err = st.GetRun(ctx, run.ID)
	assert.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "")
	assert.ErrorContains(t, err, "database_url")

	_, err = Open(context.Background(), "mysql", "x")
	assert.ErrorContains(t, err, "unknown driver")
}
