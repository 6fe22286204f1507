package leadstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/resilience"
)

func newTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.RateLimitRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// flakyBackend rejects the first n calls of every method with a rate-limit
// error before delegating.
type flakyBackend struct {
	Backend
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyBackend) trip() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return resilience.NewRateLimitError(assert.AnError)
	}
	return nil
}

func (f *flakyBackend) Get(ctx context.Context, rng string) ([][]string, error) {
	if err := f.trip(); err != nil {
		return nil, err
	}
	return f.Backend.Get(ctx, rng)
}

func (f *flakyBackend) BatchUpdate(ctx context.Context, u []CellUpdate) error {
	if err := f.trip(); err != nil {
		return err
	}
	return f.Backend.BatchUpdate(ctx, u)
}

func sampleLead(name, area string) model.Lead {
	return model.Lead{
		ID:           "ab12cd34",
		BusinessName: name,
		Category:     "electrician",
		Area:         area,
		BizPhone:     "(408) 555-0100",
		Status:       model.StatusSourced,
		DateAdded:    "2026-10-01",
	}
}

func TestEnsureTable_CreatesTabAndHeader(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	s := New(b, "Leads", WithRetry(fastRetry()))

	require.NoError(t, s.EnsureTable(ctx))

	tabs, err := b.ListTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Leads"}, tabs)

	rows, err := b.Get(ctx, Range("Leads", "1:1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.Headers(), rows[0])

	// Idempotent.
	require.NoError(t, s.EnsureTable(ctx))
	rows, err = b.Get(ctx, Range("Leads", "1:1"))
	require.NoError(t, err)
	assert.Equal(t, model.Headers(), rows[0])
}

func TestEnsureTable_AppendsMissingColumnsOnly(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.AddTab(ctx, "Leads"))

	legacy := model.Headers()[:17]
	require.NoError(t, b.BatchUpdate(ctx, []CellUpdate{
		{Range: Range("Leads", "A1"), Values: [][]string{legacy}},
		{Range: Range("Leads", "A2"), Values: [][]string{{"x1", "Acme Electric", "electrician", "Morgan Hill CA"}}},
	}))

	s := New(b, "Leads", WithRetry(fastRetry()))
	require.NoError(t, s.EnsureTable(ctx))

	rows, err := b.Get(ctx, Range("Leads", "A1:Z"))
	require.NoError(t, err)
	assert.Equal(t, model.Headers(), rows[0])
	assert.Equal(t, []string{"x1", "Acme Electric", "electrician", "Morgan Hill CA"}, rows[1])
}

func TestReadAll_MissingTabAndHeaderOnly(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	s := New(b, "Leads", WithRetry(fastRetry()))

	leads, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)

	require.NoError(t, s.EnsureTable(ctx))
	leads, err = s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestAppendReadAllAndDedup(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	s := New(b, "Leads", WithRetry(fastRetry()))
	require.NoError(t, s.EnsureTable(ctx))

	row, err := s.Append(ctx, sampleLead("Acme Electric", "Morgan Hill CA"))
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = s.Append(ctx, sampleLead("Bolt Bros", "South Bay CA"))
	require.NoError(t, err)
	assert.Equal(t, 3, row)

	leads, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, 2, leads[0].Row)
	assert.Equal(t, "Acme Electric", leads[0].BusinessName)
	assert.Equal(t, model.StatusSourced, leads[0].Status)
	assert.Equal(t, 3, leads[1].Row)

	keys, err := s.LoadDedupKeys(ctx, "morgan hill ca")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"acme electric": {}}, keys)
}

func TestLoadDedupKeys_FollowsHeaderOrder(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.AddTab(ctx, "Imported"))
	require.NoError(t, b.BatchUpdate(ctx, []CellUpdate{
		{Range: Range("Imported", "A1"), Values: [][]string{
			{"Notes", "Area", "ID", "Category", "Business Name"},
			{"call back", "Morgan Hill CA", "a1", "plumber", "Acme Plumbing"},
			{"", "Gilroy CA", "a2", "plumber", "Garlic City Rooter"},
			{"", "morgan hill ca ", "a3", "hvac", "Valley Air"},
		}},
	}))

	s := New(b, "Imported", WithRetry(fastRetry()))
	keys, err := s.LoadDedupKeys(ctx, "Morgan Hill CA")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"acme plumbing": {}, "valley air": {}}, keys)
}

func TestLoadDedupKeys_MissingTabOrColumn(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	keys, err := New(b, "Nowhere", WithRetry(fastRetry())).LoadDedupKeys(ctx, "Gilroy CA")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, b.AddTab(ctx, "NoArea"))
	require.NoError(t, b.BatchUpdate(ctx, []CellUpdate{
		{Range: Range("NoArea", "A1"), Values: [][]string{{"ID", "Business Name"}}},
	}))
	_, err = New(b, "NoArea", WithRetry(fastRetry())).LoadDedupKeys(ctx, "Gilroy CA")
	assert.ErrorContains(t, err, `"Area"`)
}

func TestUpdate_WritesChangesAndRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	s := New(b, "Leads", WithRetry(fastRetry()))
	require.NoError(t, s.EnsureTable(ctx))
	row, err := s.Append(ctx, sampleLead("Acme Electric", "Morgan Hill CA"))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, row, model.Changes{
		model.ColStatus:   string(model.StatusTouch1Sent),
		model.ColSMSSent:  model.FlagYes,
		model.ColDripStep: "1",
	}))

	lead, err := s.ReadRow(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTouch1Sent, lead.Status)
	assert.Equal(t, model.FlagYes, lead.SMSSent)
	assert.Equal(t, 1, lead.DripStep)
	assert.Equal(t, "Acme Electric", lead.BusinessName)

	err = s.Update(ctx, row, model.Changes{
		model.ColStatus:        string(model.StatusDripComplete),
		model.Column("Bogus"): "x",
	})
	require.Error(t, err)

	lead, err = s.ReadRow(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTouch1Sent, lead.Status, "no partial write")

	assert.Error(t, s.Update(ctx, 1, model.Changes{model.ColStatus: "x"}))
}

func TestStore_RetriesRateLimit(t *testing.T) {
	ctx := context.Background()
	inner := newTestBackend(t)
	require.NoError(t, New(inner, "Leads").EnsureTable(ctx))

	flaky := &flakyBackend{Backend: inner, failures: 2}
	s := New(flaky, "Leads", WithRetry(fastRetry()))

	leads, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)
	assert.Equal(t, 3, flaky.calls)
}

func TestStore_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	inner := newTestBackend(t)
	flaky := &flakyBackend{Backend: inner, failures: 100}
	s := New(flaky, "Leads", WithRetry(fastRetry()))

	_, err := s.ReadAll(ctx)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
	assert.Equal(t, 6, flaky.calls)
}

func TestSentPhones(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	a := New(b, "Leads - A", WithRetry(fastRetry()))
	require.NoError(t, a.EnsureTable(ctx))
	sent := sampleLead("Sent Co", "Morgan Hill CA")
	sent.SMSSent = model.FlagYes
	sent.BestPhone = "408-555-0199"
	_, err := a.Append(ctx, sent)
	require.NoError(t, err)

	notSent := sampleLead("Quiet Co", "Morgan Hill CA")
	notSent.SMSSent = model.FlagNo
	_, err = a.Append(ctx, notSent)
	require.NoError(t, err)

	c := a.WithTab("Leads - B")
	require.NoError(t, c.EnsureTable(ctx))
	fallback := sampleLead("Fallback Co", "South Bay CA")
	fallback.SMSSent = "yes"
	fallback.BizPhone = "1 (650) 555-0142"
	_, err = c.Append(ctx, fallback)
	require.NoError(t, err)

	phones, err := a.SentPhones(ctx, []string{"Leads - A", "Leads - B", "Missing", "Leads - A"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"+14085550199": {},
		"+16505550142": {},
	}, phones)
}
