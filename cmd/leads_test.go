//go:build !integration

package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equestrolabs/leadgen-cli/internal/export"
	"github.com/equestrolabs/leadgen-cli/internal/leadstore"
	"github.com/equestrolabs/leadgen-cli/internal/model"
)

type memImportTable struct {
	keys      map[string]map[string]struct{}
	appended  []model.Lead
	appendErr error
}

func (m *memImportTable) EnsureTable(context.Context) error { return nil }

func (m *memImportTable) LoadDedupKeys(_ context.Context, area string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for k := range m.keys[area] {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *memImportTable) Append(_ context.Context, l model.Lead) (int, error) {
	if m.appendErr != nil {
		return -1, m.appendErr
	}
	m.appended = append(m.appended, l)
	return len(m.appended) + 1, nil
}

var importNow = time.Date(2026, 2, 20, 10, 30, 0, 0, time.UTC)

func TestImportLeads(t *testing.T) {
	table := &memImportTable{keys: map[string]map[string]struct{}{
		"Morgan Hill CA": {"acme plumbing": {}},
	}}
	leads := []model.Lead{
		{Row: 2, BusinessName: "Acme Plumbing", Area: "Morgan Hill CA", Category: "plumber"},
		{Row: 3, BusinessName: "Valley Rooter", Area: "Morgan Hill CA", Category: "plumber"},
		{Row: 4, BusinessName: "valley rooter ", Area: "Morgan Hill CA", Category: "plumber"},
		{Row: 5, BusinessName: "", Area: "Morgan Hill CA"},
		{Row: 6, ID: "keepme01", BusinessName: "Spark Bros", Area: "South Bay CA", Category: "electrician",
			Status: model.StatusTouch1Sent, SMSSent: model.FlagYes, DateAdded: "2026-01-02", DripStep: 1},
	}

	added, skipped, err := importLeads(context.Background(), table, leads, importNow)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, skipped)

	require.Len(t, table.appended, 2)
	rooter := table.appended[0]
	assert.Equal(t, "Valley Rooter", rooter.BusinessName)
	assert.Zero(t, rooter.Row)
	assert.Len(t, rooter.ID, 8)
	assert.Equal(t, model.StatusSourced, rooter.Status)
	assert.Equal(t, model.FlagNo, rooter.SMSSent)
	assert.Equal(t, model.FlagNo, rooter.EmailSent)
	assert.Equal(t, "2026-02-20", rooter.DateAdded)

	spark := table.appended[1]
	assert.Equal(t, "keepme01", spark.ID)
	assert.Equal(t, model.StatusTouch1Sent, spark.Status)
	assert.Equal(t, "2026-01-02", spark.DateAdded)
	assert.Equal(t, 1, spark.DripStep)
}

func TestImportLeads_AppendError(t *testing.T) {
	table := &memImportTable{appendErr: errors.New("quota")}
	added, _, err := importLeads(context.Background(), table,
		[]model.Lead{{BusinessName: "Acme", Area: "Gilroy CA"}}, importNow)
	assert.Error(t, err)
	assert.Zero(t, added)
}

func TestImportLeads_RoundTripThroughSQLite(t *testing.T) {
	cfg = localConfig(t)
	defer func() { cfg = nil }()

	backend, err := leadstore.NewSQLiteBackend(cfg.Sheets.SQLitePath)
	require.NoError(t, err)
	defer backend.Close() //nolint:errcheck

	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, export.SaveLeads(path, export.Sheet{Tab: "Leads", Leads: []model.Lead{
		{BusinessName: "Acme Plumbing", Area: "Morgan Hill CA", Category: "plumber", BizPhone: "(408) 555-0100"},
		{BusinessName: "Valley Rooter", Area: "Morgan Hill CA", Category: "plumber"},
	}}))
	leads, err := export.ReadLeads(path, "")
	require.NoError(t, err)

	ctx := context.Background()
	added, skipped, err := importLeads(ctx, openTable(backend, "Leads"), leads, importNow)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Zero(t, skipped)

	added, skipped, err = importLeads(ctx, openTable(backend, "Leads"), leads, importNow)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 2, skipped)

	stored, err := openTable(backend, "Leads").ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "(408) 555-0100", stored[0].BizPhone)
	assert.Equal(t, model.StatusSourced, stored[0].Status)
}

func TestFormatLeadsList(t *testing.T) {
	var buf bytes.Buffer
	formatLeadsList(&buf, []model.Lead{
		{Row: 2, BusinessName: "Acme Plumbing", Area: "Morgan Hill CA", Status: model.StatusTouch1Sent, DripStep: 1,
			OwnerName: "Chris Johnson", BestPhone: "(408) 701-7037", NextContact: "2026-02-23"},
		{Row: 3, BusinessName: "A Very Long Business Name That Keeps Going LLC", Area: "Gilroy CA", Status: model.StatusSourced},
	})

	output := buf.String()
	assert.Contains(t, output, "BUSINESS")
	assert.Contains(t, output, "Chris Johnson")
	assert.Contains(t, output, "touch1_sent")
	assert.Contains(t, output, "2026-02-23")
	assert.Contains(t, output, "A Very Long Business Name T...")
}
