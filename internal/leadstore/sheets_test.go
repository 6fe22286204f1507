package leadstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/equestrolabs/leadgen-cli/internal/resilience"
)

func newTestSheets(t *testing.T, h http.HandlerFunc) *SheetsBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	b, err := NewSheetsBackend(context.Background(), "sheet-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSheetsBackend_Get(t *testing.T) {
	b := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
		writeJSON(w, http.StatusOK, map[string]any{
			"range":  "Leads!A1:Z3",
			"values": [][]any{{"ID", "Business Name"}, {"x1", "Acme"}},
		})
	})

	rows, err := b.Get(context.Background(), "Leads!A1:Z")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "Business Name"}, {"x1", "Acme"}}, rows)
}

func TestSheetsBackend_ListTabs(t *testing.T) {
	b := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"sheets": []map[string]any{
				{"properties": map[string]any{"title": "Leads"}},
				{"properties": map[string]any{"title": "Leads - Pool"}},
			},
		})
	})

	tabs, err := b.ListTabs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Leads", "Leads - Pool"}, tabs)
}

func TestSheetsBackend_AppendReturnsUpdatedRange(t *testing.T) {
	b := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"))
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		assert.Equal(t, "INSERT_ROWS", r.URL.Query().Get("insertDataOption"))
		writeJSON(w, http.StatusOK, map[string]any{
			"updates": map[string]any{"updatedRange": "'Leads'!A7:S7"},
		})
	})

	rng, err := b.Append(context.Background(), "'Leads'!A1", []string{"x1", "Acme"})
	require.NoError(t, err)
	assert.Equal(t, 7, RowFromUpdatedRange(rng))
}

func TestSheetsBackend_ClassifiesErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	msg := "Quota exceeded"
	b := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{"code": status, "message": msg},
		})
	})
	ctx := context.Background()

	_, err := b.Get(ctx, "Leads!A1:Z")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))

	status, msg = http.StatusBadRequest, "Unable to parse range: Missing!A1:Z"
	_, err = b.Get(ctx, "Missing!A1:Z")
	assert.True(t, errors.Is(err, ErrTabNotFound))

	status, msg = http.StatusServiceUnavailable, "backend"
	_, err = b.Get(ctx, "Leads!A1:Z")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsRateLimited(err))
}
