package leadapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchLeads_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/lead", r.URL.Path)
		assert.Equal(t, "Morgan Hill CA", r.URL.Query().Get("area"))
		assert.Equal(t, "electrician", r.URL.Query().Get("search"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "leads.test", r.Header.Get("x-rapidapi-host"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":[
			{"name":"Acme Electric","other-info":"4.8 · (408) 555-0100","info":"Electrician · 12 Main St, Morgan Hill, CA","website":"https://acme.example"},
			{"name":"Bolt Bros","other-info":"","info":"Electrician"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithHost("leads.test"), WithRateLimit(100))
	got, err := c.FetchLeads(context.Background(), "Morgan Hill CA", "electrician")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Electric", got[0].Name)
	assert.Equal(t, "4.8 · (408) 555-0100", got[0].OtherInfo)
	assert.Equal(t, "https://acme.example", got[0].Website)
	assert.Equal(t, "Bolt Bros", got[1].Name)
}

func TestFetchLeads_EmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))
	got, err := c.FetchLeads(context.Background(), "Gilroy CA", "hvac")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchLeads_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient("").FetchLeads(context.Background(), "Gilroy CA", "hvac")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestFetchLeads_RetriesThenFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad area`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))
	_, err := c.FetchLeads(context.Background(), "", "hvac")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}
