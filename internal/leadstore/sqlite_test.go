package leadstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackend_MissingTab(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	_, err := b.Get(ctx, "Nope!A1:Z")
	assert.True(t, errors.Is(err, ErrTabNotFound))

	_, err = b.Append(ctx, "Nope!A1", []string{"x"})
	assert.True(t, errors.Is(err, ErrTabNotFound))

	err = b.BatchUpdate(ctx, []CellUpdate{{Range: "Nope!A1", Values: [][]string{{"x"}}}})
	assert.True(t, errors.Is(err, ErrTabNotFound))
}

func TestSQLiteBackend_GetFillsGapsAndTrims(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.AddTab(ctx, "Leads"))
	require.NoError(t, b.BatchUpdate(ctx, []CellUpdate{
		{Range: Range("Leads", "A1"), Values: [][]string{{"ID", "Business Name", "Category", "Area"}}},
		{Range: Range("Leads", "B3"), Values: [][]string{{"Acme", "", "Gilroy CA"}}},
	}))

	rows, err := b.Get(ctx, Range("Leads", "A1:Z"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"ID", "Business Name", "Category", "Area"},
		{},
		{"", "Acme", "", "Gilroy CA"},
	}, rows)

	rows, err = b.Get(ctx, Range("Leads", "B:D"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Business Name", "Category", "Area"},
		{},
		{"Acme", "", "Gilroy CA"},
	}, rows)

	rows, err = b.Get(ctx, Range("Leads", "3:3"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"", "Acme", "", "Gilroy CA"}}, rows)
}

func TestSQLiteBackend_AppendAfterLastRow(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)
	require.NoError(t, b.AddTab(ctx, "Leads - Pool"))

	rng, err := b.Append(ctx, Range("Leads - Pool", "A1"), []string{"ID", "Business Name"})
	require.NoError(t, err)
	assert.Equal(t, "'Leads - Pool'!A1:B1", rng)

	rng, err = b.Append(ctx, Range("Leads - Pool", "A1"), []string{"x1", "Splash", "pool cleaner"})
	require.NoError(t, err)
	assert.Equal(t, "'Leads - Pool'!A2:C2", rng)
	assert.Equal(t, 2, RowFromUpdatedRange(rng))

	tabs, err := b.ListTabs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Leads - Pool"}, tabs)
}
