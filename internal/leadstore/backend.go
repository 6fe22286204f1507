package leadstore

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrTabNotFound is returned by a Backend when a range names a missing tab.
var ErrTabNotFound = eris.New("leadstore: tab not found")

// CellUpdate writes a rectangle of values starting at the top-left cell of
// Range.
type CellUpdate struct {
	Range  string
	Values [][]string
}

// Backend is the spreadsheet-style table API the Store runs on. Rate-limit
// rejections must be reported as resilience.RateLimitError.
type Backend interface {
	ListTabs(ctx context.Context) ([]string, error)
	AddTab(ctx context.Context, tab string) error
	// Get returns the rows of an A1 range, trailing empty cells and rows
	// omitted.
	Get(ctx context.Context, rng string) ([][]string, error)
	// Append inserts one row after the last data row of the range's tab and
	// returns the A1 range it was written to.
	Append(ctx context.Context, rng string, row []string) (string, error)
	// BatchUpdate applies every update in a single request.
	BatchUpdate(ctx context.Context, updates []CellUpdate) error
	Close() error
}
