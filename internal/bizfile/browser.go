package bizfile

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ErrUnauthorized means the registry rejected the session.
var ErrUnauthorized = eris.New("bizfile: session unauthorized")

// Credentials log in to the registry's identity provider.
type Credentials struct {
	Username string
	Password string
}

// Capture is what a search observed in the browser. Rows and Detail are the
// registry's own API responses; PageHTML is the rendered page, kept for the
// text fallback.
type Capture struct {
	Rows     []json.RawMessage
	Detail   json.RawMessage
	PageHTML string
}

// PickFunc chooses which result row to open.
type PickFunc func(rows []json.RawMessage) int

// Browser drives the registry website.
type Browser interface {
	// Login authenticates and returns the resulting browser state.
	Login(ctx context.Context, creds Credentials) (*Session, error)
	// Search runs a business search inside sess and opens the row chosen by
	// pick. It returns ErrUnauthorized when the registry rejects sess.
	Search(ctx context.Context, sess *Session, name string, pick PickFunc) (*Capture, error)
	Close() error
}
