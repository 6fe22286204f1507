package bizfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
)

// Session is persisted authenticated browser state.
type Session struct {
	// Cookies is the browser's cookie jar in CDP JSON form.
	Cookies json.RawMessage `json:"cookies"`
	// LocalStorage is the registry origin's localStorage.
	LocalStorage map[string]string `json:"local_storage,omitempty"`
	SavedAt      time.Time         `json:"-"`
}

type sessionMeta struct {
	SavedAt float64 `json:"saved_at"`
}

// SessionCache stores one session on disk as state.json plus a
// state.meta.json sidecar holding the save time.
type SessionCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewSessionCache returns a cache rooted at dir.
func NewSessionCache(dir string, ttl time.Duration) *SessionCache {
	return &SessionCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *SessionCache) statePath() string { return filepath.Join(c.dir, "state.json") }
func (c *SessionCache) metaPath() string  { return filepath.Join(c.dir, "state.meta.json") }
func (c *SessionCache) lockPath() string  { return filepath.Join(c.dir, "state.lock") }

// Load returns the saved session if it is younger than the TTL.
func (c *SessionCache) Load() (*Session, bool) {
	metaRaw, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, false
	}
	var meta sessionMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil || meta.SavedAt <= 0 {
		return nil, false
	}
	savedAt := time.Unix(0, int64(meta.SavedAt*float64(time.Second)))
	if !savedAt.Add(c.ttl).After(c.now()) {
		return nil, false
	}

	raw, err := os.ReadFile(c.statePath())
	if err != nil {
		return nil, false
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	s.SavedAt = savedAt
	return &s, true
}

// Save writes the session and then its timestamp, each by temp file and
// rename, so a reader never sees a fresh timestamp on stale state.
func (c *SessionCache) Save(s *Session) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return eris.Wrap(err, "bizfile: create session dir")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "bizfile: marshal session")
	}
	if err := writeAtomic(c.statePath(), raw); err != nil {
		return err
	}

	now := c.now()
	meta, err := json.Marshal(sessionMeta{SavedAt: float64(now.UnixNano()) / float64(time.Second)})
	if err != nil {
		return eris.Wrap(err, "bizfile: marshal session meta")
	}
	if err := writeAtomic(c.metaPath(), meta); err != nil {
		return err
	}
	s.SavedAt = time.Unix(0, now.UnixNano())
	return nil
}

// Invalidate removes the saved session.
func (c *SessionCache) Invalidate() {
	for _, p := range []string{c.metaPath(), c.statePath()} {
		_ = os.Remove(p)
	}
}

// InvalidateIf removes the saved session only if it is still the one saved
// at savedAt, so a stale rejection cannot discard a newer login.
func (c *SessionCache) InvalidateIf(savedAt time.Time) {
	cur, ok := c.Load()
	if !ok {
		return
	}
	if cur.SavedAt.Sub(savedAt).Abs() < time.Millisecond {
		c.Invalidate()
	}
}

// Lock takes the cross-process login lock.
func (c *SessionCache) Lock(ctx context.Context) (unlock func(), err error) {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return nil, eris.Wrap(err, "bizfile: create session dir")
	}
	fl := flock.New(c.lockPath())
	ok, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return nil, eris.Wrap(err, "bizfile: lock session")
	}
	if !ok {
		return nil, eris.New("bizfile: session lock not acquired")
	}
	return func() { _ = fl.Unlock() }, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return eris.Wrap(err, "bizfile: create temp file")
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return eris.Wrap(err, "bizfile: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return eris.Wrap(err, "bizfile: close temp file")
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return eris.Wrap(err, "bizfile: rename session file")
	}
	return nil
}
