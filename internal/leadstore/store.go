// Package leadstore persists lead rows in a spreadsheet-style table, one tab
// per campaign, with every remote call retried on rate-limit rejections.
package leadstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/phone"
	"github.com/equestrolabs/leadgen-cli/internal/resilience"
)

// lastCol bounds full-row reads.
const lastCol = "Z"

// Store reads and writes lead rows in one tab of a Backend.
type Store struct {
	backend Backend
	tab     string
	retry   resilience.RetryConfig

	mu     sync.RWMutex
	names  []string
	header map[model.Column]int // 1-based column positions from the live header row
}

// Option configures a Store.
type Option func(*Store)

// WithRetry overrides the rate-limit retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// New returns a Store bound to tab.
func New(backend Backend, tab string, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		tab:     tab,
		retry:   resilience.RateLimitRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.retry.OnRetry = resilience.RetryLogger("leadstore", tab)
	return s
}

// WithTab returns a Store bound to another tab of the same backend.
func (s *Store) WithTab(tab string) *Store {
	return New(s.backend, tab, WithRetry(s.retry))
}

// Tab returns the tab this Store is bound to.
func (s *Store) Tab() string { return s.tab }

func (s *Store) get(ctx context.Context, rng string) ([][]string, error) {
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([][]string, error) {
		return s.backend.Get(ctx, rng)
	})
}

// EnsureTable creates the tab if needed and makes sure every lead column has
// a header cell. Existing headers and data are never rewritten; missing
// columns are appended to the right.
func (s *Store) EnsureTable(ctx context.Context) error {
	tabs, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]string, error) {
		return s.backend.ListTabs(ctx)
	})
	if err != nil {
		return eris.Wrap(err, "leadstore: list tabs")
	}

	exists := false
	for _, t := range tabs {
		if t == s.tab {
			exists = true
			break
		}
	}
	if !exists {
		if err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.backend.AddTab(ctx, s.tab)
		}); err != nil {
			return eris.Wrapf(err, "leadstore: add tab %q", s.tab)
		}
		zap.L().Info("created lead tab", zap.String("tab", s.tab))
	}

	rows, err := s.get(ctx, Range(s.tab, "1:1"))
	if err != nil && !errors.Is(err, ErrTabNotFound) {
		return eris.Wrap(err, "leadstore: read header")
	}
	var current []string
	if len(rows) > 0 {
		current = rows[0]
	}

	have := make(map[string]bool, len(current))
	for _, h := range current {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, c := range model.Columns {
		if !have[string(c)] {
			missing = append(missing, string(c))
		}
	}

	if len(missing) > 0 {
		start := ColumnLetter(len(current) + 1)
		if err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
			return s.backend.BatchUpdate(ctx, []CellUpdate{{
				Range:  Range(s.tab, start+"1"),
				Values: [][]string{missing},
			}})
		}); err != nil {
			return eris.Wrap(err, "leadstore: write header")
		}
		if len(current) > 0 {
			zap.L().Info("added missing lead columns",
				zap.String("tab", s.tab),
				zap.Strings("columns", missing),
			)
		}
		current = append(current, missing...)
	}

	s.setHeader(current)
	return nil
}

func (s *Store) setHeader(headers []string) {
	idx := make(map[model.Column]int, len(headers))
	for i, h := range headers {
		c := model.Column(strings.TrimSpace(h))
		if _, dup := idx[c]; !dup && c != "" {
			idx[c] = i + 1
		}
	}
	s.mu.Lock()
	s.names = append([]string(nil), headers...)
	s.header = idx
	s.mu.Unlock()
}

// headers returns the cached header row and index, reading the header row on
// first use.
func (s *Store) headers(ctx context.Context) ([]string, map[model.Column]int, error) {
	s.mu.RLock()
	names, h := s.names, s.header
	s.mu.RUnlock()
	if h != nil {
		return names, h, nil
	}

	rows, err := s.get(ctx, Range(s.tab, "1:1"))
	if err != nil {
		return nil, nil, eris.Wrap(err, "leadstore: read header")
	}
	if len(rows) == 0 {
		return nil, nil, eris.Wrapf(errNoHeader, "leadstore: tab %q", s.tab)
	}
	s.setHeader(rows[0])

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names, s.header, nil
}

// ReadAll returns every data row. A missing tab or a header-only table yields
// an empty slice.
func (s *Store) ReadAll(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.get(ctx, Range(s.tab, "A1:"+lastCol))
	if errors.Is(err, ErrTabNotFound) {
		return []model.Lead{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "leadstore: read %q", s.tab)
	}
	if len(rows) < 2 {
		return []model.Lead{}, nil
	}
	s.setHeader(rows[0])

	leads := make([]model.Lead, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		leads = append(leads, model.LeadFromRow(rows[0], row, i+2))
	}
	return leads, nil
}

var errNoHeader = eris.New("leadstore: no header row")

// LoadDedupKeys returns the lowercase business names already stored for area.
// The name and area columns are located through the live header, then read
// in a single request.
func (s *Store) LoadDedupKeys(ctx context.Context, area string) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	_, idx, err := s.headers(ctx)
	if errors.Is(err, ErrTabNotFound) || errors.Is(err, errNoHeader) {
		return keys, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "leadstore: read dedup keys %q", s.tab)
	}
	nameCol, okName := idx[model.ColBusinessName]
	areaCol, okArea := idx[model.ColArea]
	if !okName || !okArea {
		return nil, eris.Errorf("leadstore: tab %q has no %q or %q column", s.tab, model.ColBusinessName, model.ColArea)
	}

	first, last := min(nameCol, areaCol), max(nameCol, areaCol)
	rows, err := s.get(ctx, Range(s.tab, ColumnLetter(first)+":"+ColumnLetter(last)))
	if errors.Is(err, ErrTabNotFound) {
		return keys, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "leadstore: read dedup keys %q", s.tab)
	}
	cell := func(row []string, col int) string {
		if i := col - first; i < len(row) {
			return row[i]
		}
		return ""
	}

	want := strings.ToLower(strings.TrimSpace(area))
	for _, row := range rows[min(1, len(rows)):] {
		name := model.DedupKey(cell(row, nameCol))
		if name == "" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(cell(row, areaCol))) == want {
			keys[name] = struct{}{}
		}
	}
	return keys, nil
}

// Append writes lead as a new row and returns its 1-based row number, or -1
// when the backend's response does not name one.
func (s *Store) Append(ctx context.Context, lead model.Lead) (int, error) {
	names, _, err := s.headers(ctx)
	if err != nil {
		return -1, err
	}
	row := make([]string, len(names))
	for i, name := range names {
		row[i] = lead.Get(model.Column(strings.TrimSpace(name)))
	}

	updated, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.backend.Append(ctx, Range(s.tab, "A1"), row)
	})
	if err != nil {
		return -1, eris.Wrapf(err, "leadstore: append %q", lead.BusinessName)
	}
	return RowFromUpdatedRange(updated), nil
}

// Update writes every change to row in one batched request. A column that is
// not in the live header fails the whole update before anything is written.
func (s *Store) Update(ctx context.Context, row int, changes model.Changes) error {
	if row < 2 {
		return eris.Errorf("leadstore: invalid data row %d", row)
	}
	if len(changes) == 0 {
		return nil
	}
	_, h, err := s.headers(ctx)
	if err != nil {
		return err
	}

	updates := make([]CellUpdate, 0, len(changes))
	for c, v := range changes {
		col, ok := h[c]
		if !ok {
			return eris.Errorf("leadstore: column %q not in tab %q", c, s.tab)
		}
		updates = append(updates, CellUpdate{
			Range:  Range(s.tab, ColumnLetter(col)+strconv.Itoa(row)),
			Values: [][]string{{v}},
		})
	}

	sort.Slice(updates, func(i, j int) bool { return updates[i].Range < updates[j].Range })

	if err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.backend.BatchUpdate(ctx, updates)
	}); err != nil {
		return eris.Wrapf(err, "leadstore: update row %d", row)
	}
	return nil
}

// ReadRow re-reads a single row from the backend.
func (s *Store) ReadRow(ctx context.Context, row int) (model.Lead, error) {
	names, _, err := s.headers(ctx)
	if err != nil {
		return model.Lead{}, err
	}
	n := strconv.Itoa(row)
	rows, err := s.get(ctx, Range(s.tab, "A"+n+":"+lastCol+n))
	if err != nil {
		return model.Lead{}, eris.Wrapf(err, "leadstore: read row %d", row)
	}
	var vals []string
	if len(rows) > 0 {
		vals = rows[0]
	}
	return model.LeadFromRow(names, vals, row), nil
}

// SentPhones scans tabs for rows whose SMS was delivered and returns their
// phones in E.164 form. Best Phone is used, falling back to Biz Phone. Tabs
// that are missing or unreadable are skipped.
func (s *Store) SentPhones(ctx context.Context, tabs []string) (map[string]struct{}, error) {
	sent := make(map[string]struct{})
	seen := make(map[string]bool, len(tabs))
	for _, tab := range tabs {
		if tab == "" || seen[tab] {
			continue
		}
		seen[tab] = true

		leads, err := s.WithTab(tab).ReadAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("skipping tab in sent-phone scan", zap.String("tab", tab), zap.Error(err))
			continue
		}
		for _, l := range leads {
			if !strings.EqualFold(strings.TrimSpace(l.SMSSent), model.FlagYes) {
				continue
			}
			p := l.BestPhone
			if strings.TrimSpace(p) == "" {
				p = l.BizPhone
			}
			if e := phone.E164(p); e != "" {
				sent[e] = struct{}{}
			}
		}
	}
	return sent, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
