package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/equestrolabs/leadgen-cli/internal/bizfile"
	"github.com/equestrolabs/leadgen-cli/internal/contact"
	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/phone"
)

// --- In-memory lead table ---

type memTable struct {
	mu      sync.Mutex
	rows    map[int]model.Lead
	next    int
	updates map[int][]model.Changes
	sent    map[string]struct{}

	updateErr error
	readErr   error
	rowErr    error
}

func newMemTable(leads ...model.Lead) *memTable {
	t := &memTable{rows: map[int]model.Lead{}, next: 2, updates: map[int][]model.Changes{}}
	for _, l := range leads {
		l.Row = t.next
		t.rows[t.next] = l
		t.next++
	}
	return t
}

func (t *memTable) EnsureTable(context.Context) error { return nil }

func (t *memTable) LoadDedupKeys(_ context.Context, area string) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := map[string]struct{}{}
	for _, l := range t.rows {
		if strings.EqualFold(strings.TrimSpace(l.Area), strings.TrimSpace(area)) {
			keys[model.DedupKey(l.BusinessName)] = struct{}{}
		}
	}
	return keys, nil
}

func (t *memTable) Append(_ context.Context, lead model.Lead) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.next
	t.next++
	lead.Row = row
	t.rows[row] = lead
	return row, nil
}

func (t *memTable) ReadAll(context.Context) ([]model.Lead, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	out := make([]model.Lead, 0, len(t.rows))
	for _, l := range t.rows {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out, nil
}

func (t *memTable) ReadRow(_ context.Context, row int) (model.Lead, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rowErr != nil {
		return model.Lead{}, t.rowErr
	}
	return t.rows[row], nil
}

func (t *memTable) Update(_ context.Context, row int, changes model.Changes) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.updateErr != nil {
		return t.updateErr
	}
	l, ok := t.rows[row]
	if !ok {
		return eris.Errorf("memtable: no row %d", row)
	}
	l.Apply(changes)
	t.rows[row] = l
	t.updates[row] = append(t.updates[row], changes)
	return nil
}

func (t *memTable) SentPhones(context.Context, []string) (map[string]struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[string]struct{}{}
	for p := range t.sent {
		out[p] = struct{}{}
	}
	for _, l := range t.rows {
		if sent(l.SMSSent) {
			p := l.BestPhone
			if p == "" {
				p = l.BizPhone
			}
			if e := phone.E164(p); e != "" {
				out[e] = struct{}{}
			}
		}
	}
	return out, nil
}

func (t *memTable) row(n int) model.Lead {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows[n]
}

func (t *memTable) updateCount(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.updates[n])
}

// --- Registry and contact mocks ---

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Lookup(ctx context.Context, name string) bizfile.LookupResult {
	args := m.Called(ctx, name)
	return args.Get(0).(bizfile.LookupResult)
}

type mockContacts struct {
	mock.Mock
}

func (m *mockContacts) Resolve(ctx context.Context, first, last, state, city string) contact.Result {
	args := m.Called(ctx, first, last, state, city)
	return args.Get(0).(contact.Result)
}

// --- Senders ---

type sentSMS struct {
	To   string
	Text string
}

type recordingSMS struct {
	mu   sync.Mutex
	sent []sentSMS
	fail map[string]bool
}

func (r *recordingSMS) SendSMS(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[to] {
		return eris.New("sms bridge: not delivered")
	}
	r.sent = append(r.sent, sentSMS{To: to, Text: text})
	return nil
}

func (r *recordingSMS) messages() []sentSMS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentSMS(nil), r.sent...)
}

type sentEmail struct {
	To, Subject, Body string
}

type recordingEmail struct {
	sent []sentEmail
	err  error
}

func (r *recordingEmail) SendEmail(_ context.Context, to, subject, body string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

// --- Run recorder ---

type recordedRun struct {
	input    model.RunInput
	summary  *model.PipelineSummary
	failure  string
	complete bool
}

type memRuns struct {
	runs []*recordedRun
}

func (m *memRuns) CreateRun(_ context.Context, input model.RunInput) (*model.Run, error) {
	m.runs = append(m.runs, &recordedRun{input: input})
	return &model.Run{ID: "run-1", Input: input, Status: model.RunStatusRunning}, nil
}

func (m *memRuns) CompleteRun(_ context.Context, _ string, s *model.PipelineSummary) error {
	r := m.runs[len(m.runs)-1]
	r.summary, r.complete = s, true
	return nil
}

func (m *memRuns) FailRun(_ context.Context, _ string, msg string) error {
	m.runs[len(m.runs)-1].failure = msg
	return nil
}

// --- Helpers ---

var testNow = time.Date(2026, 2, 20, 10, 30, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		DefaultTab:    "Leads",
		MaxConcurrent: 2,
		Touch2Delay:   3,
		Touch3Delay:   4,
		Website:       "equestrolabs.com",
		CallbackPhone: "+14087896543",
	}
}

func notFound() bizfile.LookupResult {
	return bizfile.LookupResult{Outcome: model.OutcomeNotFound, Reason: model.ReasonNoResults}
}

func foundOwner(name, city string) bizfile.LookupResult {
	return bizfile.LookupResult{Outcome: model.OutcomeFound, OwnerName: name, OwnerCity: city, OwnerState: "CA", Source: "row"}
}
