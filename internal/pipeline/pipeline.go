// Package pipeline runs one sourcing, enrichment and drip pass for an area
// and category on a single lead table.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/equestrolabs/leadgen-cli/internal/bizfile"
	"github.com/equestrolabs/leadgen-cli/internal/contact"
	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/outreach"
	"github.com/equestrolabs/leadgen-cli/internal/sourcing"
	"github.com/equestrolabs/leadgen-cli/pkg/messaging"
)

// Table is the lead table a run reads and writes.
type Table interface {
	sourcing.Table
	EnsureTable(ctx context.Context) error
	ReadAll(ctx context.Context) ([]model.Lead, error)
	ReadRow(ctx context.Context, row int) (model.Lead, error)
	Update(ctx context.Context, row int, changes model.Changes) error
	SentPhones(ctx context.Context, tabs []string) (map[string]struct{}, error)
}

// TableFunc opens the table for a tab.
type TableFunc func(tab string) Table

// Sourcer appends new leads to a table.
type Sourcer interface {
	SourceLeads(ctx context.Context, table sourcing.Table, area, category string) ([]model.Lead, error)
}

// OwnerLookup finds a business's registered owner.
type OwnerLookup interface {
	Lookup(ctx context.Context, name string) bizfile.LookupResult
}

// ContactResolver finds an owner's phone and email.
type ContactResolver interface {
	Resolve(ctx context.Context, first, last, state, preferredCity string) contact.Result
}

// RunRecorder records pipeline runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, input model.RunInput) (*model.Run, error)
	CompleteRun(ctx context.Context, id string, summary *model.PipelineSummary) error
	FailRun(ctx context.Context, id string, errMsg string) error
}

// Config controls a pipeline.
type Config struct {
	DefaultTab    string
	MaxConcurrent int
	// Touch2Delay is the wait in days after Touch 1; Touch3Delay the wait
	// after Touch 2.
	Touch2Delay int
	Touch3Delay int
	// DedupTabs are scanned for phones that already received Touch 1, in
	// addition to the run's own tab.
	DedupTabs     []string
	Sender        string
	Website       string
	CallbackPhone string
}

// RunRequest selects what a run works on.
type RunRequest struct {
	Area       string `json:"area"`
	Category   string `json:"category"`
	Tab        string `json:"tab,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	// MaxToProcess caps how many leads are enriched; zero means no cap.
	MaxToProcess int `json:"max_to_process,omitempty"`
}

// Pipeline wires the lead table to the lookup and delivery services.
type Pipeline struct {
	cfg      Config
	tables   TableFunc
	sourcer  Sourcer
	registry OwnerLookup
	contacts ContactResolver
	sms      messaging.SMSSender
	email    messaging.EmailSender
	runs     RunRecorder
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunRecorder records each run.
func WithRunRecorder(r RunRecorder) Option {
	return func(p *Pipeline) {
		p.runs = r
	}
}

// WithClock sets the clock used for dates and notes.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline.
func New(
	cfg Config,
	tables TableFunc,
	sourcer Sourcer,
	registry OwnerLookup,
	contacts ContactResolver,
	sms messaging.SMSSender,
	email messaging.EmailSender,
	opts ...Option,
) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Touch2Delay <= 0 {
		cfg.Touch2Delay = 3
	}
	if cfg.Touch3Delay <= 0 {
		cfg.Touch3Delay = 4
	}
	if cfg.DefaultTab == "" {
		cfg.DefaultTab = "Leads"
	}
	p := &Pipeline{
		cfg:      cfg,
		tables:   tables,
		sourcer:  sourcer,
		registry: registry,
		contacts: contacts,
		sms:      sms,
		email:    email,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run sources, enriches and follows up leads for one area and category.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*model.PipelineSummary, error) {
	if req.Tab == "" {
		req.Tab = p.cfg.DefaultTab
	}
	log := zap.L().With(
		zap.String("area", req.Area),
		zap.String("category", req.Category),
		zap.String("tab", req.Tab),
	)
	log.Info("pipeline: starting run", zap.Int("max_to_process", req.MaxToProcess))

	var runID string
	if p.runs != nil {
		run, err := p.runs.CreateRun(ctx, model.RunInput{
			Area:       req.Area,
			Category:   req.Category,
			Tab:        req.Tab,
			CampaignID: req.CampaignID,
		})
		if err != nil {
			log.Warn("pipeline: failed to record run", zap.Error(err))
		} else {
			runID = run.ID
		}
	}

	summary, err := p.run(ctx, p.tables(req.Tab), req)

	if runID != "" {
		// Record the outcome even if ctx was cancelled mid-run.
		recCtx := context.WithoutCancel(ctx)
		if err != nil {
			if recErr := p.runs.FailRun(recCtx, runID, err.Error()); recErr != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(recErr))
			}
		} else if recErr := p.runs.CompleteRun(recCtx, runID, summary); recErr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(recErr))
		}
	}

	if err != nil {
		log.Error("pipeline: run failed", zap.Error(err))
		return nil, err
	}
	log.Info("pipeline: run complete",
		zap.Int("new_leads", summary.NewLeads),
		zap.Int("pending", summary.Pending),
		zap.Int("enriched", summary.Enriched),
		zap.Int("touch1_sent", summary.Touch1Sent),
		zap.Int("touch2_sent", summary.Touch2Sent),
		zap.Int("touch3_sent", summary.Touch3Sent),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, table Table, req RunRequest) (*model.PipelineSummary, error) {
	summary := &model.PipelineSummary{
		Area:      req.Area,
		Category:  req.Category,
		Tab:       req.Tab,
		StartedAt: p.now(),
	}

	if err := table.EnsureTable(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: ensure table")
	}

	newLeads, err := p.sourcer.SourceLeads(ctx, table, req.Area, req.Category)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: source leads")
	}
	summary.NewLeads = len(newLeads)

	pending, err := p.pendingTouch1(ctx, table, req.Area, req.Category, newLeads)
	if err != nil {
		return nil, err
	}
	summary.Pending = len(pending)

	toEnrich := append(append([]model.Lead{}, newLeads...), pending...)
	if req.MaxToProcess > 0 && len(toEnrich) > req.MaxToProcess {
		zap.L().Info("pipeline: limiting leads to enrich",
			zap.Int("limit", req.MaxToProcess),
			zap.Int("candidates", len(toEnrich)),
		)
		toEnrich = toEnrich[:req.MaxToProcess]
	}

	if len(toEnrich) > 0 {
		ledger, err := p.phoneLedger(ctx, table, req.Tab)
		if err != nil {
			return nil, err
		}
		summary.Results = p.enrichAll(ctx, table, ledger, toEnrich)
	}
	for _, r := range summary.Results {
		if r.Registry == model.OutcomeFound {
			summary.Enriched++
		}
		if r.Touch1Sent {
			summary.Touch1Sent++
		}
	}

	summary.Touch2Sent, summary.Touch3Sent, err = p.runDripFollowups(ctx, table, req.Area, req.Category)
	if err != nil {
		return nil, err
	}

	summary.FinishedAt = p.now()
	return summary, nil
}

// pendingTouch1 returns stored leads still waiting for Touch 1, excluding the
// leads just sourced.
func (p *Pipeline) pendingTouch1(ctx context.Context, table Table, area, category string, fresh []model.Lead) ([]model.Lead, error) {
	all, err := table.ReadAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read pending leads")
	}
	freshNames := make(map[string]struct{}, len(fresh))
	for _, l := range fresh {
		freshNames[model.DedupKey(l.BusinessName)] = struct{}{}
	}

	var pending []model.Lead
	for _, l := range all {
		if !matches(l, area, category) || !statusOf(l).Touch1Eligible() {
			continue
		}
		if sent(l.SMSSent) || l.DripStep != 0 {
			continue
		}
		if _, ok := freshNames[model.DedupKey(l.BusinessName)]; ok {
			continue
		}
		pending = append(pending, l)
	}
	return pending, nil
}

func (p *Pipeline) phoneLedger(ctx context.Context, table Table, tab string) (*outreach.PhoneLedger, error) {
	tabs := append([]string{tab}, p.cfg.DedupTabs...)
	phones, err := table.SentPhones(ctx, tabs)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load sent phones")
	}
	zap.L().Debug("pipeline: phone ledger loaded", zap.Int("phones", len(phones)), zap.Int("tabs", len(tabs)))
	return outreach.NewPhoneLedger(phones), nil
}

// enrichAll runs enrichAndTouch1 over leads with bounded concurrency. One
// lead's failure never affects another's.
func (p *Pipeline) enrichAll(ctx context.Context, table Table, ledger *outreach.PhoneLedger, leads []model.Lead) []model.LeadResult {
	results := make([]model.LeadResult, len(leads))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrent)
	for i, lead := range leads {
		g.Go(func() error {
			r := p.enrichAndTouch1(gctx, table, ledger, lead)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func matches(l model.Lead, area, category string) bool {
	return strings.EqualFold(strings.TrimSpace(l.Area), strings.TrimSpace(area)) &&
		strings.EqualFold(strings.TrimSpace(l.Category), strings.TrimSpace(category))
}

func statusOf(l model.Lead) model.LeadStatus {
	return model.LeadStatus(strings.ToLower(strings.TrimSpace(string(l.Status))))
}

func sent(flag string) bool {
	return strings.EqualFold(strings.TrimSpace(flag), model.FlagYes)
}

func (p *Pipeline) today() string {
	return p.now().Format(model.DateLayout)
}

func (p *Pipeline) daysFromToday(n int) string {
	return p.now().AddDate(0, 0, n).Format(model.DateLayout)
}

func (p *Pipeline) stamp() string {
	return p.now().Format("2006-01-02 15:04")
}

func (p *Pipeline) params(l model.Lead) outreach.Params {
	business := l.BusinessName
	if business == "" {
		business = "your company"
	}
	return outreach.Params{
		Name:          outreach.FirstName(l.OwnerName),
		Business:      business,
		Category:      outreach.NormalizeCategory(l.Category),
		Area:          outreach.StripArea(l.Area),
		Sender:        p.cfg.Sender,
		Website:       p.cfg.Website,
		CallbackPhone: p.cfg.CallbackPhone,
	}
}
