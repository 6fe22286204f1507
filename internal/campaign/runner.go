package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/pipeline"
)

// PipelineRunner runs one area and category pass.
type PipelineRunner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*model.PipelineSummary, error)
}

// Runner runs campaigns inside their send window.
type Runner struct {
	campaigns *Registry
	window    Window
	pipeline  PipelineRunner
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerClock sets the clock used for the window check.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner. window is used for campaigns that do not set
// their own hours.
func NewRunner(campaigns *Registry, window Window, p PipelineRunner, opts ...RunnerOption) *Runner {
	r := &Runner{campaigns: campaigns, window: window, pipeline: p, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Campaigns lists the known campaigns.
func (r *Runner) Campaigns() []model.Campaign {
	return r.campaigns.List()
}

// RunCampaign runs every area of campaign id in order on the campaign's tab.
// Outside the send window, unless force is set, nothing runs and a skipped
// result is returned. An area's failure is recorded on that area and the
// remaining areas still run.
func (r *Runner) RunCampaign(ctx context.Context, id string, force bool) (*model.CampaignResult, error) {
	c, ok := r.campaigns.Get(id)
	if !ok {
		return nil, eris.Errorf("campaign: unknown campaign %q", id)
	}
	log := zap.L().With(zap.String("campaign", c.ID))

	w := r.window.forCampaign(c.StartHour, c.EndHour)
	now := r.now()
	if !force && !w.Contains(now) {
		local := now.In(w.location()).Format("15:04 MST")
		next := w.NextOpen(now)
		log.Info("campaign: outside send window, skipping",
			zap.String("window", w.String()),
			zap.String("local_time", local),
			zap.Time("next_eligible", next),
		)
		return &model.CampaignResult{
			Status:       model.CampaignSkipped,
			CampaignID:   c.ID,
			Category:     c.Category,
			Tab:          c.Tab,
			Reason:       model.ReasonOutsideWindow,
			Window:       w.String(),
			LocalTime:    local,
			NextEligible: &next,
			Message:      fmt.Sprintf("Campaign runs only %s. Current time: %s.", w, local),
		}, nil
	}

	log.Info("campaign: starting", zap.Strings("areas", c.Areas), zap.Bool("forced", force))
	res := &model.CampaignResult{
		Status:     model.CampaignCompleted,
		CampaignID: c.ID,
		Category:   c.Category,
		Tab:        c.Tab,
		Window:     w.String(),
	}
	for _, area := range c.Areas {
		summary, err := r.pipeline.Run(ctx, pipeline.RunRequest{
			Area:       area,
			Category:   c.Category,
			Tab:        c.Tab,
			CampaignID: c.ID,
		})
		as := model.AreaSummary{Area: area, Summary: summary}
		if err != nil {
			log.Error("campaign: area failed", zap.String("area", area), zap.Error(err))
			as.Error = err.Error()
		}
		res.Areas = append(res.Areas, as)
	}
	log.Info("campaign: complete", zap.Int("areas", len(res.Areas)))
	return res, nil
}
