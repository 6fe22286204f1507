package campaign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/pipeline"
)

// Pair is one scheduled area and category.
type Pair struct {
	Area     string `json:"area"`
	Category string `json:"category"`
}

// ParsePairs parses "Morgan Hill CA|plumber,Morgan Hill CA|electrician".
// Tokens without a "|" are ignored.
func ParsePairs(raw string) []Pair {
	var pairs []Pair
	for _, tok := range strings.Split(raw, ",") {
		area, category, ok := strings.Cut(strings.TrimSpace(tok), "|")
		if !ok {
			continue
		}
		area, category = strings.TrimSpace(area), strings.TrimSpace(category)
		if area == "" || category == "" {
			continue
		}
		pairs = append(pairs, Pair{Area: area, Category: category})
	}
	return pairs
}

// ScheduleConfig configures a Scheduler.
type ScheduleConfig struct {
	Pairs        []Pair
	Hour         int
	Minute       int
	Loc          *time.Location
	PollInterval time.Duration
	MaxToProcess int
}

// Scheduler runs the pipeline for every configured pair once per local
// calendar day at Hour:Minute.
type Scheduler struct {
	cfg      ScheduleConfig
	pipeline PipelineRunner
	now      func() time.Time

	mu      sync.Mutex
	lastRun string
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock sets the scheduler's clock.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg ScheduleConfig, p PipelineRunner, opts ...SchedulerOption) *Scheduler {
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	s := &Scheduler{cfg: cfg, pipeline: p, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled reports whether any pair is scheduled.
func (s *Scheduler) Enabled() bool { return len(s.cfg.Pairs) > 0 }

// Run polls the clock until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "campaign.scheduler"))
	if !s.Enabled() {
		log.Info("scheduler: no pairs configured, auto-pipeline disabled")
		return
	}
	log.Info("scheduler: started",
		zap.String("schedule", s.scheduleString()),
		zap.Int("pairs", len(s.cfg.Pairs)),
		zap.Time("next_run", s.NextRun()),
	)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			log.Info("scheduler: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick fires the pairs if the clock reads the scheduled minute and they have
// not run yet today. It reports whether it fired.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now().In(s.cfg.Loc)
	today := now.Format(model.DateLayout)

	s.mu.Lock()
	due := now.Hour() == s.cfg.Hour && now.Minute() == s.cfg.Minute && s.lastRun != today
	if due {
		s.lastRun = today
	}
	s.mu.Unlock()
	if !due {
		return false
	}

	log := zap.L().With(zap.String("component", "campaign.scheduler"))
	log.Info("scheduler: firing", zap.Int("pairs", len(s.cfg.Pairs)), zap.String("local_time", now.Format("2006-01-02 15:04 MST")))
	for _, pair := range s.cfg.Pairs {
		if ctx.Err() != nil {
			return true
		}
		summary, err := s.pipeline.Run(ctx, pipeline.RunRequest{
			Area:         pair.Area,
			Category:     pair.Category,
			MaxToProcess: s.cfg.MaxToProcess,
		})
		if err != nil {
			log.Error("scheduler: pipeline failed", zap.String("area", pair.Area), zap.String("category", pair.Category), zap.Error(err))
			continue
		}
		log.Info("scheduler: pipeline done",
			zap.String("area", pair.Area),
			zap.String("category", pair.Category),
			zap.Int("new_leads", summary.NewLeads),
			zap.Int("touch1_sent", summary.Touch1Sent),
		)
	}
	return true
}

// NextRun returns the next scheduled firing time.
func (s *Scheduler) NextRun() time.Time {
	now := s.now().In(s.cfg.Loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Hour, s.cfg.Minute, 0, 0, s.cfg.Loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Status describes the scheduler for the trigger server.
type Status struct {
	Enabled  bool   `json:"enabled"`
	Pairs    []Pair `json:"campaigns"`
	Schedule string `json:"schedule"`
	Now      string `json:"now_local"`
	NextRun  string `json:"next_run_local"`
}

// Status reports the current configuration and next run.
func (s *Scheduler) Status() Status {
	const layout = "2006-01-02 15:04 MST"
	return Status{
		Enabled:  s.Enabled(),
		Pairs:    s.cfg.Pairs,
		Schedule: s.scheduleString(),
		Now:      s.now().In(s.cfg.Loc).Format(layout),
		NextRun:  s.NextRun().Format(layout),
	}
}

func (s *Scheduler) scheduleString() string {
	return fmt.Sprintf("Daily at %02d:%02d %s", s.cfg.Hour, s.cfg.Minute, s.cfg.Loc)
}
