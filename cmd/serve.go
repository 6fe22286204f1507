package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/equestrolabs/leadgen-cli/internal/campaign"
	"github.com/equestrolabs/leadgen-cli/internal/model"
	"github.com/equestrolabs/leadgen-cli/internal/pipeline"
)

// defaultCampaignID is run when a campaign trigger names none.
const defaultCampaignID = "electrician_morgan_hill_south_bay"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server and daily scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLeadEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		sched := newScheduler(cfg, env)
		if sched.Enabled() {
			go sched.Run(ctx)
		} else {
			zap.L().Info("daily scheduler disabled")
		}

		handler := buildMux(ctx, serveDeps{
			Pipeline:   env.Pipeline,
			Campaigns:  env.Runner,
			Tables:     func(tab string) leadTable { return env.Table(tab) },
			DefaultTab: cfg.Sheets.DefaultTab,
			Scheduler:  sched,
			Origins:    cfg.Server.AllowedOrigins,
		})

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// campaignService runs campaigns by ID.
type campaignService interface {
	RunCampaign(ctx context.Context, id string, force bool) (*model.CampaignResult, error)
	Campaigns() []model.Campaign
}

// schedulerStatus reports the daily scheduler's configuration.
type schedulerStatus interface {
	Status() campaign.Status
}

// leadTable is the part of a lead table the server reads and writes.
type leadTable interface {
	EnsureTable(ctx context.Context) error
	ReadAll(ctx context.Context) ([]model.Lead, error)
	Append(ctx context.Context, lead model.Lead) (int, error)
}

// serveDeps are the services behind the HTTP routes. A nil service makes
// its routes answer 503.
type serveDeps struct {
	Pipeline   campaign.PipelineRunner
	Campaigns  campaignService
	Tables     func(tab string) leadTable
	DefaultTab string
	Scheduler  schedulerStatus
	Origins    []string
}

// buildMux registers every route. Background runs started by the async
// triggers are bound to ctx.
func buildMux(ctx context.Context, deps serveDeps) http.Handler {
	if deps.DefaultTab == "" {
		deps.DefaultTab = "Leads"
	}
	origins := deps.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/leads", func(r chi.Router) {
		r.Get("/", deps.listLeads)
		r.Post("/inject", deps.injectLead)
		r.Post("/run", deps.runAsync(ctx))
		r.Post("/run/sync", deps.runSync)
		r.Post("/campaign/run", deps.campaignAsync(ctx))
		r.Post("/campaign/run/sync", deps.campaignSync)
		r.Get("/scheduler/status", deps.schedulerStatus)
	})

	return r
}

func (d serveDeps) listLeads(w http.ResponseWriter, r *http.Request) {
	if d.Tables == nil {
		writeError(w, http.StatusServiceUnavailable, "lead table not configured")
		return
	}
	tab := firstNonEmpty(r.URL.Query().Get("sheet_tab"), r.URL.Query().Get("tab"), d.DefaultTab)
	leads, err := d.Tables(tab).ReadAll(r.Context())
	if err != nil {
		zap.L().Error("serve: read leads", zap.String("tab", tab), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

// injectRequest adds one hand-made lead, mostly for end-to-end checks.
type injectRequest struct {
	Area         string `json:"area"`
	Category     string `json:"category"`
	BusinessName string `json:"business_name"`
	BizPhone     string `json:"biz_phone"`
	Tab          string `json:"tab"`
}

func (d serveDeps) injectLead(w http.ResponseWriter, r *http.Request) {
	if d.Tables == nil {
		writeError(w, http.StatusServiceUnavailable, "lead table not configured")
		return
	}
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Area) == "" || strings.TrimSpace(req.Category) == "" {
		writeError(w, http.StatusBadRequest, "area and category are required")
		return
	}
	lead := model.Lead{
		ID:           uuid.NewString()[:8],
		BusinessName: firstNonEmpty(req.BusinessName, "E2E Test Lead"),
		Category:     req.Category,
		Area:         req.Area,
		BizPhone:     firstNonEmpty(req.BizPhone, "5550000000"),
		Status:       model.StatusSourced,
		SMSSent:      model.FlagNo,
		EmailSent:    model.FlagNo,
		DateAdded:    time.Now().Format(model.DateLayout),
		Notes:        "E2E test lead",
	}

	table := d.Tables(firstNonEmpty(req.Tab, d.DefaultTab))
	if err := table.EnsureTable(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	row, err := table.Append(r.Context(), lead)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":        true,
		"row_index": row,
		"message":   fmt.Sprintf("Injected %q. Run the pipeline with max_to_process=1.", lead.BusinessName),
	})
}

// runRequest reads area, category, tab and max_to_process from the query.
func runRequest(r *http.Request) (pipeline.RunRequest, error) {
	q := r.URL.Query()
	req := pipeline.RunRequest{
		Area:     strings.TrimSpace(q.Get("area")),
		Category: strings.TrimSpace(q.Get("category")),
		Tab:      strings.TrimSpace(q.Get("tab")),
	}
	if req.Area == "" || req.Category == "" {
		return req, errors.New("area and category are required")
	}
	if raw := q.Get("max_to_process"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, errors.New("max_to_process must be a non-negative integer")
		}
		req.MaxToProcess = n
	}
	return req, nil
}

func (d serveDeps) runAsync(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Pipeline == nil {
			writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
			return
		}
		req, err := runRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		go func() {
			summary, err := d.Pipeline.Run(ctx, req)
			if err != nil {
				zap.L().Error("serve: background run failed",
					zap.String("area", req.Area),
					zap.String("category", req.Category),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("serve: background run complete",
				zap.String("area", req.Area),
				zap.String("category", req.Category),
				zap.Int("new_leads", summary.NewLeads),
				zap.Int("touch1_sent", summary.Touch1Sent),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "started",
			"area":     req.Area,
			"category": req.Category,
			"message":  "Pipeline is running in the background. Refresh /leads to see results.",
		})
	}
}

func (d serveDeps) runSync(w http.ResponseWriter, r *http.Request) {
	if d.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	req, err := runRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := d.Pipeline.Run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// campaignRequest reads campaign_id and skip_time_check from the query.
func (d serveDeps) campaignRequest(w http.ResponseWriter, r *http.Request) (id string, force bool, ok bool) {
	if d.Campaigns == nil {
		writeError(w, http.StatusServiceUnavailable, "campaigns not configured")
		return "", false, false
	}
	q := r.URL.Query()
	id = firstNonEmpty(strings.TrimSpace(q.Get("campaign_id")), defaultCampaignID)
	if raw := q.Get("skip_time_check"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "skip_time_check must be a boolean")
			return "", false, false
		}
		force = v
	}
	if !hasCampaign(d.Campaigns.Campaigns(), id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown campaign %q", id))
		return "", false, false
	}
	return id, force, true
}

func (d serveDeps) campaignAsync(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, force, ok := d.campaignRequest(w, r)
		if !ok {
			return
		}

		go func() {
			result, err := d.Campaigns.RunCampaign(ctx, id, force)
			if err != nil {
				zap.L().Error("serve: background campaign failed", zap.String("campaign", id), zap.Error(err))
				return
			}
			zap.L().Info("serve: background campaign finished",
				zap.String("campaign", id),
				zap.String("status", string(result.Status)),
				zap.String("reason", result.Reason),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "started",
			"campaign_id": id,
			"message":     "Campaign running in background. It only sends inside its daily window. Refresh /leads for results.",
		})
	}
}

func (d serveDeps) campaignSync(w http.ResponseWriter, r *http.Request) {
	id, force, ok := d.campaignRequest(w, r)
	if !ok {
		return
	}
	result, err := d.Campaigns.RunCampaign(r.Context(), id, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (d serveDeps) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if d.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	writeJSON(w, http.StatusOK, d.Scheduler.Status())
}

func hasCampaign(campaigns []model.Campaign, id string) bool {
	for _, c := range campaigns {
		if c.ID == id {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
