package model

import "time"

// RunStatus represents the state of a recorded pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunInput identifies what a pipeline run is working on.
type RunInput struct {
	Area       string `json:"area"`
	Category   string `json:"category"`
	Tab        string `json:"tab"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// Run is a persisted record of one pipeline run.
type Run struct {
	ID        string           `json:"id"`
	Input     RunInput         `json:"input"`
	Status    RunStatus        `json:"status"`
	Summary   *PipelineSummary `json:"summary,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// PipelineSummary counts what one pipeline run did.
type PipelineSummary struct {
	Area       string       `json:"area"`
	Category   string       `json:"category"`
	Tab        string       `json:"tab"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	NewLeads   int          `json:"new_leads"`
	Pending    int          `json:"pending"`
	Enriched   int          `json:"enriched"`
	Touch1Sent int          `json:"touch1_sent"`
	Touch2Sent int          `json:"touch2_sent"`
	Touch3Sent int          `json:"touch3_sent"`
	Results    []LeadResult `json:"results,omitempty"`
}

// LeadResult is the per-lead outcome of enrichment and Touch 1.
type LeadResult struct {
	Row          int        `json:"row"`
	BusinessName string     `json:"business_name"`
	Status       LeadStatus `json:"status,omitempty"`
	Registry     Outcome    `json:"registry,omitempty"`
	Contact      Outcome    `json:"contact,omitempty"`
	Touch1Sent   bool       `json:"touch1_sent"`
	Skipped      string     `json:"skipped,omitempty"`
	Error        string     `json:"error,omitempty"`
}
