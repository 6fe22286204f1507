package model

import "time"

// Campaign is a static, multi-area outreach campaign.
type Campaign struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category" yaml:"category"`
	Areas       []string `json:"areas" yaml:"areas"`
	Tab         string   `json:"tab" yaml:"tab"`
	Description string   `json:"description,omitempty" yaml:"description"`
	// StartHour and EndHour bound the send window in local time; EndHour is
	// inclusive through minute 59.
	StartHour int `json:"start_hour" yaml:"start_hour"`
	EndHour   int `json:"end_hour" yaml:"end_hour"`
}

// CampaignStatus is the outcome of a campaign invocation.
type CampaignStatus string

const (
	CampaignCompleted CampaignStatus = "completed"
	CampaignSkipped   CampaignStatus = "skipped"
)

// ReasonOutsideWindow marks a campaign skipped by the send window.
const ReasonOutsideWindow = "outside_send_window"

// CampaignResult reports one campaign invocation.
type CampaignResult struct {
	Status     CampaignStatus `json:"status"`
	CampaignID string         `json:"campaign_id"`
	Category   string         `json:"category,omitempty"`
	Tab        string         `json:"tab,omitempty"`

	// Set when skipped.
	Reason       string     `json:"reason,omitempty"`
	Window       string     `json:"window,omitempty"`
	LocalTime    string     `json:"current_time_local,omitempty"`
	NextEligible *time.Time `json:"next_eligible,omitempty"`
	Message      string     `json:"message,omitempty"`

	Areas []AreaSummary `json:"areas,omitempty"`
}

// AreaSummary is one area's pipeline summary inside a campaign run.
type AreaSummary struct {
	Area    string           `json:"area"`
	Summary *PipelineSummary `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}
