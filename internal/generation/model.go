package generation

import (
	"encoding/json"
	"time"
)

// Mode selects how many offers a task adapts against.
const (
	ModeSingle = "single"
	ModeMulti  = "multi"
)

// Task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
)

// Offer statuses.
const (
	OfferPending    = "pending"
	OfferExtracting = "extracting"
	OfferRunning    = "running"
	OfferCompleted  = "completed"
	OfferFailed     = "failed"
	OfferCancelled  = "cancelled"
)

// offerActive reports whether the offer has not reached a terminal status.
func offerActive(status string) bool {
	return status == OfferPending || status == OfferExtracting || status == OfferRunning
}

// Subtask statuses.
const (
	SubtaskPending   = "pending"
	SubtaskRunning   = "running"
	SubtaskCompleted = "completed"
	SubtaskFailed    = "failed"
)

// Pipeline phases, in execution order.
const (
	PhaseExtraction     = "extraction"
	PhaseClassification = "classification"
	PhaseExperiences    = "batch_experiences"
	PhaseProjects       = "batch_projects"
	PhaseExtras         = "batch_extras"
	PhaseSkills         = "batch_skills"
	PhaseSummary        = "batch_summary"
	PhaseRecompose      = "recompose"
)

// Task is one generation request covering one or more job offers.
type Task struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	ResumeID        string    `json:"resumeId"`
	Mode            string    `json:"mode"`
	Status          string    `json:"status"`
	CreditCost      int       `json:"creditCost"`
	CreditsRefunded int       `json:"creditsRefunded"`
	CompletedOffers int       `json:"completedOffers"`
	TotalOffers     int       `json:"totalOffers"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Offer tracks the adaptation of the source resume against one job posting.
type Offer struct {
	ID                string          `json:"id"`
	TaskID            string          `json:"taskId"`
	OfferIndex        int             `json:"offerIndex"`
	JobPostingID      string          `json:"jobPostingId"`
	JobTitle          string          `json:"jobTitle,omitempty"`
	Status            string          `json:"status"`
	CreditsRefunded   bool            `json:"creditsRefunded"`
	GeneratedResumeID string          `json:"generatedResumeId,omitempty"`
	BatchResults      json.RawMessage `json:"batchResults,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Subtask is one unit of LLM work inside an offer. Batch phases create one
// subtask per item, the other phases exactly one.
type Subtask struct {
	ID               string          `json:"id"`
	OfferID          string          `json:"offerId"`
	Phase            string          `json:"phase"`
	ItemIndex        int             `json:"itemIndex"`
	Status           string          `json:"status"`
	RetryCount       int             `json:"retryCount"`
	Output           json.RawMessage `json:"output,omitempty"`
	ModelUsed        string          `json:"modelUsed,omitempty"`
	PromptTokens     int             `json:"promptTokens"`
	CachedTokens     int             `json:"cachedTokens"`
	CompletionTokens int             `json:"completionTokens"`
	EstimatedCost    float64         `json:"estimatedCost"`
	DurationMs       int64           `json:"durationMs"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}
