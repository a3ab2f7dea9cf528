package catalog

import (
	"strings"
	"time"
)

// Status represents the workflow lifecycle of a catalog item.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusReview  Status = "review"
	StatusError   Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusDone,
	StatusReview,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known workflow statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// RecoveredNode is the sentinel node recorded when a running item is swept
// back to pending after an unclean shutdown.
const RecoveredNode = "recovered"

// HistoryLimit bounds the per-item event trail. Oldest entries are dropped
// first once the limit is reached.
const HistoryLimit = 100

// EventType classifies per-item history events.
type EventType string

const (
	EventRunning EventType = "running"
	EventPending EventType = "pending"
	EventError   EventType = "error"
	EventReview  EventType = "review"
	EventDone    EventType = "done"
	EventAttempt EventType = "attempt"
	EventReset   EventType = "reset"
)

// Event is one entry in an item's append-only workflow history.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Type      EventType      `json:"type"`
	Node      string         `json:"node"`
	Message   string         `json:"message,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Item represents a catalog entry persisted in SQLite. Stage-output fields
// are written by their owning stage handlers; the workflow core writes only
// the Workflow* bookkeeping fields.
type Item struct {
	ID            string
	ImagePath     string
	ImageFilename string
	DisplayTitle  string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	ExtractionTitle    string
	ExtractionTeam     string
	ExtractionTitleRaw string
	ExtractionTeamRaw  string
	ManualTitle        string
	ManualTeam         string

	IMDbQuery     string
	IMDbURL       string
	IMDbID        string
	IMDbStatus    string
	IMDbLastError string

	IMDbTitleES       string
	IMDbTitleESStatus string
	IMDbTitleESError  string

	OMDbRawJSON    string
	OMDbStatus     string
	OMDbLastError  string
	OMDbTitle      string
	OMDbYear       string
	OMDbGenre      string
	OMDbDirector   string
	OMDbActors     string
	OMDbPlotEN     string
	OMDbPlotES     string
	OMDbPoster     string
	OMDbIMDbRating string

	TranslationStatus string
	TranslationModel  string
	TranslationError  string

	WorkflowStatus       Status
	WorkflowCurrentNode  string
	WorkflowNeedsReview  bool
	WorkflowReviewReason string
	WorkflowAttempt      int
	WorkflowLastAction   string
	WorkflowLastError    string
	WorkflowHistory      []Event
}

// EffectiveTitle returns the operator override when present, otherwise the
// extracted title. The imdb stage searches on this value.
func (i *Item) EffectiveTitle() string {
	if title := strings.TrimSpace(i.ManualTitle); title != "" {
		return title
	}
	return strings.TrimSpace(i.ExtractionTitle)
}

// IsRunning reports whether the item is mid-run.
func (i *Item) IsRunning() bool {
	return i.WorkflowStatus == StatusRunning
}

// AppendEvent adds an event to the item's in-memory history, enforcing the
// FIFO cap. Persisting remains the store's job.
func (i *Item) AppendEvent(event Event) {
	i.WorkflowHistory = append(i.WorkflowHistory, event)
	if excess := len(i.WorkflowHistory) - HistoryLimit; excess > 0 {
		i.WorkflowHistory = i.WorkflowHistory[excess:]
	}
}
