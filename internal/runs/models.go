package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a run attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScraping  Status = "scraping"
	StatusScraped   Status = "scraped"
	StatusCleaning  Status = "cleaning"
	StatusCleaned   Status = "cleaned"
	StatusLoading   Status = "loading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// InterruptedReason is recorded on runs reclaimed after a crash or shutdown.
const InterruptedReason = "Run interrupted before completion"

var allStatuses = []Status{
	StatusPending,
	StatusScraping,
	StatusScraped,
	StatusCleaning,
	StatusCleaned,
	StatusLoading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Statuses left behind by an interrupted process. Done statuses between
// stages count too since the attempt never reached completed.
var inFlightStatuses = []Status{
	StatusPending,
	StatusScraping,
	StatusScraped,
	StatusCleaning,
	StatusCleaned,
	StatusLoading,
}

var processingStatuses = map[Status]struct{}{
	StatusScraping: {},
	StatusCleaning: {},
	StatusLoading:  {},
}

// Run is one attempt of the scrape → clean → load pipeline.
type Run struct {
	ID           int64
	RunID        string
	Status       Status
	Attempt      int
	Trigger      Trigger
	RawCount     int
	RecordCount  int
	LoadedCount  int
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	UpdatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
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

// IsProcessingStatus reports whether a status reflects a stage in progress.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the run has finished, successfully or not.
func (r Run) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Duration is the wall time between start and finish, or zero if either is unset.
func (r Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkStarted stamps the start time once.
func (r *Run) MarkStarted(now time.Time) {
	if r.StartedAt == nil {
		t := now.UTC()
		r.StartedAt = &t
	}
}

// SetFailed records a failure with its message and finish time.
func (r *Run) SetFailed(message string, now time.Time) {
	r.Status = StatusFailed
	r.ErrorMessage = strings.TrimSpace(message)
	t := now.UTC()
	r.FinishedAt = &t
}

// SetCompleted records successful completion.
func (r *Run) SetCompleted(now time.Time) {
	r.Status = StatusCompleted
	r.ErrorMessage = ""
	t := now.UTC()
	r.FinishedAt = &t
}
