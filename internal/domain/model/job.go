package model

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ai-generation-queue/internal/domain"
)

type JobStatus string

const (
	// JobStatusPending is a legacy synonym of queued; it is accepted on every
	// read path but new records are always written as queued.
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsWaiting reports whether a job is eligible for dispatch.
func (s JobStatus) IsWaiting() bool {
	return s == JobStatusQueued || s == JobStatusPending
}

// IsTerminal reports whether a job has reached an immutable end state.
// Failed jobs may still be re-queued, but only through an explicit
// user-initiated retry.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type GenerationKind string

const (
	KindImage GenerationKind = "image"
	KindVideo GenerationKind = "video"
	KindAudio GenerationKind = "audio"
)

func ParseKind(s string) (GenerationKind, error) {
	switch GenerationKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindImage:
		return KindImage, nil
	case KindVideo:
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// JobMetadata is the bounded, typed subset of request metadata plus an opaque
// side-channel for forward-compatible extension.
type JobMetadata struct {
	IsPublic          bool              `json:"is_public,omitempty"`
	SubscriptionLevel string            `json:"subscription_level,omitempty"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Job is the central entity driven through the admission/dispatch/recovery
// state machine. The tier configuration active at admission time is embedded
// as an immutable snapshot.
type Job struct {
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Kind   GenerationKind `json:"kind"`
	Prompt string         `json:"prompt"`
	Meta   JobMetadata    `json:"metadata"`

	Status   JobStatus  `json:"status"`
	Priority int        `json:"priority"`
	Tier     TierConfig `json:"tier"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`
	RetryCount  int `json:"retry_count"`

	TokensCharged int    `json:"tokens_charged"`
	Progress      int    `json:"progress"`
	ResourceKeyID string `json:"resource_key_id,omitempty"`
	Result        string `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`

	// QueuePosition is advisory display data, recomputed asynchronously.
	// It is never consulted for scheduling decisions.
	QueuePosition int `json:"queue_position,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJobID returns a ULID: lexicographic order matches creation order, which
// keeps FIFO tie-breaks stable.
func NewJobID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewJob constructs a queued job carrying a snapshot of the caller's tier.
func NewJob(userID string, kind GenerationKind, prompt string, meta JobMetadata, tier TierConfig) (*Job, error) {
	if userID == "" || prompt == "" {
		return nil, domain.ErrInvalidArgument
	}
	if tier.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Job{
		ID:          NewJobID(),
		UserID:      userID,
		Kind:        kind,
		Prompt:      prompt,
		Meta:        meta,
		Status:      JobStatusQueued,
		Priority:    tier.PriorityLevel,
		Tier:        tier,
		Attempts:    0,
		MaxAttempts: tier.MaxAttempts,
		Progress:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (j *Job) IsZero() bool { return j == nil || j.ID == "" }

// JobEvent names a cause of a status transition.
type JobEvent string

const (
	EventClaim     JobEvent = "claim"      // dispatcher wins the job
	EventComplete  JobEvent = "complete"   // generation succeeded
	EventRequeue   JobEvent = "requeue"    // retriable failure, attempts remain
	EventFail      JobEvent = "fail"       // terminal failure
	EventUserRetry JobEvent = "user_retry" // owner retries a failed job
	EventCancel    JobEvent = "cancel"     // owner cancels a waiting job
)

// NextStatus is the single transition table for the job state machine.
// Every status mutation in the system corresponds to one (current, event)
// pair here; anything else is rejected loudly.
func NextStatus(current JobStatus, ev JobEvent) (JobStatus, error) {
	switch ev {
	case EventClaim:
		if current.IsWaiting() {
			return JobStatusProcessing, nil
		}
	case EventComplete:
		if current == JobStatusProcessing {
			return JobStatusCompleted, nil
		}
	case EventRequeue:
		if current == JobStatusProcessing {
			return JobStatusQueued, nil
		}
	case EventFail:
		if current == JobStatusProcessing || current.IsWaiting() {
			return JobStatusFailed, nil
		}
	case EventUserRetry:
		if current == JobStatusFailed {
			return JobStatusQueued, nil
		}
	case EventCancel:
		if current.IsWaiting() {
			return JobStatusCancelled, nil
		}
	}
	return current, domain.ErrInvalidTransition
}
