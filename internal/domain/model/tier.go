package model

import (
	"ai-generation-queue/internal/domain"
)

// Well-known tier names. Accounts without an explicit tier fall back to free.
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// TierConfig is read-only reference data describing a service level.
// It is looked up at admission time and a copy is embedded into the job,
// so a later tier change never retroactively alters in-flight jobs.
type TierConfig struct {
	Name                  string `json:"name"`
	MaxConcurrentRequests int    `json:"max_concurrent_requests"`
	PriorityLevel         int    `json:"priority_level"`
	MaxQueueSize          int    `json:"max_queue_size"`
	MaxAttempts           int    `json:"max_attempts"`
}

func (t *TierConfig) IsZero() bool { return t == nil || t.Name == "" }

// NewTierConfig validates and constructs a tier.
func NewTierConfig(name string, maxConcurrent, priority, maxQueue, maxAttempts int) (*TierConfig, error) {
	if name == "" || maxConcurrent <= 0 || priority <= 0 || maxQueue <= 0 || maxAttempts <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &TierConfig{
		Name:                  name,
		MaxConcurrentRequests: maxConcurrent,
		PriorityLevel:         priority,
		MaxQueueSize:          maxQueue,
		MaxAttempts:           maxAttempts,
	}, nil
}

// Base token cost per generation kind.
const (
	costImage = 30
	costVideo = 50
	costAudio = 20
)

// TokenCost returns the token price of one job of the given kind under this
// tier. Enterprise gets 20% off, floored.
func (t *TierConfig) TokenCost(kind GenerationKind) int {
	var base int
	switch kind {
	case KindImage:
		base = costImage
	case KindVideo:
		base = costVideo
	case KindAudio:
		base = costAudio
	default:
		return 0
	}
	if t.Name == TierEnterprise {
		return base * 80 / 100
	}
	return base
}
