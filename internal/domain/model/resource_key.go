package model

import (
	"time"

	"ai-generation-queue/internal/domain"
)

// Service names a generation backend a resource key authenticates against.
const (
	ServiceOpenAI = "openai"
	ServiceGemini = "gemini"
)

// ServiceForKind maps a generation kind to the backend service whose
// credential pool it draws from.
func ServiceForKind(kind GenerationKind) string {
	if kind == KindVideo {
		return ServiceGemini
	}
	return ServiceOpenAI
}

// ResourceKey is one rotating external-service credential with a daily usage
// quota. UsageDay/UsageToday track usage inside the current UTC calendar day;
// a key whose UsageDay is stale counts as unused today.
type ResourceKey struct {
	ID         string     `json:"id"`
	Service    string     `json:"service"`
	Credential string     `json:"-"`
	DailyLimit int        `json:"daily_limit"`
	UsageDay   time.Time  `json:"usage_day"`
	UsageToday int        `json:"usage_today"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

func NewResourceKey(id, service, credential string, dailyLimit int) (*ResourceKey, error) {
	if id == "" || service == "" || credential == "" || dailyLimit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &ResourceKey{
		ID:         id,
		Service:    service,
		Credential: credential,
		DailyLimit: dailyLimit,
		IsActive:   true,
	}, nil
}

// UTCDay truncates t to the UTC calendar day the quota window is keyed on.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UsageOn returns the key's usage count within the given UTC day window.
func (k *ResourceKey) UsageOn(day time.Time) int {
	if !UTCDay(k.UsageDay).Equal(UTCDay(day)) {
		return 0
	}
	return k.UsageToday
}

// Exhausted reports whether the key is at or above its daily limit for day.
func (k *ResourceKey) Exhausted(day time.Time) bool {
	return k.UsageOn(day) >= k.DailyLimit
}
