// File: internal/infra/adapters/generation/noop.go
package generation

import (
	"context"
	"fmt"
	"time"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*NoopAdapter)(nil)

// NoopAdapter simulates a backend for local/dev runs: a short delay, a few
// progress reports and a placeholder artifact. No real API calls are made.
type NoopAdapter struct {
	Delay time.Duration
}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{Delay: 500 * time.Millisecond}
}

func (a *NoopAdapter) Generate(ctx context.Context, kind model.GenerationKind, prompt string, _ model.JobMetadata, _ string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	for _, p := range []int{25, 50, 75} {
		select {
		case <-time.After(a.Delay / 4):
		case <-ctx.Done():
			return adapter.GenerationResult{}, ctx.Err()
		}
		if report != nil {
			report(p)
		}
	}
	data := fmt.Sprintf("noop %s for prompt: %s", kind, prompt)
	return adapter.GenerationResult{Bytes: []byte(data), ContentType: "text/plain"}, nil
}
