// File: internal/infra/adapters/generation/router.go
package generation

import (
	"context"
	"fmt"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*Router)(nil)

// Router dispatches each generation kind to its backend adapter. Each
// backend adapter is responsible for its own default model.
type Router struct {
	byKind map[model.GenerationKind]adapter.GenerationAdapter
}

func NewRouter(byKind map[model.GenerationKind]adapter.GenerationAdapter) *Router {
	return &Router{byKind: byKind}
}

// NewDefaultRouter wires the standard kind-to-backend mapping: OpenAI for
// images and speech, Gemini for video.
func NewDefaultRouter(openai *OpenAIAdapter, gemini *GeminiAdapter) *Router {
	return NewRouter(map[model.GenerationKind]adapter.GenerationAdapter{
		model.KindImage: openai,
		model.KindAudio: openai,
		model.KindVideo: gemini,
	})
}

func (r *Router) Generate(ctx context.Context, kind model.GenerationKind, prompt string, meta model.JobMetadata, credential string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	backend := r.byKind[kind]
	if backend == nil {
		return adapter.GenerationResult{}, fmt.Errorf("no backend for kind %q", kind)
	}
	return backend.Generate(ctx, kind, prompt, meta, credential, report)
}
