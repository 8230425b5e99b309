// File: internal/infra/adapters/generation/router_test.go
//go:build !integration

package generation

import (
	"context"
	"testing"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
)

type recordingAdapter struct {
	name   string
	called *string
}

func (r *recordingAdapter) Generate(_ context.Context, _ model.GenerationKind, _ string, _ model.JobMetadata, _ string, _ adapter.ProgressFunc) (adapter.GenerationResult, error) {
	*r.called = r.name
	return adapter.GenerationResult{Ref: "ok"}, nil
}

func TestRouterDispatchesByKind(t *testing.T) {
	var called string
	router := NewRouter(map[model.GenerationKind]adapter.GenerationAdapter{
		model.KindImage: &recordingAdapter{name: "openai", called: &called},
		model.KindVideo: &recordingAdapter{name: "gemini", called: &called},
	})

	cases := []struct {
		kind model.GenerationKind
		want string
	}{
		{model.KindImage, "openai"},
		{model.KindVideo, "gemini"},
	}
	for _, tc := range cases {
		called = ""
		if _, err := router.Generate(context.Background(), tc.kind, "p", model.JobMetadata{}, "cred", nil); err != nil {
			t.Fatalf("Generate(%s): %v", tc.kind, err)
		}
		if called != tc.want {
			t.Errorf("kind %s routed to %q, want %q", tc.kind, called, tc.want)
		}
	}
}

func TestRouterUnknownKind(t *testing.T) {
	router := NewRouter(nil)
	if _, err := router.Generate(context.Background(), model.KindAudio, "p", model.JobMetadata{}, "cred", nil); err == nil {
		t.Fatal("expected error for unmapped kind")
	}
}

func TestNoopAdapterReportsProgress(t *testing.T) {
	a := NewNoopAdapter()
	a.Delay = 0

	var seen []int
	res, err := a.Generate(context.Background(), model.KindImage, "a cat", model.JobMetadata{}, "", func(p int) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.IsRaw() {
		t.Fatal("noop must return raw placeholder bytes")
	}
	if len(seen) != 3 {
		t.Errorf("progress reports = %v, want 3 milestones", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not increasing: %v", seen)
		}
	}
}
