package adapter

import (
	"context"

	"ai-generation-queue/internal/domain/model"
)

// GenerationResult is what one backend call produced: either a reference
// (URL) to an already-hosted artifact, or raw bytes the caller must hand to
// the artifact store first.
type GenerationResult struct {
	Ref   string
	Bytes []byte
	// ContentType describes Bytes when present, e.g. "audio/mpeg".
	ContentType string
}

// IsRaw reports whether the result is raw binary data.
func (r GenerationResult) IsRaw() bool { return len(r.Bytes) > 0 }

// ProgressFunc reports a coarse progress milestone (0-100) for the running
// attempt. Implementations may call it zero or more times; values must be
// non-decreasing.
type ProgressFunc func(progress int)

// GenerationAdapter is the port for external generation backends. The
// credential comes from the resource pool per attempt, so adapters are
// stateless with respect to API keys. Calls may take seconds to minutes;
// errors are opaque strings surfaced into the job's error field.
type GenerationAdapter interface {
	Generate(ctx context.Context, kind model.GenerationKind, prompt string, meta model.JobMetadata, credential string, report ProgressFunc) (GenerationResult, error)
}
