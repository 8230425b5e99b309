// File: internal/infra/adapters/generation/gemini_adapter.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
)

var _ adapter.GenerationAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements video generation through the Veo long-running
// operation API. Because the credential rotates per attempt, a fresh SDK
// client is built per call; the SDK client is cheap, the operation is not.
type GeminiAdapter struct {
	videoModel   string
	pollInterval time.Duration
}

func NewGeminiAdapter(videoModel string) *GeminiAdapter {
	if videoModel == "" {
		videoModel = "veo-2.0-generate-001"
	}
	return &GeminiAdapter{videoModel: videoModel, pollInterval: 10 * time.Second}
}

func (g *GeminiAdapter) Generate(ctx context.Context, kind model.GenerationKind, prompt string, _ model.JobMetadata, credential string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	if kind != model.KindVideo {
		return adapter.GenerationResult{}, fmt.Errorf("gemini: unsupported kind %q", kind)
	}
	if credential == "" {
		return adapter.GenerationResult{}, errors.New("gemini: empty api key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return adapter.GenerationResult{}, err
	}

	op, err := client.Models.GenerateVideos(ctx, g.videoModel, prompt, nil, nil)
	if err != nil {
		return adapter.GenerationResult{}, fmt.Errorf("gemini: start video generation: %w", err)
	}

	// Veo operations run for minutes. Progress creeps toward the upper
	// bound so watchers see movement while we poll.
	progress := 20
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for !op.Done {
		select {
		case <-ctx.Done():
			return adapter.GenerationResult{}, ctx.Err()
		case <-ticker.C:
		}
		op, err = client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return adapter.GenerationResult{}, fmt.Errorf("gemini: poll video operation: %w", err)
		}
		if report != nil && progress < 80 {
			progress += 10
			report(progress)
		}
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return adapter.GenerationResult{}, errors.New("gemini: operation finished with no video")
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil {
		return adapter.GenerationResult{}, errors.New("gemini: operation finished with no video")
	}
	if len(video.VideoBytes) > 0 {
		ct := video.MIMEType
		if ct == "" {
			ct = "video/mp4"
		}
		return adapter.GenerationResult{Bytes: video.VideoBytes, ContentType: ct}, nil
	}
	if video.URI == "" {
		return adapter.GenerationResult{}, errors.New("gemini: video has neither bytes nor uri")
	}
	return adapter.GenerationResult{Ref: video.URI}, nil
}
