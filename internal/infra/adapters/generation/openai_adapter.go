// File: internal/infra/adapters/generation/openai_adapter.go
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.GenerationAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements image and speech generation against the OpenAI
// REST API. The API key is supplied per call from the resource pool, so one
// adapter instance serves every key.
type OpenAIAdapter struct {
	base       string // e.g., https://api.openai.com/v1
	imageModel string
	audioModel string
	audioVoice string
	client     *http.Client
}

func NewOpenAIAdapter(imageModel, audioModel, audioVoice string) *OpenAIAdapter {
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	if audioModel == "" {
		audioModel = "tts-1"
	}
	if audioVoice == "" {
		audioVoice = "alloy"
	}
	return &OpenAIAdapter{
		base:       "https://api.openai.com/v1",
		imageModel: imageModel,
		audioModel: audioModel,
		audioVoice: audioVoice,
		client:     &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIAdapter) Generate(ctx context.Context, kind model.GenerationKind, prompt string, _ model.JobMetadata, credential string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	switch kind {
	case model.KindImage:
		return o.generateImage(ctx, prompt, credential, report)
	case model.KindAudio:
		return o.generateSpeech(ctx, prompt, credential, report)
	default:
		return adapter.GenerationResult{}, fmt.Errorf("openai: unsupported kind %q", kind)
	}
}

func (o *OpenAIAdapter) generateImage(ctx context.Context, prompt, credential string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	reqBody := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		N      int    `json:"n"`
		Size   string `json:"size"`
	}{Model: o.imageModel, Prompt: prompt, N: 1, Size: "1024x1024"}

	var payload struct {
		Data []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := o.post(ctx, "/images/generations", credential, reqBody, &payload); err != nil {
		return adapter.GenerationResult{}, err
	}
	if report != nil {
		report(80)
	}
	if len(payload.Data) == 0 {
		return adapter.GenerationResult{}, errors.New("openai: empty image response")
	}
	if payload.Data[0].URL != "" {
		return adapter.GenerationResult{Ref: payload.Data[0].URL}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload.Data[0].B64JSON)
	if err != nil {
		return adapter.GenerationResult{}, fmt.Errorf("openai: decode image: %w", err)
	}
	return adapter.GenerationResult{Bytes: raw, ContentType: "image/png"}, nil
}

// generateSpeech returns raw mp3 bytes; the speech endpoint has no hosted
// output.
func (o *OpenAIAdapter) generateSpeech(ctx context.Context, prompt, credential string, report adapter.ProgressFunc) (adapter.GenerationResult, error) {
	reqBody := struct {
		Model string `json:"model"`
		Input string `json:"input"`
		Voice string `json:"voice"`
	}{Model: o.audioModel, Input: prompt, Voice: o.audioVoice}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/audio/speech", bytes.NewReader(b))
	if err != nil {
		return adapter.GenerationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := o.client.Do(req)
	if err != nil {
		return adapter.GenerationResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return adapter.GenerationResult{}, fmt.Errorf("openai http %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.GenerationResult{}, err
	}
	if report != nil {
		report(80)
	}
	return adapter.GenerationResult{Bytes: raw, ContentType: "audio/mpeg"}, nil
}

func (o *OpenAIAdapter) post(ctx context.Context, path, credential string, body, out any) error {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("openai http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
