package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/goods-receipt/internal/llm"
)

// ErrNoAPIKey is returned when the client is used without credentials.
var ErrNoAPIKey = errors.New("openai api key not configured")

// Transcribe implements llm.Transcriber with a vision chat/completions call.
func (c *Client) Transcribe(ctx context.Context, req llm.TranscribeRequest) (llm.Transcription, []byte, error) {
	if !c.Configured() {
		return llm.Transcription{}, nil, ErrNoAPIKey
	}
	rid := uuid.New().String()
	start := time.Now()
	log := c.logger.With("req_id", rid)

	dataURL, mt, err := llm.ReadAsDataURL(req.ImagePath)
	if err != nil {
		return llm.Transcription{}, nil, fmt.Errorf("attach image: %w", err)
	}
	log.Info("llm.transcribe.start", "model", c.cfg.Model, "image", req.ImagePath, "mime", mt, "page", req.Page)

	schema := llm.BuildTranscriptionJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildUserPrompt(req)},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}},
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, "llm", log)
	if err != nil {
		log.Error("llm.transcribe.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.Transcription{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.Transcription{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return llm.Transcription{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if c.cfg.LenientOptional {
		if cleaned, _, sErr := llm.NormalizeTranscription(content, log); sErr == nil {
			content = cleaned
		} else {
			log.Warn("llm.transcribe.sanitize_failed", "error", sErr)
		}
	}
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		log.Error("llm.transcribe.schema_validation_failed",
			"error", err, "content_bytes", len(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Transcription{}, content, fmt.Errorf("schema validation failed: %w", err)
	}

	var out llm.Transcription
	if err := json.Unmarshal(content, &out); err != nil {
		return llm.Transcription{}, content, fmt.Errorf("unmarshal transcription: %w", err)
	}

	log.Info("llm.transcribe.ok",
		"chars", len(out.Text),
		"lines", len(out.Lines),
		"document_type", out.DocumentType,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
