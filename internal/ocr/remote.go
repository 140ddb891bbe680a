package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/goods-receipt/internal/llm"
)

// RemoteConfig configures the cloud OCR call (Google Vision images:annotate).
type RemoteConfig struct {
	APIKey    string
	Endpoint  string
	RPS       float64
	Timeout   time.Duration
	Languages []string
}

// Remote sends page images to a cloud OCR endpoint. Quota and network
// problems are plain failures; the cascade moves on.
type Remote struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewRemote(cfg RemoteConfig, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://vision.googleapis.com/v1/images:annotate"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Remote{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (*Remote) Name() string { return "remote" }

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Text  string `json:"text"`
			Pages []struct {
				Confidence float64 `json:"confidence"`
			} `json:"pages"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

func (r *Remote) Extract(ctx context.Context, src *Source) Result {
	if r.cfg.APIKey == "" {
		return Failuref("remote ocr not configured")
	}
	pages, err := src.Pages(ctx)
	if err != nil {
		return Failure(fmt.Errorf("render pages: %w", err))
	}

	var texts []string
	var confSum float64
	var confN int
	var errs []error
	for i, page := range pages {
		if err := r.limiter.Wait(ctx); err != nil {
			return Failure(fmt.Errorf("rate limiter: %w", err))
		}
		text, conf, err := r.annotate(ctx, page)
		if err != nil {
			r.logger.Warn("ocr.remote.page_failed", "page", i+1, "error", err)
			errs = append(errs, err)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
		if conf > 0 {
			confSum += conf
			confN++
		}
	}
	if len(texts) == 0 && len(errs) > 0 {
		return Failure(errors.Join(errs...))
	}
	text := strings.Join(texts, "\n\n")
	conf := heuristicConfidence(text)
	if confN > 0 {
		conf = blendConfidence(confSum/float64(confN), text)
	}
	return Success(text, conf)
}

func (r *Remote) annotate(ctx context.Context, imagePath string) (string, float64, error) {
	b, err := os.ReadFile(imagePath)
	if err != nil {
		return "", 0, err
	}
	img := map[string]any{"content": base64.StdEncoding.EncodeToString(b)}
	request := map[string]any{
		"image":    img,
		"features": []map[string]any{{"type": "DOCUMENT_TEXT_DETECTION"}},
	}
	if len(r.cfg.Languages) > 0 {
		request["imageContext"] = map[string]any{"languageHints": r.cfg.Languages}
	}
	body := map[string]any{"requests": []any{request}}

	u := r.cfg.Endpoint + "?key=" + url.QueryEscape(r.cfg.APIKey)
	raw, err := llm.SendJSON(ctx, r.client, u, body, nil, "ocr.remote", r.logger)
	if err != nil {
		return "", 0, err
	}
	var resp annotateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", 0, fmt.Errorf("decode annotate response: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", 0, errors.New("empty annotate response")
	}
	first := resp.Responses[0]
	if first.Error != nil {
		return "", 0, fmt.Errorf("annotate error %d: %s", first.Error.Code, first.Error.Message)
	}
	if first.FullTextAnnotation == nil {
		return "", 0, nil
	}
	var conf float64
	if n := len(first.FullTextAnnotation.Pages); n > 0 {
		for _, p := range first.FullTextAnnotation.Pages {
			conf += p.Confidence
		}
		conf /= float64(n)
	}
	return first.FullTextAnnotation.Text, conf, nil
}
