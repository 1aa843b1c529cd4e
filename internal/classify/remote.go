package classify

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
)

// Remote delegates classification to a configured AI backend and merges
// partial or malformed responses with the heuristic, field by field.
type Remote struct {
	client    *resty.Client
	heuristic *Heuristic
	logger    *zap.Logger
}

// NewRemote builds the backend-delegating classifier.
func NewRemote(cfg config.AIConfig, logger *zap.Logger) *Remote {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Remote{
		client:    client,
		heuristic: NewHeuristic(),
		logger:    logger,
	}
}

// New selects the classifier implementation once at startup: remote when a
// backend is configured, heuristic otherwise. Callers never branch on
// configuration again.
func New(cfg config.AIConfig, logger *zap.Logger) Classifier {
	if cfg.BaseURL == "" {
		return NewHeuristic()
	}
	return NewRemote(cfg, logger)
}

type suggestRequest struct {
	Description string `json:"description"`
}

type insightRequest struct {
	Description string `json:"description"`
	Purpose     string `json:"purpose"`
}

type insightResponse struct {
	Summary    string `json:"summary"`
	DraftReply string `json:"draft_reply"`
}

type suggestResponse struct {
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
}

// Suggest calls the backend and falls back to the heuristic for the whole
// result on transport failure, or per field on a partial response.
func (r *Remote) Suggest(ctx context.Context, description string) Suggestion {
	fallback := r.heuristic.Suggest(ctx, description)

	var parsed suggestResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(suggestRequest{Description: description}).
		SetResult(&parsed).
		Post("")
	if err != nil {
		r.logger.Warn("ai classify failed", zap.Error(err))
		return fallback
	}
	if resp.IsError() {
		r.logger.Warn("ai classify non-2xx", zap.Int("status", resp.StatusCode()))
		return fallback
	}

	result := fallback
	if parsed.Category != "" {
		result.Category = parsed.Category
	}
	if priority := domain.TicketPriority(parsed.Priority); priority.Valid() {
		result.Priority = priority
	}
	if parsed.Confidence > 0 && parsed.Confidence <= 1 {
		result.Confidence = parsed.Confidence
	}
	return result
}

// Insights asks the backend for a summary and a reply draft, filling any
// missing field from the deterministic stubs.
func (r *Remote) Insights(ctx context.Context, description string) Insight {
	fallback := r.heuristic.Insights(ctx, description)

	var parsed insightResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(insightRequest{Description: description, Purpose: "summary"}).
		SetResult(&parsed).
		Post("")
	if err != nil {
		r.logger.Warn("ai insights failed", zap.Error(err))
		return fallback
	}
	if resp.IsError() {
		r.logger.Warn("ai insights non-2xx", zap.Int("status", resp.StatusCode()))
		return fallback
	}

	result := fallback
	if summary := strings.TrimSpace(parsed.Summary); summary != "" {
		result.Summary = summary
	}
	if draft := strings.TrimSpace(parsed.DraftReply); draft != "" {
		result.DraftReply = draft
	}
	return result
}
