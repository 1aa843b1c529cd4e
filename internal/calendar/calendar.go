// Package calendar looks up support-user availability from an optional
// external backend. When unconfigured or unreachable the lookup yields no
// information and never blocks the caller.
package calendar

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
)

// Availability is the calendar lookup result. Known is false when no
// backend answered.
type Availability struct {
	Known     bool
	Available bool
	NextSlot  string
}

// Calendar answers availability queries for a support user.
type Calendar interface {
	Check(ctx context.Context, supportUserID string) Availability
}

// New selects the implementation once at startup.
func New(cfg config.CalendarConfig, logger *zap.Logger) Calendar {
	if cfg.BaseURL == "" {
		return noop{}
	}
	return &remote{
		client: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		logger: logger,
	}
}

type noop struct{}

func (noop) Check(context.Context, string) Availability {
	return Availability{}
}

type remote struct {
	client *resty.Client
	logger *zap.Logger
}

type availabilityResponse struct {
	Available bool   `json:"available"`
	NextSlot  string `json:"next_slot"`
}

func (r *remote) Check(ctx context.Context, supportUserID string) Availability {
	var parsed availabilityResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("support_user_id", supportUserID).
		SetResult(&parsed).
		Get("/availability")
	if err != nil {
		r.logger.Warn("calendar lookup failed", zap.Error(err))
		return Availability{}
	}
	if resp.IsError() {
		r.logger.Warn("calendar lookup non-2xx", zap.Int("status", resp.StatusCode()))
		return Availability{}
	}
	return Availability{Known: true, Available: parsed.Available, NextSlot: parsed.NextSlot}
}
