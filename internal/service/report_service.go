package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/domain"
	"github.com/spec-kit/campus-support/internal/repository"
	apperrors "github.com/spec-kit/campus-support/pkg/util"
)

const reportWindow = 7 * 24 * time.Hour

// DepartmentReport is the weekly activity summary for one department.
type DepartmentReport struct {
	DepartmentID         string         `json:"department_id"`
	DepartmentName       string         `json:"department_name"`
	WindowStart          time.Time      `json:"window_start"`
	WindowEnd            time.Time      `json:"window_end"`
	TotalTickets         int            `json:"total_tickets"`
	StatusCounts         map[string]int `json:"status_counts"`
	PriorityCounts       map[string]int `json:"priority_counts"`
	AvgResolutionMinutes float64        `json:"avg_resolution_minutes"`
	AvgFirstResponseMin  float64        `json:"avg_first_response_minutes"`
	ResolvedCount        int            `json:"resolved_count"`
	GeneratedAt          time.Time      `json:"generated_at"`
	FromCache            bool           `json:"from_cache"`
}

// ReportService aggregates weekly department activity. Results are
// cached in Redis with a short TTL; a failing cache degrades to direct
// computation.
type ReportService struct {
	tickets     repository.TicketRepository
	departments repository.DepartmentRepository
	cache       *redis.Client
	cfg         config.ReportConfig
	logger      *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewReportService constructs the aggregator. cache may be nil.
func NewReportService(tickets repository.TicketRepository, departments repository.DepartmentRepository, cache *redis.Client, cfg config.ReportConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		tickets:     tickets,
		departments: departments,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Weekly returns the trailing seven day report for a department.
// Department users may only request their own department. A non-nil asOf
// anchors the window at that instant and bypasses the cache, which only
// ever holds the current window.
func (s *ReportService) Weekly(ctx context.Context, actor domain.User, departmentID string, asOf *time.Time) (*DepartmentReport, error) {
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleDepartment, domain.RoleSupport:
		if actor.DepartmentID == nil || *actor.DepartmentID != departmentID {
			return nil, apperrors.NewForbidden("reports are scoped to your own department")
		}
	default:
		return nil, apperrors.NewForbidden("reports require a staff role")
	}

	if asOf != nil {
		return s.compute(ctx, departmentID, *asOf)
	}

	if cached := s.fromCache(ctx, departmentID); cached != nil {
		return cached, nil
	}

	report, err := s.compute(ctx, departmentID, s.now())
	if err != nil {
		return nil, err
	}
	s.store(ctx, report)
	return report, nil
}

// Refresh recomputes and recaches the report for one department. The
// cron worker calls it on a schedule so interactive requests mostly hit
// the cache.
func (s *ReportService) Refresh(ctx context.Context, departmentID string) error {
	report, err := s.compute(ctx, departmentID, s.now())
	if err != nil {
		return err
	}
	s.store(ctx, report)
	return nil
}

// RefreshAll recomputes reports for every department.
func (s *ReportService) RefreshAll(ctx context.Context) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		s.logger.Warn("report refresh: listing departments failed", zap.Error(err))
		return
	}
	for _, dept := range departments {
		if err := s.Refresh(ctx, dept.ID); err != nil {
			s.logger.Warn("report refresh failed",
				zap.String("department_id", dept.ID),
				zap.Error(err))
		}
	}
}

func (s *ReportService) compute(ctx context.Context, departmentID string, asOf time.Time) (*DepartmentReport, error) {
	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("department", nil)
		}
		return nil, apperrors.MapError(err)
	}

	from := asOf.Add(-reportWindow)
	tickets, err := s.tickets.ListDepartmentWindow(ctx, departmentID, from, asOf)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	report := &DepartmentReport{
		DepartmentID:   dept.ID,
		DepartmentName: dept.Name,
		WindowStart:    from,
		WindowEnd:      asOf,
		StatusCounts:   map[string]int{},
		PriorityCounts: map[string]int{},
		GeneratedAt:    asOf,
	}

	var resolutionTotal, firstResponseTotal time.Duration
	var firstResponseCount int
	for i := range tickets {
		t := &tickets[i]
		report.TotalTickets++
		report.StatusCounts[string(t.Status)]++
		report.PriorityCounts[string(t.Priority)]++
		if t.ResolvedAt != nil {
			report.ResolvedCount++
			resolutionTotal += t.ResolvedAt.Sub(t.CreatedAt)
		}
		if t.FirstResponseAt != nil {
			firstResponseCount++
			firstResponseTotal += t.FirstResponseAt.Sub(t.CreatedAt)
		}
	}
	if report.ResolvedCount > 0 {
		report.AvgResolutionMinutes = resolutionTotal.Minutes() / float64(report.ResolvedCount)
	}
	if firstResponseCount > 0 {
		report.AvgFirstResponseMin = firstResponseTotal.Minutes() / float64(firstResponseCount)
	}
	return report, nil
}

func (s *ReportService) fromCache(ctx context.Context, departmentID string) *DepartmentReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, reportCacheKey(departmentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("report cache read failed", zap.Error(err))
		}
		return nil
	}
	var report DepartmentReport
	if err := json.Unmarshal(raw, &report); err != nil {
		s.logger.Warn("report cache entry corrupt", zap.Error(err))
		return nil
	}
	report.FromCache = true
	return &report
}

func (s *ReportService) store(ctx context.Context, report *DepartmentReport) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	ttl := time.Duration(s.cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if err := s.cache.Set(ctx, reportCacheKey(report.DepartmentID), raw, ttl).Err(); err != nil {
		s.logger.Warn("report cache write failed", zap.Error(err))
	}
}

func reportCacheKey(departmentID string) string {
	return fmt.Sprintf("report:weekly:%s", departmentID)
}
