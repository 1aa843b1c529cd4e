package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/campus-support/internal/config"
	"github.com/spec-kit/campus-support/internal/service"
)

// ReportWorker recomputes the weekly department reports on a schedule so
// interactive report requests usually hit the warm cache.
type ReportWorker struct {
	cron    *cron.Cron
	reports *service.ReportService
	cfg     config.ReportConfig
	logger  *zap.Logger
}

// NewReportWorker builds the worker without starting it.
func NewReportWorker(reports *service.ReportService, cfg config.ReportConfig, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		cron:    cron.New(),
		reports: reports,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start schedules the refresh job and begins execution.
func (w *ReportWorker) Start() error {
	_, err := w.cron.AddFunc(w.cfg.RefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		w.reports.RefreshAll(ctx)
	})
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("report refresh scheduled", zap.String("cron", w.cfg.RefreshCron))
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (w *ReportWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}
