package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/service"
)

// Scanner runs one SLA scan.
type Scanner interface {
	Scan(ctx context.Context) (service.ScanReport, error)
}

// SLAScanWorker runs the SLA scan on a cron schedule. A scan still running
// when the next tick fires causes that tick to be skipped.
type SLAScanWorker struct {
	scanner  Scanner
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSLAScanWorker creates the worker. timeout bounds a single scan; zero
// means no bound.
func NewSLAScanWorker(scanner Scanner, schedule string, timeout time.Duration, logger *zap.Logger) *SLAScanWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAScanWorker{
		scanner:  scanner,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start validates the schedule and begins ticking.
func (w *SLAScanWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		return nil
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	w.ctx, w.cancel = context.WithCancel(ctx)
	if _, err := scheduler.AddFunc(w.schedule, func() { w.RunOnce(w.ctx) }); err != nil {
		w.cancel()
		return fmt.Errorf("invalid scan schedule %q: %w", w.schedule, err)
	}
	scheduler.Start()
	w.scheduler = scheduler
	w.logger.Info("sla scan worker started", zap.String("schedule", w.schedule))
	return nil
}

// Stop cancels the running scan and waits for it to return.
func (w *SLAScanWorker) Stop() {
	w.mu.Lock()
	scheduler := w.scheduler
	cancel := w.cancel
	w.scheduler = nil
	w.mu.Unlock()

	if scheduler == nil {
		return
	}
	cancel()
	<-scheduler.Stop().Done()
	w.logger.Info("sla scan worker stopped")
}

// RunOnce performs a single scan and logs the outcome.
func (w *SLAScanWorker) RunOnce(ctx context.Context) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	report, err := w.scanner.Scan(ctx)
	if err != nil {
		w.logger.Error("sla scan failed", zap.Error(err), zap.Int("scanned", report.Scanned))
	}
}
