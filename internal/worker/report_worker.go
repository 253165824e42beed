// Package worker refreshes exported monthly reports in response to
// entity change events.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/report"
)

// Source assembles the report for one month. Implemented by the finance
// service. Mutations happen in the server process, so the worker must
// call Load to pull fresh collections from storage before computing.
type Source interface {
	Load(ctx context.Context) error
	MonthlyReport(month string) (report.MonthlyReport, error)
}

// ReportWorker collects dirty months from change events and flushes them
// to the report writer on an interval. Coalescing by month keeps a burst
// of edits from producing a burst of sheet writes.
type ReportWorker struct {
	source   Source
	writer   report.Writer
	interval time.Duration
	logger   *log.Logger

	mu    sync.Mutex
	dirty map[string]struct{}
}

func NewReportWorker(source Source, writer report.Writer, interval time.Duration, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{
		source:   source,
		writer:   writer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
		dirty:    make(map[string]struct{}),
	}
}

// HandleChange marks the event's month for refresh. Events without a
// month (account edits, for instance) carry no report impact and are
// acknowledged without work.
func (w *ReportWorker) HandleChange(msg *amqp.ChangeMessage) error {
	if msg.Month == "" {
		return nil
	}
	if _, err := core.ParseMonth(msg.Month); err != nil {
		w.logger.Warn("Dropping change event with malformed month",
			log.FieldEntity, msg.Entity, log.FieldMonth, msg.Month)
		return nil
	}
	w.MarkDirty(msg.Month)
	return nil
}

// MarkDirty queues a month for the next flush.
func (w *ReportWorker) MarkDirty(month string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty[month] = struct{}{}
}

// Run flushes dirty months every interval until ctx is done, then makes
// one final flush so queued months survive a shutdown.
func (w *ReportWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Report worker started", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			w.Flush(flushCtx)
			w.logger.Info("Report worker stopped", log.FieldOperation, log.OpShutdown)
			return ctx.Err()
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes a report for every queued month. Months whose write
// fails are re-queued for the next flush.
func (w *ReportWorker) Flush(ctx context.Context) {
	w.mu.Lock()
	months := make([]string, 0, len(w.dirty))
	for m := range w.dirty {
		months = append(months, m)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	if len(months) == 0 {
		return
	}
	sort.Strings(months)

	if err := w.source.Load(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Store reload failed", log.FieldError, err.Error())
		for _, m := range months {
			w.MarkDirty(m)
		}
		return
	}

	for _, month := range months {
		if err := w.refresh(ctx, month); err != nil {
			w.logger.ErrorContext(ctx, "Report refresh failed",
				log.FieldMonth, month, log.FieldError, err.Error())
			w.MarkDirty(month)
		}
	}
}

func (w *ReportWorker) refresh(ctx context.Context, month string) error {
	r, err := w.source.MonthlyReport(month)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMonthlyReport(ctx, r); err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "Report refreshed",
		log.FieldMonth, month, log.FieldOperation, log.OpRefresh)
	return nil
}
