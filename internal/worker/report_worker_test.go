package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/report"
	"tally/internal/services"
	"tally/internal/storage"
)

type fakeSource struct {
	loads   int
	loadErr error
}

func (s *fakeSource) Load(ctx context.Context) error {
	s.loads++
	return s.loadErr
}

func (s *fakeSource) MonthlyReport(month string) (report.MonthlyReport, error) {
	return report.MonthlyReport{
		Month:         month,
		TotalExpenses: core.Money{Cents: 1000},
	}, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	written []string
	reports map[string]report.MonthlyReport
	fail    map[string]error
}

func (f *fakeWriter) WriteMonthlyReport(ctx context.Context, r report.MonthlyReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[r.Month]; ok {
		delete(f.fail, r.Month)
		return err
	}
	f.written = append(f.written, r.Month)
	if f.reports == nil {
		f.reports = make(map[string]report.MonthlyReport)
	}
	f.reports[r.Month] = r
	return nil
}

func (f *fakeWriter) months() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeWriter) report(month string) (report.MonthlyReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[month]
	return r, ok
}

func TestHandleChangeCoalescesByMonth(t *testing.T) {
	writer := &fakeWriter{}
	w := NewReportWorker(&fakeSource{}, writer, time.Minute, nil)

	for i := 0; i < 4; i++ {
		if err := w.HandleChange(&amqp.ChangeMessage{Entity: amqp.EntityExpense, Month: "2024-03"}); err != nil {
			t.Fatalf("HandleChange: %v", err)
		}
	}
	if err := w.HandleChange(&amqp.ChangeMessage{Entity: amqp.EntityIncome, Month: "2024-02"}); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	w.Flush(context.Background())

	got := writer.months()
	if len(got) != 2 || got[0] != "2024-02" || got[1] != "2024-03" {
		t.Errorf("written = %v, want [2024-02 2024-03]", got)
	}
}

func TestHandleChangeIgnoresMonthlessAndMalformed(t *testing.T) {
	writer := &fakeWriter{}
	w := NewReportWorker(&fakeSource{}, writer, time.Minute, nil)

	if err := w.HandleChange(&amqp.ChangeMessage{Entity: amqp.EntityAccount}); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if err := w.HandleChange(&amqp.ChangeMessage{Entity: amqp.EntityExpense, Month: "03/2024"}); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}

	w.Flush(context.Background())
	if got := writer.months(); len(got) != 0 {
		t.Errorf("written = %v, want none", got)
	}
}

func TestFlushRequeuesFailedMonth(t *testing.T) {
	writer := &fakeWriter{fail: map[string]error{"2024-03": errors.New("sheet unavailable")}}
	w := NewReportWorker(&fakeSource{}, writer, time.Minute, nil)

	w.MarkDirty("2024-03")
	w.Flush(context.Background())
	if got := writer.months(); len(got) != 0 {
		t.Fatalf("written after failed flush = %v, want none", got)
	}

	// The month stayed queued; the next flush succeeds.
	w.Flush(context.Background())
	got := writer.months()
	if len(got) != 1 || got[0] != "2024-03" {
		t.Errorf("written = %v, want [2024-03]", got)
	}
}

// The worker and the API server run as separate processes over the same
// database, so a flush must re-read the collections instead of trusting
// the worker's boot-time state.
func TestFlushSeesMutationsFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	workerFinance := services.NewFinance(kv, nil)
	if err := workerFinance.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	serverFinance := services.NewFinance(kv, nil)
	if err := serverFinance.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	created, err := serverFinance.CreateExpense(ctx, core.Expense{
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 5000},
		Date:       core.NewDate(2024, 3, 12),
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	writer := &fakeWriter{}
	w := NewReportWorker(workerFinance, writer, time.Minute, nil)
	if err := w.HandleChange(&amqp.ChangeMessage{
		Entity: amqp.EntityExpense,
		ID:     created.ID,
		Op:     amqp.OpCreated,
		Month:  "2024-03",
	}); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	w.Flush(ctx)

	r, ok := writer.report("2024-03")
	if !ok {
		t.Fatal("no report written for 2024-03")
	}
	if r.TotalExpenses.Cents != 5000 {
		t.Errorf("TotalExpenses = %d, want 5000", r.TotalExpenses.Cents)
	}
}

func TestFlushRequeuesAllMonthsWhenReloadFails(t *testing.T) {
	writer := &fakeWriter{}
	src := &fakeSource{loadErr: errors.New("db locked")}
	w := NewReportWorker(src, writer, time.Minute, nil)

	w.MarkDirty("2024-02")
	w.MarkDirty("2024-03")
	w.Flush(context.Background())
	if got := writer.months(); len(got) != 0 {
		t.Fatalf("written after failed reload = %v, want none", got)
	}

	src.loadErr = nil
	w.Flush(context.Background())
	got := writer.months()
	if len(got) != 2 || got[0] != "2024-02" || got[1] != "2024-03" {
		t.Errorf("written = %v, want [2024-02 2024-03]", got)
	}
	if src.loads != 2 {
		t.Errorf("Load called %d times, want 2", src.loads)
	}
}

func TestFlushWithNothingQueuedWritesNothing(t *testing.T) {
	writer := &fakeWriter{}
	w := NewReportWorker(&fakeSource{}, writer, time.Minute, nil)
	w.Flush(context.Background())
	if got := writer.months(); len(got) != 0 {
		t.Errorf("written = %v, want none", got)
	}
}
