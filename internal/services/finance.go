// Package services wires the entity stores, the aggregation engine and
// the change event bus together. The stores stay ignorant of each other;
// any cross-store coupling (transfer balance deltas, budget spend joins)
// lives here, explicitly.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tally/internal/amqp"
	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/report"
	"tally/internal/storage"
	"tally/internal/store"
)

// EventPublisher is the nil-safe sink for entity change events.
type EventPublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

type Finance struct {
	kv storage.KV

	Expenses         *store.Expenses
	Incomes          *store.Incomes
	Transfers        *store.Transfers
	Accounts         *store.Accounts
	Categories       *store.Categories
	IncomeCategories *store.Categories
	Budgets          *store.Budgets

	events EventPublisher

	// Serializes transfer apply/reverse: the two-store read-modify-write
	// is not safe under concurrent mutation.
	transferMu sync.Mutex
}

// NewFinance builds the service and its stores over one KV. events may
// be nil when no broker is configured.
func NewFinance(kv storage.KV, events EventPublisher) *Finance {
	return &Finance{
		kv:               kv,
		Expenses:         store.NewExpenses(kv),
		Incomes:          store.NewIncomes(kv),
		Transfers:        store.NewTransfers(kv),
		Accounts:         store.NewAccounts(kv),
		Categories:       store.NewExpenseCategories(kv),
		IncomeCategories: store.NewIncomeCategories(kv),
		Budgets:          store.NewBudgets(kv),
		events:           events,
	}
}

// Load reads every collection, seeding defaults where applicable.
func (f *Finance) Load(ctx context.Context) error {
	loaders := []func(context.Context) error{
		f.Expenses.Load,
		f.Incomes.Load,
		f.Transfers.Load,
		f.Accounts.Load,
		f.Categories.Load,
		f.IncomeCategories.Load,
		f.Budgets.Load,
	}
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			return fmt.Errorf("load stores: %w", err)
		}
	}
	return nil
}

func (f *Finance) publish(ctx context.Context, entity, id, op, month string) {
	if f.events == nil {
		return
	}
	if err := f.events.PublishChange(ctx, amqp.NewChangeMessage(entity, id, op, month)); err != nil {
		// The mutation already persisted; a lost event only delays the
		// report refresh.
		log.FromContext(ctx).ErrorContext(ctx, "Failed to publish change event",
			log.FieldEntity, entity, log.FieldEntityID, id,
			log.FieldOperation, op, log.FieldError, err.Error())
	}
}

// --- Expenses ---

func (f *Finance) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(time.Now()); err != nil {
		return core.Expense{}, err
	}
	created, err := f.Expenses.Add(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	f.publish(ctx, amqp.EntityExpense, created.ID, amqp.OpCreated, created.Date.MonthKey())
	return created, nil
}

func (f *Finance) UpdateExpense(ctx context.Context, id string, patch store.ExpensePatch) (core.Expense, bool, error) {
	existing, found := f.Expenses.GetByID(id)
	if !found {
		return core.Expense{}, false, nil
	}

	merged := existing
	if patch.CategoryID != nil {
		merged.CategoryID = *patch.CategoryID
	}
	if patch.Amount != nil {
		merged.Amount = *patch.Amount
	}
	if patch.Date != nil {
		merged.Date = *patch.Date
	}
	if err := merged.Validate(time.Now()); err != nil {
		return core.Expense{}, false, err
	}

	updated, ok, err := f.Expenses.Update(ctx, id, patch)
	if err != nil || !ok {
		return core.Expense{}, ok, err
	}
	f.publish(ctx, amqp.EntityExpense, id, amqp.OpUpdated, updated.Date.MonthKey())
	if old := existing.Date.MonthKey(); old != updated.Date.MonthKey() {
		// A date edit across a month boundary leaves the old month's
		// report stale too.
		f.publish(ctx, amqp.EntityExpense, id, amqp.OpUpdated, old)
	}
	return updated, true, nil
}

func (f *Finance) DeleteExpense(ctx context.Context, id string) (bool, error) {
	existing, found := f.Expenses.GetByID(id)
	if !found {
		return false, nil
	}
	ok, err := f.Expenses.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	f.publish(ctx, amqp.EntityExpense, id, amqp.OpDeleted, existing.Date.MonthKey())
	return true, nil
}

// ListExpenses returns expenses inside the resolved window, in insertion
// order. A window resolving to nil applies no filter.
func (f *Finance) ListExpenses(w analytics.Window) []core.Expense {
	iv := w.Resolve(time.Now())
	all := f.Expenses.All()
	if iv == nil {
		return all
	}
	out := make([]core.Expense, 0, len(all))
	for _, e := range all {
		if iv.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// --- Incomes ---

func (f *Finance) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(time.Now()); err != nil {
		return core.Income{}, err
	}
	created, err := f.Incomes.Add(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	f.publish(ctx, amqp.EntityIncome, created.ID, amqp.OpCreated, created.Date.MonthKey())
	return created, nil
}

func (f *Finance) UpdateIncome(ctx context.Context, id string, patch store.IncomePatch) (core.Income, bool, error) {
	existing, found := f.Incomes.GetByID(id)
	if !found {
		return core.Income{}, false, nil
	}

	merged := existing
	if patch.CategoryID != nil {
		merged.CategoryID = *patch.CategoryID
	}
	if patch.Amount != nil {
		merged.Amount = *patch.Amount
	}
	if patch.Date != nil {
		merged.Date = *patch.Date
	}
	if err := merged.Validate(time.Now()); err != nil {
		return core.Income{}, false, err
	}

	updated, ok, err := f.Incomes.Update(ctx, id, patch)
	if err != nil || !ok {
		return core.Income{}, ok, err
	}
	f.publish(ctx, amqp.EntityIncome, id, amqp.OpUpdated, updated.Date.MonthKey())
	if old := existing.Date.MonthKey(); old != updated.Date.MonthKey() {
		f.publish(ctx, amqp.EntityIncome, id, amqp.OpUpdated, old)
	}
	return updated, true, nil
}

func (f *Finance) DeleteIncome(ctx context.Context, id string) (bool, error) {
	existing, found := f.Incomes.GetByID(id)
	if !found {
		return false, nil
	}
	ok, err := f.Incomes.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	f.publish(ctx, amqp.EntityIncome, id, amqp.OpDeleted, existing.Date.MonthKey())
	return true, nil
}

func (f *Finance) ListIncomes(w analytics.Window) []core.Income {
	iv := w.Resolve(time.Now())
	all := f.Incomes.All()
	if iv == nil {
		return all
	}
	out := make([]core.Income, 0, len(all))
	for _, in := range all {
		if iv.Contains(in.Date) {
			out = append(out, in)
		}
	}
	return out
}

// --- Transfers ---

// CreateTransfer records the transfer and moves both account balances.
// The transfer row and the adjusted balances are written as one atomic
// KV batch; on failure the in-memory state is rolled back, so the stores
// never drift from what is persisted.
func (f *Finance) CreateTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	if err := t.Validate(time.Now()); err != nil {
		return core.Transfer{}, err
	}

	f.transferMu.Lock()
	defer f.transferMu.Unlock()

	prevTransfers := f.Transfers.All()
	prevAccounts := f.Accounts.All()

	created := f.Transfers.StageAdd(t)
	f.applyBalanceDelta(created, +1)

	if err := f.persistTransfersAndAccounts(ctx); err != nil {
		f.Transfers.Restore(prevTransfers)
		f.Accounts.Restore(prevAccounts)
		return core.Transfer{}, fmt.Errorf("create transfer: %w", err)
	}

	f.publish(ctx, amqp.EntityTransfer, created.ID, amqp.OpCreated, created.Date.MonthKey())
	return created, nil
}

// UpdateTransfer reverses the previous record's balance delta before
// applying the new one.
func (f *Finance) UpdateTransfer(ctx context.Context, id string, patch store.TransferPatch) (core.Transfer, bool, error) {
	f.transferMu.Lock()
	defer f.transferMu.Unlock()

	prevTransfers := f.Transfers.All()
	prevAccounts := f.Accounts.All()

	previous, ok := f.Transfers.StageUpdate(id, patch)
	if !ok {
		return core.Transfer{}, false, nil
	}
	current, _ := f.Transfers.GetByID(id)

	if err := current.Validate(time.Now()); err != nil {
		f.Transfers.Restore(prevTransfers)
		return core.Transfer{}, false, err
	}

	f.applyBalanceDelta(previous, -1)
	f.applyBalanceDelta(current, +1)

	if err := f.persistTransfersAndAccounts(ctx); err != nil {
		f.Transfers.Restore(prevTransfers)
		f.Accounts.Restore(prevAccounts)
		return core.Transfer{}, false, fmt.Errorf("update transfer: %w", err)
	}

	f.publish(ctx, amqp.EntityTransfer, id, amqp.OpUpdated, current.Date.MonthKey())
	return current, true, nil
}

// DeleteTransfer reverses the balance delta the record applied.
func (f *Finance) DeleteTransfer(ctx context.Context, id string) (bool, error) {
	f.transferMu.Lock()
	defer f.transferMu.Unlock()

	prevTransfers := f.Transfers.All()
	prevAccounts := f.Accounts.All()

	removed, ok := f.Transfers.StageDelete(id)
	if !ok {
		return false, nil
	}
	f.applyBalanceDelta(removed, -1)

	if err := f.persistTransfersAndAccounts(ctx); err != nil {
		f.Transfers.Restore(prevTransfers)
		f.Accounts.Restore(prevAccounts)
		return false, fmt.Errorf("delete transfer: %w", err)
	}

	f.publish(ctx, amqp.EntityTransfer, id, amqp.OpDeleted, removed.Date.MonthKey())
	return true, nil
}

// applyBalanceDelta moves the two account balances for a transfer.
// sign +1 applies it, -1 reverses it. Legacy free-text sides resolve to
// no account and are skipped.
func (f *Finance) applyBalanceDelta(t core.Transfer, sign int64) {
	f.Accounts.StageAdjust(t.FromAccountID, -t.Amount.Cents*sign)
	f.Accounts.StageAdjust(t.ToAccountID, t.Amount.Cents*sign)
}

func (f *Finance) persistTransfersAndAccounts(ctx context.Context) error {
	transfers, err := f.Transfers.Encode()
	if err != nil {
		return err
	}
	accounts, err := f.Accounts.Encode()
	if err != nil {
		return err
	}
	return f.kv.SetAll(ctx, map[string][]byte{
		f.Transfers.Key(): transfers,
		f.Accounts.Key():  accounts,
	})
}

// --- Budgets ---

// UpsertBudget creates the budget, or replaces the amount and rollover
// flag of the existing (month, category) budget.
func (f *Finance) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	saved, err := f.Budgets.Add(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	f.publish(ctx, amqp.EntityBudget, saved.ID, amqp.OpUpdated, saved.Month)
	return saved, nil
}

func (f *Finance) UpdateBudget(ctx context.Context, id string, patch store.BudgetPatch) (core.Budget, bool, error) {
	existing, found := f.Budgets.GetByID(id)
	if !found {
		return core.Budget{}, false, nil
	}

	merged := existing
	if patch.Amount != nil {
		merged.Amount = *patch.Amount
	}
	if patch.Rollover != nil {
		merged.Rollover = *patch.Rollover
	}
	if err := merged.Validate(); err != nil {
		return core.Budget{}, false, err
	}

	updated, ok, err := f.Budgets.Update(ctx, id, patch)
	if err != nil || !ok {
		return core.Budget{}, ok, err
	}
	f.publish(ctx, amqp.EntityBudget, id, amqp.OpUpdated, updated.Month)
	return updated, true, nil
}

func (f *Finance) DeleteBudget(ctx context.Context, id string) (bool, error) {
	existing, found := f.Budgets.GetByID(id)
	if !found {
		return false, nil
	}
	ok, err := f.Budgets.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	f.publish(ctx, amqp.EntityBudget, id, amqp.OpDeleted, existing.Month)
	return true, nil
}

// --- Aggregates ---

// ExpenseTotal sums expenses inside the window. Transfers never appear
// here: they live in their own store and only touch account balances.
func (f *Finance) ExpenseTotal(w analytics.Window) core.Money {
	return analytics.Total(f.Expenses.Movements(), w.Resolve(time.Now()))
}

func (f *Finance) IncomeTotal(w analytics.Window) core.Money {
	return analytics.Total(f.Incomes.Movements(), w.Resolve(time.Now()))
}

func (f *Finance) ExpenseBreakdown(w analytics.Window) []analytics.CategoryTotal {
	return analytics.Breakdown(f.Expenses.Movements(), w.Resolve(time.Now()), f.Categories)
}

func (f *Finance) MonthlyExpenseStats(month string) (analytics.MonthlyStats, error) {
	return analytics.ComputeMonthlyStats(f.Expenses.Movements(), month, f.Categories)
}

func (f *Finance) MonthlyIncomeStats(month string) (analytics.MonthlyStats, error) {
	return analytics.ComputeMonthlyStats(f.Incomes.Movements(), month, f.IncomeCategories)
}

// BudgetProgress joins the month's budgets with expense spend, applying
// one-month rollover. The budget calculator receives snapshots of the
// records it needs rather than reaching into stores itself.
func (f *Finance) BudgetProgress(month string) ([]analytics.BudgetProgress, error) {
	return analytics.Progress(f.Budgets.All(), f.Expenses.Movements(), f.Categories, month)
}

func (f *Finance) CompareExpenses(month string) (analytics.MonthComparison, error) {
	return analytics.Compare(f.Expenses.Movements(), month, f.Categories)
}

// MonthlyReport assembles the export summary for one month.
func (f *Finance) MonthlyReport(month string) (report.MonthlyReport, error) {
	expenses, err := f.MonthlyExpenseStats(month)
	if err != nil {
		return report.MonthlyReport{}, err
	}
	income, err := f.MonthlyIncomeStats(month)
	if err != nil {
		return report.MonthlyReport{}, err
	}

	r := report.MonthlyReport{
		Month:         month,
		TotalExpenses: expenses.Total,
		TotalIncome:   income.Total,
		Net:           core.Money{Cents: income.Total.Cents - expenses.Total.Cents},
		AverageDaily:  core.Money{Cents: int64(expenses.AverageDaily)},
		Breakdown:     expenses.Breakdown,
	}
	if expenses.HighestCategory != nil {
		r.TopCategory = expenses.HighestCategory.Name
	}
	return r, nil
}
