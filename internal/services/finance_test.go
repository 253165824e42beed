package services

import (
	"context"
	"math"
	"testing"

	"tally/internal/amqp"
	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/storage"
	"tally/internal/store"
)

type capturedEvents struct {
	messages []*amqp.ChangeMessage
}

func (c *capturedEvents) PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	c.messages = append(c.messages, msg)
	return nil
}

func newTestFinance(t *testing.T) *Finance {
	t.Helper()
	f := NewFinance(storage.NewMemoryKV(), nil)
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f
}

func TestCreateExpenseValidation(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	_, err := f.CreateExpense(ctx, core.Expense{
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: -50},
		Date:       core.NewDate(2024, 3, 1),
	})
	if err == nil {
		t.Error("CreateExpense accepted a negative amount")
	}

	_, err = f.CreateExpense(ctx, core.Expense{
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 100},
		Date:       core.NewDate(2199, 1, 1),
	})
	if err == nil {
		t.Error("CreateExpense accepted a future date")
	}
}

func TestCreateExpensePublishesChangeEvent(t *testing.T) {
	ctx := context.Background()
	events := &capturedEvents{}
	f := NewFinance(storage.NewMemoryKV(), events)
	if err := f.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	created, err := f.CreateExpense(ctx, core.Expense{
		CategoryID: "cat-food",
		Amount:     core.Money{Cents: 1500},
		Date:       core.NewDate(2024, 3, 12),
	})
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if len(events.messages) != 1 {
		t.Fatalf("published %d events, want 1", len(events.messages))
	}
	msg := events.messages[0]
	if msg.Entity != amqp.EntityExpense || msg.ID != created.ID || msg.Op != amqp.OpCreated || msg.Month != "2024-03" {
		t.Errorf("event = %+v", msg)
	}
}

func TestTransferAdjustsBothBalances(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	checking, _ := f.Accounts.Add(ctx, core.Account{Name: "Checking", Balance: core.Money{Cents: 100000}})
	savings, _ := f.Accounts.Add(ctx, core.Account{Name: "Savings", Balance: core.Money{Cents: 50000}})

	created, err := f.CreateTransfer(ctx, core.Transfer{
		FromAccountID: checking.ID,
		ToAccountID:   savings.ID,
		Amount:        core.Money{Cents: 20000},
		Date:          core.NewDate(2024, 3, 5),
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	assertBalance := func(id string, want int64) {
		t.Helper()
		acc, _ := f.Accounts.GetByID(id)
		if acc.Balance.Cents != want {
			t.Errorf("account %s balance = %d, want %d", acc.Name, acc.Balance.Cents, want)
		}
	}
	assertBalance(checking.ID, 80000)
	assertBalance(savings.ID, 70000)

	// Editing the amount reverses the old delta before applying the new.
	amount := core.Money{Cents: 5000}
	if _, ok, err := f.UpdateTransfer(ctx, created.ID, store.TransferPatch{Amount: &amount}); err != nil || !ok {
		t.Fatalf("UpdateTransfer: ok=%v err=%v", ok, err)
	}
	assertBalance(checking.ID, 95000)
	assertBalance(savings.ID, 55000)

	// Deleting reverses the delta entirely.
	if ok, err := f.DeleteTransfer(ctx, created.ID); err != nil || !ok {
		t.Fatalf("DeleteTransfer: ok=%v err=%v", ok, err)
	}
	assertBalance(checking.ID, 100000)
	assertBalance(savings.ID, 50000)

	if ok, err := f.DeleteTransfer(ctx, "missing"); err != nil || ok {
		t.Errorf("DeleteTransfer(missing): ok=%v err=%v, want no-op", ok, err)
	}
}

func TestTransferWithLegacyNamesTouchesNoBalance(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	acc, _ := f.Accounts.Add(ctx, core.Account{Name: "Checking", Balance: core.Money{Cents: 1000}})

	_, err := f.CreateTransfer(ctx, core.Transfer{
		FromName: "old wallet",
		ToName:   "mattress",
		Amount:   core.Money{Cents: 500},
		Date:     core.NewDate(2024, 3, 5),
	})
	if err != nil {
		t.Fatalf("CreateTransfer: %v", err)
	}

	got, _ := f.Accounts.GetByID(acc.ID)
	if got.Balance.Cents != 1000 {
		t.Errorf("unrelated balance moved: %d", got.Balance.Cents)
	}
}

func TestTransfersNeverAffectExpenseOrIncomeAggregates(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	from, _ := f.Accounts.Add(ctx, core.Account{Name: "A", Balance: core.Money{Cents: 100000}})
	to, _ := f.Accounts.Add(ctx, core.Account{Name: "B"})

	if _, err := f.CreateExpense(ctx, core.Expense{CategoryID: "cat-food", Amount: core.Money{Cents: 4000}, Date: core.NewDate(2024, 3, 2)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if _, err := f.CreateIncome(ctx, core.Income{CategoryID: "inc-salary", Amount: core.Money{Cents: 90000}, Date: core.NewDate(2024, 3, 1)}); err != nil {
		t.Fatalf("CreateIncome: %v", err)
	}

	all := analytics.Window{Kind: analytics.WindowAll}
	expenseBefore := f.ExpenseTotal(all)
	incomeBefore := f.IncomeTotal(all)

	for i := 0; i < 5; i++ {
		if _, err := f.CreateTransfer(ctx, core.Transfer{
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        core.Money{Cents: 1234},
			Date:          core.NewDate(2024, 3, 3),
		}); err != nil {
			t.Fatalf("CreateTransfer: %v", err)
		}
	}

	if got := f.ExpenseTotal(all); got != expenseBefore {
		t.Errorf("expense total changed by transfers: %d → %d", expenseBefore.Cents, got.Cents)
	}
	if got := f.IncomeTotal(all); got != incomeBefore {
		t.Errorf("income total changed by transfers: %d → %d", incomeBefore.Cents, got.Cents)
	}
}

func TestBudgetProgressEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	// March: 50.00 + 30.00 spent against a 100.00 budget.
	for _, e := range []core.Expense{
		{CategoryID: "cat-food", Amount: core.Money{Cents: 5000}, Date: core.NewDate(2024, 3, 1)},
		{CategoryID: "cat-food", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 3, 15)},
	} {
		if _, err := f.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}
	if _, err := f.Budgets.Add(ctx, core.Budget{Month: "2024-03", CategoryID: "cat-food", Amount: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("Add budget: %v", err)
	}

	progress, err := f.BudgetProgress("2024-03")
	if err != nil {
		t.Fatalf("BudgetProgress: %v", err)
	}
	if len(progress) != 1 {
		t.Fatalf("progress length = %d", len(progress))
	}
	p := progress[0]
	if p.Spent.Cents != 8000 || p.Remaining.Cents != 2000 || math.Abs(p.Percentage-80) > 1e-9 || p.IsOverBudget {
		t.Errorf("march progress = %+v", p)
	}

	// A February budget with rollover and 20.00 spend leaves 30.00 that
	// carries into March: effective 130.00, remaining 50.00, ~61.5%.
	if _, err := f.CreateExpense(ctx, core.Expense{CategoryID: "cat-food", Amount: core.Money{Cents: 2000}, Date: core.NewDate(2024, 2, 10)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if _, err := f.Budgets.Add(ctx, core.Budget{Month: "2024-02", CategoryID: "cat-food", Amount: core.Money{Cents: 5000}, Rollover: true}); err != nil {
		t.Fatalf("Add feb budget: %v", err)
	}
	rollover := true
	amount := core.Money{Cents: 10000}
	existing, _ := f.Budgets.GetByMonthAndCategory("2024-03", "cat-food")
	if _, _, err := f.Budgets.Update(ctx, existing.ID, store.BudgetPatch{Amount: &amount, Rollover: &rollover}); err != nil {
		t.Fatalf("Update budget: %v", err)
	}

	progress, err = f.BudgetProgress("2024-03")
	if err != nil {
		t.Fatalf("BudgetProgress: %v", err)
	}
	p = progress[0]
	if p.Amount.Cents != 13000 || p.Spent.Cents != 8000 || p.Remaining.Cents != 5000 {
		t.Errorf("rollover progress = %+v", p)
	}
	wantPct := 8000.0 / 13000.0 * 100
	if math.Abs(p.Percentage-wantPct) > 1e-9 {
		t.Errorf("percentage = %f, want %f", p.Percentage, wantPct)
	}
}

func TestCompareExpensesTrend(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	if _, err := f.CreateExpense(ctx, core.Expense{CategoryID: "cat-food", Amount: core.Money{Cents: 10000}, Date: core.NewDate(2024, 2, 15)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if _, err := f.CreateExpense(ctx, core.Expense{CategoryID: "cat-food", Amount: core.Money{Cents: 10600}, Date: core.NewDate(2024, 3, 15)}); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	cmp, err := f.CompareExpenses("2024-03")
	if err != nil {
		t.Fatalf("CompareExpenses: %v", err)
	}
	if cmp.Trend != analytics.TrendUp {
		t.Errorf("trend = %s, want up (6%% exceeds the dead band)", cmp.Trend)
	}
}

func TestListExpensesWindowFilter(t *testing.T) {
	ctx := context.Background()
	f := newTestFinance(t)

	for _, d := range []core.Date{
		core.NewDate(2024, 3, 1),
		core.NewDate(2024, 3, 20),
		core.NewDate(2024, 4, 2),
	} {
		if _, err := f.CreateExpense(ctx, core.Expense{CategoryID: "cat-food", Amount: core.Money{Cents: 100}, Date: d}); err != nil {
			t.Fatalf("CreateExpense: %v", err)
		}
	}

	custom := analytics.Window{Kind: analytics.WindowCustom, Start: "2024-03-01", End: "2024-03-31"}
	if got := f.ListExpenses(custom); len(got) != 2 {
		t.Errorf("ListExpenses(march) = %d records, want 2", len(got))
	}
	if got := f.ListExpenses(analytics.Window{Kind: analytics.WindowAll}); len(got) != 3 {
		t.Errorf("ListExpenses(all) = %d records, want 3", len(got))
	}
}
