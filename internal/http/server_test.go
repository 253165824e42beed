package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	finance := services.NewFinance(storage.NewMemoryKV(), nil)
	if err := finance.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv := NewServer(":0", finance, services.NewBackup(finance), nil)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestCreateExpenseEndpoint(t *testing.T) {
	srv := newTestServer(t)

	// Malformed JSON
	rr := doJSON(t, srv, http.MethodPost, "/api/expenses", `{"amount":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rr.Code)
	}

	// Unparsable amount
	rr = doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"abc","date":"2024-03-05"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad amount status = %d, want 422", rr.Code)
	}

	// Future date
	rr = doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"12.34","date":"2199-01-01"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("future date status = %d, want 422", rr.Code)
	}

	// Success
	rr = doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"12.34","date":"2024-03-05","note":"lunch"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	var created core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Amount.Cents != 1234 {
		t.Errorf("created = %+v", created)
	}
}

func TestListExpensesWindow(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"categoryId":"cat-food","amount":"5.00","date":"2024-03-01"}`,
		`{"categoryId":"cat-food","amount":"5.00","date":"2024-04-01"}`,
	} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/expenses?period=custom&startDate=2024-03-01&endDate=2024-03-31", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var got []core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("march window returned %d expenses, want 1", len(got))
	}

	// An inverted custom range degrades to no filter.
	rr = doJSON(t, srv, http.MethodGet, "/api/expenses?period=custom&startDate=2024-03-31&endDate=2024-03-01", "")
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if len(got) != 2 {
		t.Errorf("inverted window returned %d expenses, want all 2", len(got))
	}
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPut, "/api/expenses/missing", `{"note":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, "/api/expenses/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rr.Code)
	}
}

func TestCategoryDeleteGuards(t *testing.T) {
	srv := newTestServer(t)

	// Seeded categories are system and protected.
	rr := doJSON(t, srv, http.MethodDelete, "/api/categories/cat-food", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("system delete status = %d, want 409", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", `{"name":"Pets","icon":"paw","color":"#795548"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status = %d", rr.Code)
	}
	var created core.Category
	_ = json.Unmarshal(rr.Body.Bytes(), &created)

	rr = doJSON(t, srv, http.MethodDelete, "/api/categories/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("custom delete status = %d, want 204", rr.Code)
	}
}

func TestBudgetProgressEndpoint(t *testing.T) {
	srv := newTestServer(t)

	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"80.00","date":"2024-03-10"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d", rr.Code)
	}
	if rr := doJSON(t, srv, http.MethodPost, "/api/budgets",
		`{"month":"2024-03","categoryId":"cat-food","amount":"100.00"}`); rr.Code != http.StatusCreated {
		t.Fatalf("upsert budget status = %d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/budgets/progress?month=2024-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rr.Code)
	}
	var progress []analytics.BudgetProgress
	if err := json.Unmarshal(rr.Body.Bytes(), &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if len(progress) != 1 || progress[0].Spent.Cents != 8000 || progress[0].Percentage != 80 {
		t.Errorf("progress = %+v", progress)
	}

	// Malformed month
	rr = doJSON(t, srv, http.MethodGet, "/api/budgets/progress?month=03-2024", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d, want 422", rr.Code)
	}
}

// A mutation in month M changes the carry that month M+1's progress is
// built on, so it must evict the cached progress for both months.
func TestProgressCacheInvalidatedAcrossRollover(t *testing.T) {
	srv := newTestServer(t)

	if rr := doJSON(t, srv, http.MethodPost, "/api/budgets",
		`{"month":"2024-03","categoryId":"cat-food","amount":"100.00","rollover":true}`); rr.Code != http.StatusCreated {
		t.Fatalf("upsert march budget status = %d", rr.Code)
	}
	if rr := doJSON(t, srv, http.MethodPost, "/api/budgets",
		`{"month":"2024-04","categoryId":"cat-food","amount":"100.00","rollover":true}`); rr.Code != http.StatusCreated {
		t.Fatalf("upsert april budget status = %d", rr.Code)
	}

	fetchAprilEffective := func() int64 {
		rr := doJSON(t, srv, http.MethodGet, "/api/budgets/progress?month=2024-04", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("progress status = %d", rr.Code)
		}
		var progress []analytics.BudgetProgress
		if err := json.Unmarshal(rr.Body.Bytes(), &progress); err != nil {
			t.Fatalf("decode progress: %v", err)
		}
		if len(progress) != 1 {
			t.Fatalf("progress = %+v, want one entry", progress)
		}
		return progress[0].Amount.Cents
	}

	// March is untouched, so April carries the full 100.00.
	if got := fetchAprilEffective(); got != 20000 {
		t.Fatalf("effective amount = %d, want 20000", got)
	}

	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"40.00","date":"2024-03-10"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d", rr.Code)
	}

	if got := fetchAprilEffective(); got != 16000 {
		t.Errorf("effective amount after march spend = %d, want 16000 (stale cache served?)", got)
	}
}

func TestMonthlyStatsCacheInvalidation(t *testing.T) {
	srv := newTestServer(t)

	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"10.00","date":"2024-03-01"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	fetchTotal := func() int64 {
		rr := doJSON(t, srv, http.MethodGet, "/api/stats/monthly?month=2024-03", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("stats status = %d", rr.Code)
		}
		var stats analytics.MonthlyStats
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatalf("decode stats: %v", err)
		}
		return stats.Total.Cents
	}

	if got := fetchTotal(); got != 1000 {
		t.Fatalf("total = %d, want 1000", got)
	}

	// A second mutation must evict the cached stats.
	if rr := doJSON(t, srv, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"2.50","date":"2024-03-02"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	if got := fetchTotal(); got != 1250 {
		t.Errorf("total after mutation = %d, want 1250 (stale cache served?)", got)
	}
}

func TestComparisonEndpoint(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`{"categoryId":"cat-food","amount":"100.00","date":"2024-02-15"}`,
		`{"categoryId":"cat-food","amount":"150.00","date":"2024-03-15"}`,
	} {
		if rr := doJSON(t, srv, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/stats/comparison?month=2024-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("comparison status = %d", rr.Code)
	}
	var cmp analytics.MonthComparison
	if err := json.Unmarshal(rr.Body.Bytes(), &cmp); err != nil {
		t.Fatalf("decode comparison: %v", err)
	}
	if cmp.Trend != analytics.TrendUp {
		t.Errorf("trend = %s, want up", cmp.Trend)
	}
}

func TestBackupRoundTripOverAPI(t *testing.T) {
	src := newTestServer(t)
	if rr := doJSON(t, src, http.MethodPost, "/api/expenses",
		`{"categoryId":"cat-food","amount":"42.00","date":"2024-03-05"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr := doJSON(t, src, http.MethodGet, "/api/backup/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	exported := rr.Body.String()

	dst := newTestServer(t)
	rr = doJSON(t, dst, http.MethodPost, "/api/backup/import?mode=replace", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, dst, http.MethodGet, "/api/expenses", "")
	var got []core.Expense
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(got) != 1 || got[0].Amount.Cents != 4200 {
		t.Errorf("imported expenses = %+v", got)
	}

	rr = doJSON(t, dst, http.MethodPost, "/api/backup/import?mode=sideways", exported)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", rr.Code)
	}
}

func TestStatsKindValidation(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/api/stats/monthly?month=2024-03&kind=bogus", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus kind status = %d, want 422", rr.Code)
	}
}

func TestTransferEndpointsAdjustBalances(t *testing.T) {
	srv := newTestServer(t)

	mkAccount := func(name string, balance string) core.Account {
		rr := doJSON(t, srv, http.MethodPost, "/api/accounts",
			fmt.Sprintf(`{"name":%q,"balance":%q}`, name, balance))
		if rr.Code != http.StatusCreated {
			t.Fatalf("create account status = %d", rr.Code)
		}
		var a core.Account
		_ = json.Unmarshal(rr.Body.Bytes(), &a)
		return a
	}

	from := mkAccount("Checking", "1000.00")
	to := mkAccount("Savings", "0")

	rr := doJSON(t, srv, http.MethodPost, "/api/transfers",
		fmt.Sprintf(`{"fromAccountId":%q,"toAccountId":%q,"amount":"250.00","date":"2024-03-05"}`, from.ID, to.ID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create transfer status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/accounts", "")
	var accounts []core.Account
	_ = json.Unmarshal(rr.Body.Bytes(), &accounts)
	balances := map[string]int64{}
	for _, a := range accounts {
		balances[a.ID] = a.Balance.Cents
	}
	if balances[from.ID] != 75000 || balances[to.ID] != 25000 {
		t.Errorf("balances = %v", balances)
	}

	// Same-account transfer is rejected.
	rr = doJSON(t, srv, http.MethodPost, "/api/transfers",
		fmt.Sprintf(`{"fromAccountId":%q,"toAccountId":%q,"amount":"1.00","date":"2024-03-05"}`, from.ID, from.ID))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("same account status = %d, want 422", rr.Code)
	}
}
