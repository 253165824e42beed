package http

import (
	"net/http"
	"strings"

	"tally/internal/analytics"
)

// handleMonthlyStats serves expense stats by default; kind=income
// switches taxonomy. Results are cached per (kind, month).
func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = "expense"
	}
	if kind != "expense" && kind != "income" {
		writeError(w, http.StatusUnprocessableEntity, "kind must be expense or income")
		return
	}

	cacheKey := kind + ":" + month
	if cached, ok := s.statsCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := s.monthlyStats(kind, month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.statsCache.Set(cacheKey, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) monthlyStats(kind, month string) (analytics.MonthlyStats, error) {
	if kind == "income" {
		return s.finance.MonthlyIncomeStats(month)
	}
	return s.finance.MonthlyExpenseStats(month)
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cmp, err := s.finance.CompareExpenses(month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
