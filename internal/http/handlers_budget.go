package http

import (
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/store"
)

type budgetRequest struct {
	Month      *string `json:"month"`
	CategoryID *string `json:"categoryId"`
	Amount     *string `json:"amount"`
	Rollover   *bool   `json:"rollover"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		writeJSON(w, http.StatusOK, s.finance.Budgets.ForMonth(month))
		return
	}
	writeJSON(w, http.StatusOK, s.finance.Budgets.All())
}

// handleUpsertBudget creates the (month, category) budget or replaces
// its amount and rollover flag.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := core.Budget{}
	if req.Month != nil {
		b.Month = sanitizeInput(*req.Month)
	}
	if req.CategoryID != nil {
		b.CategoryID = sanitizeInput(*req.CategoryID)
	}
	if req.Rollover != nil {
		b.Rollover = *req.Rollover
	}
	if req.Amount != nil {
		// Zero caps are allowed: they mark a category as off-limits for
		// the month.
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		b.Amount = core.Money{Cents: cents}
	}

	saved, err := s.finance.UpsertBudget(r.Context(), b)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateBudgetMonth(saved.Month)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch store.BudgetPatch
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		patch.Amount = &core.Money{Cents: cents}
	}
	patch.Rollover = req.Rollover

	updated, found, err := s.finance.UpdateBudget(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}
	s.invalidateBudgetMonth(updated.Month)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	before, _ := s.finance.Budgets.GetByID(id)
	found, err := s.finance.DeleteBudget(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "budget not found")
		return
	}
	s.invalidateBudgetMonth(before.Month)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if cached, ok := s.progressCache.Get(month); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	progress, err := s.finance.BudgetProgress(month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.progressCache.Set(month, progress)
	writeJSON(w, http.StatusOK, progress)
}
