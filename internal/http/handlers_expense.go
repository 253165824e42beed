package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/store"
)

type expenseRequest struct {
	CategoryID *string `json:"categoryId"`
	Amount     *string `json:"amount"`
	Date       *string `json:"date"`
	Note       *string `json:"note"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses := s.finance.ListExpenses(parseWindow(r))
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := core.Expense{}
	if req.CategoryID != nil {
		e.CategoryID = sanitizeInput(*req.CategoryID)
	}
	if req.Note != nil {
		e.Note = sanitizeInput(*req.Note)
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		e.Amount = amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		e.Date = date
	}

	created, err := s.finance.CreateExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateExpenseMonth(created.Date.MonthKey())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id := r.PathValue("id")
	before, _ := s.finance.Expenses.GetByID(id)
	updated, found, err := s.finance.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	s.invalidateExpenseMonth(before.Date.MonthKey())
	s.invalidateExpenseMonth(updated.Date.MonthKey())
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	before, _ := s.finance.Expenses.GetByID(id)
	found, err := s.finance.DeleteExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	s.invalidateExpenseMonth(before.Date.MonthKey())
	w.WriteHeader(http.StatusNoContent)
}

func (req expenseRequest) toPatch() (store.ExpensePatch, error) {
	var patch store.ExpensePatch
	if req.CategoryID != nil {
		v := sanitizeInput(*req.CategoryID)
		patch.CategoryID = &v
	}
	if req.Note != nil {
		v := sanitizeInput(*req.Note)
		patch.Note = &v
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			return store.ExpensePatch{}, err
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return store.ExpensePatch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}
