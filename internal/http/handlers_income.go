package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/store"
)

type incomeRequest struct {
	CategoryID *string `json:"categoryId"`
	Amount     *string `json:"amount"`
	Date       *string `json:"date"`
	Note       *string `json:"note"`
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes := s.finance.ListIncomes(parseWindow(r))
	writeJSON(w, http.StatusOK, incomes)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := core.Income{}
	if req.CategoryID != nil {
		in.CategoryID = sanitizeInput(*req.CategoryID)
	}
	if req.Note != nil {
		in.Note = sanitizeInput(*req.Note)
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		in.Amount = amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		in.Date = date
	}

	created, err := s.finance.CreateIncome(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.invalidateIncomeMonth(created.Date.MonthKey())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
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
	before, _ := s.finance.Incomes.GetByID(id)
	updated, found, err := s.finance.UpdateIncome(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "income not found")
		return
	}
	s.invalidateIncomeMonth(before.Date.MonthKey())
	s.invalidateIncomeMonth(updated.Date.MonthKey())
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	before, _ := s.finance.Incomes.GetByID(id)
	found, err := s.finance.DeleteIncome(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "income not found")
		return
	}
	s.invalidateIncomeMonth(before.Date.MonthKey())
	w.WriteHeader(http.StatusNoContent)
}

func (req incomeRequest) toPatch() (store.IncomePatch, error) {
	var patch store.IncomePatch
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
			return store.IncomePatch{}, err
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return store.IncomePatch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}
