package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/store"
)

type accountRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Balance  *string `json:"balance"`
	Color    *string `json:"color"`
	Icon     *string `json:"icon"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.Accounts.All())
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a := core.Account{}
	if req.Name != nil {
		a.Name = sanitizeInput(*req.Name)
	}
	if req.Category != nil {
		a.Category = sanitizeInput(*req.Category)
	}
	if req.Color != nil {
		a.Color = sanitizeInput(*req.Color)
	}
	if req.Icon != nil {
		a.Icon = sanitizeInput(*req.Icon)
	}
	if req.Balance != nil {
		// Opening balances may legitimately be zero, so this skips the
		// positive-amount rule and only parses the decimal.
		cents, err := core.ParseDecimalToCents(*req.Balance)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		a.Balance = core.Money{Cents: cents}
	}

	if err := a.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	created, err := s.finance.Accounts.Add(r.Context(), a)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch store.AccountPatch
	setString := func(dst **string, src *string) {
		if src != nil {
			v := sanitizeInput(*src)
			*dst = &v
		}
	}
	setString(&patch.Name, req.Name)
	setString(&patch.Category, req.Category)
	setString(&patch.Color, req.Color)
	setString(&patch.Icon, req.Icon)
	if patch.Name != nil && *patch.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, core.ErrEmptyName.Error())
		return
	}

	updated, found, err := s.finance.Accounts.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	found, err := s.finance.Accounts.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
