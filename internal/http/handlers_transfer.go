package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/store"
)

type transferRequest struct {
	FromAccountID *string `json:"fromAccountId"`
	ToAccountID   *string `json:"toAccountId"`
	FromName      *string `json:"fromName"`
	ToName        *string `json:"toName"`
	Amount        *string `json:"amount"`
	Date          *string `json:"date"`
	Note          *string `json:"note"`
}

func (s *Server) handleListTransfers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.Transfers.All())
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := core.Transfer{}
	if req.FromAccountID != nil {
		t.FromAccountID = sanitizeInput(*req.FromAccountID)
	}
	if req.ToAccountID != nil {
		t.ToAccountID = sanitizeInput(*req.ToAccountID)
	}
	if req.FromName != nil {
		t.FromName = sanitizeInput(*req.FromName)
	}
	if req.ToName != nil {
		t.ToName = sanitizeInput(*req.ToName)
	}
	if req.Note != nil {
		t.Note = sanitizeInput(*req.Note)
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		t.Amount = amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		t.Date = date
	}

	created, err := s.finance.CreateTransfer(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, found, err := s.finance.UpdateTransfer(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "transfer not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	found, err := s.finance.DeleteTransfer(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "transfer not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req transferRequest) toPatch() (store.TransferPatch, error) {
	var patch store.TransferPatch
	setString := func(dst **string, src *string) {
		if src != nil {
			v := sanitizeInput(*src)
			*dst = &v
		}
	}
	setString(&patch.FromAccountID, req.FromAccountID)
	setString(&patch.ToAccountID, req.ToAccountID)
	setString(&patch.FromName, req.FromName)
	setString(&patch.ToName, req.ToName)
	setString(&patch.Note, req.Note)
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			return store.TransferPatch{}, err
		}
		patch.Amount = &amount
	}
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return store.TransferPatch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}
