package http

import (
	"net/http"

	"tally/internal/core"
	"tally/internal/store"
)

type categoryRequest struct {
	Name  *string `json:"name"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

// Both taxonomies share the handler logic; only the backing store
// differs.

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.Categories.All())
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	s.createCategory(w, r, s.finance.Categories)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	s.updateCategory(w, r, s.finance.Categories)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteCategory(w, r, s.finance.Categories)
}

func (s *Server) handleListIncomeCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.finance.IncomeCategories.All())
}

func (s *Server) handleCreateIncomeCategory(w http.ResponseWriter, r *http.Request) {
	s.createCategory(w, r, s.finance.IncomeCategories)
}

func (s *Server) handleUpdateIncomeCategory(w http.ResponseWriter, r *http.Request) {
	s.updateCategory(w, r, s.finance.IncomeCategories)
}

func (s *Server) handleDeleteIncomeCategory(w http.ResponseWriter, r *http.Request) {
	s.deleteCategory(w, r, s.finance.IncomeCategories)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request, categories *store.Categories) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := core.Category{}
	if req.Name != nil {
		c.Name = sanitizeInput(*req.Name)
	}
	if req.Icon != nil {
		c.Icon = sanitizeInput(*req.Icon)
	}
	if req.Color != nil {
		c.Color = sanitizeInput(*req.Color)
	}

	if err := c.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	created, err := categories.Add(r.Context(), c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request, categories *store.Categories) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch store.CategoryPatch
	if req.Name != nil {
		v := sanitizeInput(*req.Name)
		if v == "" {
			writeError(w, http.StatusUnprocessableEntity, core.ErrEmptyName.Error())
			return
		}
		patch.Name = &v
	}
	if req.Icon != nil {
		v := sanitizeInput(*req.Icon)
		patch.Icon = &v
	}
	if req.Color != nil {
		v := sanitizeInput(*req.Color)
		patch.Color = &v
	}

	updated, found, err := categories.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request, categories *store.Categories) {
	id := r.PathValue("id")
	existing, found := categories.GetByID(id)
	if !found {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	if existing.IsSystem {
		writeError(w, http.StatusConflict, "system categories cannot be deleted")
		return
	}

	ok, err := categories.Delete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
