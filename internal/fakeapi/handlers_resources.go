package fakeapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pft/internal/core"
	"pft/internal/log"
)

func pathID(r *http.Request) core.ID {
	return core.ID(chi.URLParam(r, "id"))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg, log.FieldError, err)
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := core.ParseTransactionFilter(r.URL.Query())
	if filter.Limit < 0 || filter.Limit > 500 || filter.Offset < 0 {
		writeDetail(w, http.StatusBadRequest, "Invalid paging parameters")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Transactions(userID(r.Context()), filter))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	tx, err := s.store.CreateTransaction(userID(r.Context()), in)
	switch {
	case errors.Is(err, errNotFound):
		writeDetail(w, http.StatusNotFound, "Category not found")
	case err != nil:
		s.internalError(w, r, "Failed to create transaction", err)
	default:
		writeJSON(w, http.StatusCreated, tx)
	}
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var p core.TransactionPatch
	if !decodeBody(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	tx, err := s.store.UpdateTransaction(userID(r.Context()), pathID(r), p)
	switch {
	case errors.Is(err, errNotFound):
		writeDetail(w, http.StatusNotFound, "Transaction or category not found")
	case err != nil:
		s.internalError(w, r, "Failed to update transaction", err)
	default:
		writeJSON(w, http.StatusOK, tx)
	}
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTransaction(userID(r.Context()), pathID(r)); err != nil {
		writeDetail(w, http.StatusNotFound, "Transaction not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Categories(userID(r.Context())))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in core.CategoryInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	c, err := s.store.CreateCategory(userID(r.Context()), in)
	switch {
	case errors.Is(err, errDuplicate):
		writeDetail(w, http.StatusBadRequest, "Category already exists")
	case err != nil:
		s.internalError(w, r, "Failed to create category", err)
	default:
		writeJSON(w, http.StatusCreated, c)
	}
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCategory(userID(r.Context()), pathID(r)); err != nil {
		writeDetail(w, http.StatusNotFound, "Category not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month != "" && !core.ValidMonth(month) {
		writeDetail(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Budgets(userID(r.Context()), month))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Budget(userID(r.Context()), pathID(r))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Budget not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in core.BudgetInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	b, err := s.store.CreateBudget(userID(r.Context()), in)
	s.writeBudget(w, r, b, err, http.StatusCreated)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var p core.BudgetPatch
	if !decodeBody(w, r, &p) {
		return
	}
	if err := p.Validate(); err != nil {
		writeValidation(w, err)
		return
	}
	b, err := s.store.UpdateBudget(userID(r.Context()), pathID(r), p)
	s.writeBudget(w, r, b, err, http.StatusOK)
}

func (s *Server) writeBudget(w http.ResponseWriter, r *http.Request, b core.Budget, err error, status int) {
	switch {
	case errors.Is(err, errInvalidCategory):
		writeDetail(w, http.StatusBadRequest, "Invalid categoryId")
	case errors.Is(err, errDuplicate):
		writeDetail(w, http.StatusBadRequest, "Budget already exists for this scope")
	case errors.Is(err, errNotFound):
		writeDetail(w, http.StatusNotFound, "Budget not found")
	case err != nil:
		s.internalError(w, r, "Failed to save budget", err)
	default:
		writeJSON(w, status, b)
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.store.DeleteBudget(userID(r.Context()), id); err != nil {
		writeDetail(w, http.StatusNotFound, "Budget not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]core.ID{"id": id})
}
