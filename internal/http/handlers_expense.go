package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// expenseRequest is the body of POST /api/expenses. Bill payments are
// recorded through the bill payment route, so no payment link is accepted.
type expenseRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Kind       core.Kind       `json:"type"`
	Date       core.Date       `json:"date,omitzero"`
	DayOfMonth int             `json:"day_of_month,omitempty"`
}

func (req expenseRequest) expense() core.Expense {
	return core.Expense{
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		Category:   sanitizeInput(req.Category),
		Kind:       req.Kind,
		Date:       req.Date,
		DayOfMonth: req.DayOfMonth,
	}
}

// handleListExpenses lists expenses filtered by type, or by date range when
// start or end is given.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, owner core.User) error {
	ctx := r.Context()
	query := r.URL.Query()

	var (
		expenses []core.Expense
		err      error
	)
	if strings.TrimSpace(query.Get("start")) != "" || strings.TrimSpace(query.Get("end")) != "" {
		start, end, perr := ParseRangeParams(query, s.now())
		if perr != nil {
			return perr
		}
		expenses, err = s.finance.ExpensesInRange(ctx, owner.ID, start, end)
	} else {
		expenses, err = s.finance.Expenses(ctx, owner.ID, ParseKindParam(query))
	}
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(expenses)).Write(w, r)
	return nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req expenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	saved, err := s.finance.AddExpense(r.Context(), owner.ID, req.expense())
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request, owner core.User) error {
	e, err := s.finance.Expense(r.Context(), owner.ID, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(e).Write(w, r)
	return nil
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var upd core.ExpenseUpdate
	if err := DecodeJSON(w, r, &upd); err != nil {
		return err
	}
	upd.Name = sanitizeOptional(upd.Name)
	upd.Category = sanitizeOptional(upd.Category)
	saved, err := s.finance.UpdateExpense(r.Context(), owner.ID, r.PathValue("id"), upd)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemoveExpense(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}
