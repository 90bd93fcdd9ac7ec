package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

type additionalIncomeRequest struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Source     string          `json:"source"`
	Kind       core.Kind       `json:"type"`
	Date       core.Date       `json:"date,omitzero"`
	DayOfMonth int             `json:"day_of_month,omitempty"`
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	in, err := s.finance.Income(r.Context(), owner.ID)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(in).Write(w, r)
	return nil
}

func (s *Server) handleSaveIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var upd core.IncomeUpdate
	if err := DecodeJSON(w, r, &upd); err != nil {
		return err
	}
	saved, err := s.finance.SaveIncome(r.Context(), owner.ID, upd)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleListAdditionalIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	items, err := s.finance.AdditionalIncome(r.Context(), owner.ID)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(items)).Write(w, r)
	return nil
}

func (s *Server) handleCreateAdditionalIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req additionalIncomeRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	saved, err := s.finance.AddAdditionalIncome(r.Context(), owner.ID, core.AdditionalIncome{
		Name:       sanitizeInput(req.Name),
		Amount:     req.Amount,
		Source:     sanitizeInput(req.Source),
		Kind:       req.Kind,
		Date:       req.Date,
		DayOfMonth: req.DayOfMonth,
	})
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleUpdateAdditionalIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var upd core.AdditionalIncomeUpdate
	if err := DecodeJSON(w, r, &upd); err != nil {
		return err
	}
	upd.Name = sanitizeOptional(upd.Name)
	upd.Source = sanitizeOptional(upd.Source)
	saved, err := s.finance.UpdateAdditionalIncome(r.Context(), owner.ID, r.PathValue("id"), upd)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeleteAdditionalIncome(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemoveAdditionalIncome(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}
