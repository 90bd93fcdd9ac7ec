package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tally/internal/billing"
	"tally/internal/core"
)

type billRequest struct {
	Name               string           `json:"name"`
	Category           string           `json:"category"`
	Frequency          core.Frequency   `json:"frequency"`
	ExpectedAmount     *decimal.Decimal `json:"expected_amount,omitempty"`
	DeadlineDay        *int             `json:"deadline_day,omitempty"`
	ReminderDaysBefore *int             `json:"reminder_days_before,omitempty"`
}

// paymentRequest is the body of POST /api/bills/{id}/payments. The bill is
// taken from the path; a missing paid_at means today.
type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      core.Date       `json:"paid_at,omitzero"`
	PeriodStart core.Date       `json:"period_start,omitzero"`
	PeriodEnd   core.Date       `json:"period_end,omitzero"`
}

// handleListBills lists active bills, or every bill with ?all=true.
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request, owner core.User) error {
	all, err := ParseBoolParam(r.URL.Query(), "all")
	if err != nil {
		return err
	}
	bills, err := s.finance.Bills(r.Context(), owner.ID, !all)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(bills)).Write(w, r)
	return nil
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req billRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	saved, err := s.finance.AddBill(r.Context(), owner.ID, core.Bill{
		Name:               sanitizeInput(req.Name),
		Category:           sanitizeInput(req.Category),
		Frequency:          req.Frequency,
		ExpectedAmount:     req.ExpectedAmount,
		DeadlineDay:        req.DeadlineDay,
		ReminderDaysBefore: req.ReminderDaysBefore,
	})
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request, owner core.User) error {
	bill, err := s.finance.Bill(r.Context(), owner.ID, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(bill).Write(w, r)
	return nil
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var upd core.BillUpdate
	if err := DecodeJSON(w, r, &upd); err != nil {
		return err
	}
	upd.Name = sanitizeOptional(upd.Name)
	upd.Category = sanitizeOptional(upd.Category)
	saved, err := s.finance.UpdateBill(r.Context(), owner.ID, r.PathValue("id"), upd)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemoveBill(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}

func (s *Server) handleDeactivateBill(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.DeactivateBill(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}

func (s *Server) handleListBillPayments(w http.ResponseWriter, r *http.Request, owner core.User) error {
	payments, err := s.finance.BillPayments(r.Context(), owner.ID, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(payments)).Write(w, r)
	return nil
}

func (s *Server) handleRecordBillPayment(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req paymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.PaidAt.IsZero() {
		req.PaidAt = core.DateOf(s.now())
	}
	saved, err := s.finance.RecordBillPayment(r.Context(), owner.ID, core.PaymentInput{
		BillID:      r.PathValue("id"),
		Amount:      req.Amount,
		PaidAt:      req.PaidAt,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
	})
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeleteBillPayment(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemoveBillPayment(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}

// handleBillStatus reports each bill against the period containing date.
func (s *Server) handleBillStatus(w http.ResponseWriter, r *http.Request, owner core.User) error {
	query := r.URL.Query()
	date, err := ParseDateParam(query, "date", s.now())
	if err != nil {
		return err
	}
	all, err := ParseBoolParam(query, "all")
	if err != nil {
		return err
	}
	statuses, err := s.summaries.BillStatuses(r.Context(), owner.ID, date.Time, all)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(statuses)).Write(w, r)
	return nil
}

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request, owner core.User) error {
	date, err := ParseDateParam(r.URL.Query(), "date", s.now())
	if err != nil {
		return err
	}
	due, err := s.summaries.UpcomingDeadlines(r.Context(), owner.ID, date.Time)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(due)).Write(w, r)
	return nil
}

// handleBillPeriod computes the billing period of a frequency around a date.
// It reads no owner data, so it needs no device header.
func (s *Server) handleBillPeriod(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	freq, err := core.ParseFrequency(sanitizeInput(query.Get("frequency")))
	if err != nil {
		ErrorFrom(r, &core.ValidationError{Field: "frequency", Err: core.ErrInvalidFrequency}).Write(w, r)
		return
	}
	date, err := ParseDateParam(query, "date", s.now())
	if err != nil {
		ErrorFrom(r, err).Write(w, r)
		return
	}
	period, err := billing.CurrentPeriod(freq, date.Time)
	if err != nil {
		ErrorFrom(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Body(period).Write(w, r)
}
