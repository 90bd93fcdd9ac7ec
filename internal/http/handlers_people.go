package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

type personRequest struct {
	Name string `json:"name"`
}

type lendingRequest struct {
	PersonID string          `json:"person_id"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note,omitempty"`
	Date     core.Date       `json:"date,omitzero"`
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request, owner core.User) error {
	people, err := s.finance.People(r.Context(), owner.ID)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(people)).Write(w, r)
	return nil
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req personRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	saved, err := s.finance.AddPerson(r.Context(), owner.ID, core.Person{Name: sanitizeInput(req.Name)})
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleRenamePerson(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req personRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	saved, err := s.finance.RenamePerson(r.Context(), owner.ID, r.PathValue("id"), sanitizeInput(req.Name))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemovePerson(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}

func (s *Server) handlePersonBalances(w http.ResponseWriter, r *http.Request, owner core.User) error {
	balances, err := s.summaries.PersonBalances(r.Context(), owner.ID)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(balances)).Write(w, r)
	return nil
}

// handleListLending lists lending records, narrowed to one person when
// person_id is set.
func (s *Server) handleListLending(w http.ResponseWriter, r *http.Request, owner core.User) error {
	records, err := s.finance.Lending(r.Context(), owner.ID, sanitizeInput(r.URL.Query().Get("person_id")))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(orEmpty(records)).Write(w, r)
	return nil
}

func (s *Server) handleCreateLending(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var req lendingRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Date.IsZero() {
		req.Date = core.DateOf(s.now())
	}
	saved, err := s.finance.AddLending(r.Context(), owner.ID, core.LendingRecord{
		PersonID: sanitizeInput(req.PersonID),
		Amount:   req.Amount,
		Note:     sanitizeInput(req.Note),
		Date:     req.Date,
	})
	if err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusCreated).Body(saved).Write(w, r)
	return nil
}

func (s *Server) handleDeleteLending(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.RemoveLending(r.Context(), owner.ID, r.PathValue("id")); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}
