package http

import (
	"net/http"

	"tally/internal/core"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, owner core.User) error {
	NewJSONResponse().Body(owner).Write(w, r)
	return nil
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, owner core.User) error {
	var upd core.UserUpdate
	if err := DecodeJSON(w, r, &upd); err != nil {
		return err
	}
	user, err := s.finance.UpdateUser(r.Context(), owner.ID, upd)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(user).Write(w, r)
	return nil
}

// handleDeleteUser erases the owner and everything it holds. The next request
// with the same device header starts from an empty account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, owner core.User) error {
	if err := s.finance.DeleteUser(r.Context(), owner.ID); err != nil {
		return err
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
	return nil
}
