package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/stores"
)

type credentials struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[credentials](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	acct, err := s.app.Accounts.Register(r.Context(), body.Username, body.Name, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[credentials](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	acct, err := s.app.Accounts.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	acct, err := s.app.Accounts.Get(r.Context(), chat.AccountID(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type profileRequest struct {
	Name    *string `json:"name"`
	Profile *string `json:"profile"`
	Bio     *string `json:"bio"`
	Status  *string `json:"status"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[profileRequest](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	acct, err := s.app.Accounts.UpdateProfile(r.Context(), accountFrom(r.Context()).ID, stores.ProfileUpdate{
		Name:    body.Name,
		Profile: body.Profile,
		Bio:     body.Bio,
		Status:  body.Status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, chat.Invalid(criterio.NewFieldErrors(name, fmt.Errorf("must be a positive integer")))
	}
	return id, nil
}
