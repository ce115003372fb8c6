package devserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/me/libra/pkg/model"
)

const fieldRequired = "This field is required."

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	fields := map[string][]string{}
	if req.Username == "" {
		fields["username"] = []string{fieldRequired}
	}
	if req.Password == "" {
		fields["password"] = []string{fieldRequired}
	}
	if len(fields) > 0 {
		respondFields(w, fields)
		return
	}

	resp, err := s.lib.Login(req.Username, req.Password)
	if err != nil {
		respondErrorMsg(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	s.logger.Debug("login", "user", req.Username)
	respondOK(w, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := decodeBody(r, &reg); err != nil {
		respondDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(reg.Username) == "" {
		fields["username"] = []string{fieldRequired}
	}
	if strings.TrimSpace(reg.Email) == "" {
		fields["email"] = []string{fieldRequired}
	} else if !strings.Contains(reg.Email, "@") {
		fields["email"] = []string{"Enter a valid email address."}
	}
	if reg.Password == "" {
		fields["password"] = []string{fieldRequired}
	}
	if reg.Password != reg.ConfirmPassword {
		fields["confirm_password"] = []string{"Passwords do not match."}
	}
	if len(fields) > 0 {
		respondFields(w, fields)
		return
	}

	resp, err := s.lib.Register(reg)
	switch {
	case errors.Is(err, ErrUsernameTaken):
		respondFields(w, map[string][]string{"username": {"A user with that username already exists."}})
		return
	case err != nil:
		s.logger.Error("register", "error", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	s.logger.Info("registered", "user", reg.Username)
	respondCreated(w, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.lib.RevokeToken(tokenFromContext(r.Context()))
	respondDetail(w, http.StatusOK, "Successfully logged out.")
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondFields(w, map[string][]string{"email": {fieldRequired}})
		return
	}
	// Unknown addresses get the same answer.
	s.lib.RequestPasswordReset(req.Email)
	respondDetail(w, http.StatusOK, "Password reset e-mail has been sent.")
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.lib.Profile(UserFromContext(r.Context()))
	if err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	respondOK(w, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd model.ProfileUpdate
	if err := decodeBody(r, &upd); err != nil {
		respondDetail(w, http.StatusBadRequest, "JSON parse error.")
		return
	}
	p, err := s.lib.UpdateProfile(UserFromContext(r.Context()), upd)
	if err != nil {
		respondDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	respondOK(w, p)
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req model.DeviceRegistration
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.DeviceToken) == "" {
		respondFields(w, map[string][]string{"device_token": {fieldRequired}})
		return
	}
	s.lib.RegisterDevice(UserFromContext(r.Context()), req.DeviceToken)
	respondJSON(w, http.StatusCreated, map[string]string{"detail": "Device registered."})
}
