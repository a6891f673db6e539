package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/asifchowdhury1/studysync/internal/auth"
	"github.com/asifchowdhury1/studysync/internal/db"
)

// authResponse is the register/login response body.
type authResponse struct {
	Token string  `json:"token"`
	User  db.User `json:"user"`
}

// validEmail reports whether s is a single well-formed address.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func (s *Server) handleRegister(
	w http.ResponseWriter, r *http.Request,
) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadPassword) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("register error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}

	user, err := s.db.CreateUser(req.Email, hash, req.Name)
	if err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			writeError(w, http.StatusConflict,
				"email already registered")
			return
		}
		log.Printf("register error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Token: s.signer.Sign(user.ID, s.now()),
		User:  user,
	})
}

func (s *Server) handleLogin(
	w http.ResponseWriter, r *http.Request,
) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.db.GetUserByEmail(
		r.Context(), strings.TrimSpace(req.Email),
	)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		if handleContextError(w, err) {
			return
		}
		log.Printf("login error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	// A missing account and a wrong password produce the same
	// rejection, so login cannot probe for registered emails.
	if errors.Is(err, db.ErrNotFound) ||
		!auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized,
			"invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: s.signer.Sign(user.ID, s.now()),
		User:  user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.db.GetUser(r.Context(), userID(r))
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "account removed")
			return
		}
		log.Printf("me error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(
	w http.ResponseWriter, r *http.Request,
) {
	var req struct {
		Name        *string         `json:"name"`
		DailyGoal   *int            `json:"dailyGoal"`
		WeeklyGoal  *int            `json:"weeklyGoal"`
		Preferences json.RawMessage `json:"preferences"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.DailyGoal != nil && *req.DailyGoal < 0 {
		writeError(w, http.StatusBadRequest,
			"dailyGoal must not be negative")
		return
	}
	if req.WeeklyGoal != nil && *req.WeeklyGoal < 0 {
		writeError(w, http.StatusBadRequest,
			"weeklyGoal must not be negative")
		return
	}

	update := db.ProfileUpdate{
		Name:       req.Name,
		DailyGoal:  req.DailyGoal,
		WeeklyGoal: req.WeeklyGoal,
	}
	if len(req.Preferences) > 0 {
		if !json.Valid(req.Preferences) {
			writeError(w, http.StatusBadRequest,
				"preferences must be a JSON object")
			return
		}
		prefs := string(req.Preferences)
		update.Preferences = &prefs
	}

	user, err := s.db.UpdateProfile(r.Context(), userID(r), update)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "account removed")
			return
		}
		log.Printf("profile error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
