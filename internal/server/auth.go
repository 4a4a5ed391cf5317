package server

import (
	"net/http"
	"strings"

	"needsmatch/pkg/types"
)

// handleLogin registers unknown usernames on first sight. The role is a
// literal match against the configured manager username; there is no
// password behind it.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err, "failed to decode login request")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.handleError(w, r, types.NewValidationError("username", "is required"), "invalid login request")
		return
	}

	role := types.RoleForUsername(username, s.config.ManagerUsername)
	user, err := s.usersRepo.Login(r.Context(), username, role)
	if err != nil {
		s.handleError(w, r, err, "failed to login user")
		return
	}

	encoded, err := s.cookie.Encode(s.config.CookieName, user.ID)
	if err != nil {
		s.handleError(w, r, err, "failed to encode session cookie")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    encoded,
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   s.config.SessionMaxAgeSec,
		Path:     "/",
	})

	s.logger.WithField("user_id", user.ID).WithField("role", user.Role).Info("user logged in")

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "logged in", Data: user})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.CookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.config.Environment != "development",
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})

	s.writeJSON(w, r, http.StatusOK, types.Response{Success: true, Message: "logged out"})
}

func (s *Service) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.usersRepo.User(r.Context(), r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, err, "failed to fetch user")
		return
	}

	s.ok(w, r, user)
}

// sessionUserID decodes the session cookie. A missing or tampered cookie
// yields an empty id.
func (s *Service) sessionUserID(r *http.Request) string {
	c, err := r.Cookie(s.config.CookieName)
	if err != nil {
		return ""
	}

	var userID string
	if err := s.cookie.Decode(s.config.CookieName, c.Value, &userID); err != nil {
		s.logger.WithError(err).Debug("failed to decode session cookie")
		return ""
	}

	return userID
}
