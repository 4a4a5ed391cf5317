package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"needsmatch/pkg/types"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	contextKeyActor contextKey = "actor"

	headerUserID = "X-User-ID"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// LoadActor resolves the acting user from the session cookie, falling back
// to the X-User-ID header. Requests without either carry no actor.
func (s *Service) LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := s.sessionUserID(r)
		if userID == "" {
			userID = strings.TrimSpace(r.Header.Get(headerUserID))
		}

		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.usersRepo.User(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, types.ErrUserNotFound) {
				s.logger.WithError(err).WithField("user_id", userID).Error("failed to load acting user")
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyActor, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireManager rejects requests whose acting user is not a manager.
func (s *Service) RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())
		if !actor.IsManager() {
			s.writeError(w, r, http.StatusForbidden, types.ErrForbidden.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StripTrailingSlash rewrites /needs/ to /needs before routing. It wraps the
// mux rather than sitting inside it because flow matches before running
// route middleware.
func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			r.URL.Path = strings.TrimRight(path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
		}

		next.ServeHTTP(w, r)
	})
}

func actorFromContext(ctx context.Context) *types.User {
	user, _ := ctx.Value(contextKeyActor).(*types.User)
	return user
}
