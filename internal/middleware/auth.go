// Package middleware provides HTTP middleware for the jetmonitor API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/DNABoe/jetmonitor/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionReader resolves and refreshes cookie sessions.
type SessionReader interface {
	GetActive(ctx context.Context, token string) (*models.Session, error)
	Extend(ctx context.Context, token string) error
}

// UserReader resolves the authenticated user.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RoleChecker answers role membership queries.
type RoleChecker interface {
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
}

// SessionAuth returns middleware that validates the session_token cookie,
// looks up the session and user in the database, and injects the user
// into the request context. Requests without an active session receive 401.
// Sessions past half their lifetime are extended so active users stay
// logged in.
func SessionAuth(sessions SessionReader, users UserReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("session_token")
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			session, err := sessions.GetActive(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("session lookup failed", "err", err)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if session == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			if time.Until(session.ExpiresAt) < models.SessionTTL/2 {
				if err := sessions.Extend(r.Context(), session.ID); err != nil {
					slog.Warn("session extend failed", "err", err)
				}
			}

			user, err := users.GetByID(r.Context(), session.UserID)
			if err != nil {
				slog.Error("user lookup failed for valid session", "user_id", session.UserID, "err", err)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks the authenticated user holds the
// given role in the roles table. Must be placed after SessionAuth in the
// middleware chain. The check runs before the handler, so a rejected request
// has no side effects.
func RequireRole(roles RoleChecker, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			ok, err := roles.HasRole(r.Context(), user.ID, role)
			if err != nil {
				slog.Error("role check failed", "user_id", user.ID, "role", role, "err", err)
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			if !ok {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if no user is set (i.e., the request is unauthenticated).
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}
