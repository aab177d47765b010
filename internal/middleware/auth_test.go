package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DNABoe/jetmonitor/internal/models"
)

type fakeSessions struct {
	byToken  map[string]*models.Session
	extended []string
}

func (f *fakeSessions) GetActive(_ context.Context, token string) (*models.Session, error) {
	sess, ok := f.byToken[token]
	if !ok || sess.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

func (f *fakeSessions) Extend(_ context.Context, token string) error {
	f.extended = append(f.extended, token)
	return nil
}

type fakeUsers struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

type fakeRoles struct {
	granted map[string]bool
}

func (f *fakeRoles) HasRole(_ context.Context, userID uuid.UUID, role string) (bool, error) {
	return f.granted[userID.String()+"/"+role], nil
}

func authFixture(ttlLeft time.Duration) (*fakeSessions, *fakeUsers, *models.User, string) {
	user := &models.User{ID: uuid.New(), Email: "analyst@example.com"}
	token := "tok-1"
	sessions := &fakeSessions{byToken: map[string]*models.Session{
		token: {ID: token, UserID: user.ID, ExpiresAt: time.Now().Add(ttlLeft)},
	}}
	users := &fakeUsers{byID: map[uuid.UUID]*models.User{user.ID: user}}
	return sessions, users, user, token
}

func doAuthed(t *testing.T, mw func(http.Handler) http.Handler, token string) (*httptest.ResponseRecorder, *models.User) {
	t.Helper()
	var seen *models.User
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session_token", Value: token})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestSessionAuthInjectsUser(t *testing.T) {
	sessions, users, user, token := authFixture(models.SessionTTL)

	rec, seen := doAuthed(t, SessionAuth(sessions, users), token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
	assert.Empty(t, sessions.extended, "fresh session is not extended")
}

func TestSessionAuthRejectsMissingCookie(t *testing.T) {
	sessions, users, _, _ := authFixture(models.SessionTTL)

	rec, seen := doAuthed(t, SessionAuth(sessions, users), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestSessionAuthRejectsExpiredSession(t *testing.T) {
	sessions, users, _, token := authFixture(-time.Hour)

	rec, seen := doAuthed(t, SessionAuth(sessions, users), token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
	assert.Empty(t, sessions.extended)
}

func TestSessionAuthExtendsAgingSession(t *testing.T) {
	// Less than half the lifetime left triggers the sliding extension.
	sessions, users, _, token := authFixture(models.SessionTTL / 4)

	rec, _ := doAuthed(t, SessionAuth(sessions, users), token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{token}, sessions.extended)
}

func TestRequireRoleChecksRolesTable(t *testing.T) {
	sessions, users, user, token := authFixture(models.SessionTTL)
	roles := &fakeRoles{granted: map[string]bool{user.ID.String() + "/" + models.RoleAdmin: true}}

	chain := func(next http.Handler) http.Handler {
		return SessionAuth(sessions, users)(RequireRole(roles, models.RoleAdmin)(next))
	}
	rec, _ := doAuthed(t, chain, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	roles.granted = map[string]bool{}
	rec, _ = doAuthed(t, chain, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
