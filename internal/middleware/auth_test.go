package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	live map[string]bool
}

func (s *stubSessions) Exists(_ context.Context, sessionID string) (bool, error) {
	return s.live[sessionID], nil
}

func testIdentity() Identity {
	return Identity{
		UserID:    uuid.New(),
		DomainID:  uuid.New(),
		Domain:    "north",
		Username:  "ivanov",
		Role:      "operator",
		SessionID: uuid.NewString(),
	}
}

func newTestAuth(t *testing.T, id Identity) (*SessionAuth, string) {
	t.Helper()
	sessions := &stubSessions{live: map[string]bool{id.SessionID: true}}
	auth := NewSessionAuth("0123456789abcdef0123", time.Hour, sessions)
	code, _, err := auth.IssueSessionCode(id, time.Now())
	require.NoError(t, err)
	return auth, code
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestSessionCode_RoundTrip(t *testing.T) {
	id := testIdentity()
	auth, code := newTestAuth(t, id)

	got, err := auth.ParseSessionCode(code)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestSessionCode_Expired(t *testing.T) {
	id := testIdentity()
	auth := NewSessionAuth("0123456789abcdef0123", time.Minute, nil)
	code, _, err := auth.IssueSessionCode(id, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = auth.ParseSessionCode(code)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionCode_WrongSecret(t *testing.T) {
	id := testIdentity()
	_, code := newTestAuth(t, id)

	other := NewSessionAuth("another-secret-entirely", time.Hour, nil)
	_, err := other.ParseSessionCode(code)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMiddleware(t *testing.T) {
	id := testIdentity()
	auth, code := newTestAuth(t, id)

	var seen Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		target   string
		bearer   string
		status   int
		wantCode string
	}{
		{"query credentials", "/x?domain=north&username=ivanov&session_code=" + code, "", http.StatusOK, ""},
		{"bearer fallback", "/x", code, http.StatusOK, ""},
		{"missing", "/x", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"domain mismatch", "/x?domain=south&username=ivanov&session_code=" + code, "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"username mismatch", "/x?domain=north&username=petrov&session_code=" + code, "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage", "/x?session_code=abc", "", http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Identity{}
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.Equal(t, tt.status, rr.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rr))
				return
			}
			assert.Equal(t, id.UserID, seen.UserID)
		})
	}
}

func TestMiddleware_RevokedSession(t *testing.T) {
	id := testIdentity()
	sessions := &stubSessions{live: map[string]bool{}}
	auth := NewSessionAuth("0123456789abcdef0123", time.Hour, sessions)
	code, _, err := auth.IssueSessionCode(id, time.Now())
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/x?session_code="+code, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "SESSION_EXPIRED", errorCode(t, rr))
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin", "supervisor")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		"admin":      http.StatusNoContent,
		"supervisor": http.StatusNoContent,
		"operator":   http.StatusForbidden,
		"":           http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), Identity{Role: role}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code, "role %q", role)
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))
}
