package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

type stubAuth struct {
	id  middleware.Identity
	err error
	got middleware.Credentials
}

func (s *stubAuth) Authenticate(ctx context.Context, creds middleware.Credentials) (middleware.Identity, error) {
	s.got = creds
	return s.id, s.err
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
}

func TestHub_RejectsBadCredentials(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"missing code", "domain=north&username=ivanov", nil, http.StatusUnauthorized},
		{"expired", "session_code=abc", middleware.ErrSessionExpired, http.StatusUnauthorized},
		{"invalid", "session_code=abc", middleware.ErrInvalidSession, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(nil, &stubAuth{err: tt.err}, zap.NewNop())
			srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
			defer srv.Close()

			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.query), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHub_DeliversToEverySocketOfUser(t *testing.T) {
	id := middleware.Identity{UserID: uuid.New(), DomainID: uuid.New(), Domain: "north", Username: "ivanov", SessionID: "s1"}
	auth := &stubAuth{id: id}
	hub := NewHub(nil, auth, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	defer hub.Close()

	query := "domain=north&username=ivanov&session_code=code"
	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, query), nil)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, "north", auth.got.Domain)
	assert.Equal(t, "code", auth.got.SessionCode)
	require.Eventually(t, func() bool { return hub.connectionCount(id.UserID) == 2 }, time.Second, 10*time.Millisecond)

	payload, err := json.Marshal(models.WSMessage{Type: "check_overdue", Payload: map[string]string{"status": "missed"}})
	require.NoError(t, err)
	hub.broadcast(id.UserID, payload)

	for _, c := range []*websocket.Conn{first, second} {
		c.SetReadDeadline(time.Now().Add(time.Second))
		var msg models.WSMessage
		require.NoError(t, c.ReadJSON(&msg))
		assert.Equal(t, "check_overdue", msg.Type)
	}

	first.Close()
	require.Eventually(t, func() bool { return hub.connectionCount(id.UserID) == 1 }, time.Second, 10*time.Millisecond)
}
