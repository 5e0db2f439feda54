package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/services"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type authenticator interface {
	Authenticate(ctx context.Context, creds middleware.Credentials) (middleware.Identity, error)
}

// conn serialises writes; gorilla allows one concurrent writer per socket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*conn
	cancelFuncs map[uuid.UUID]context.CancelFunc
	redisClient *redis.Client
	auth        authenticator
	logger      *zap.Logger
}

func NewHub(redisClient *redis.Client, auth authenticator, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*conn),
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		logger:      logger,
	}
}

// HandleWebSocket authenticates the query-string credentials exactly as the
// HTTP middleware does, then upgrades.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	creds := middleware.CredentialsFromRequest(r)
	if creds.SessionCode == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := h.auth.Authenticate(r.Context(), creds)
	if err != nil {
		if errors.Is(err, middleware.ErrSessionExpired) {
			http.Error(w, "Session expired", http.StatusUnauthorized)
			return
		}
		if errors.Is(err, middleware.ErrInvalidSession) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("websocket authentication failed", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{ws: ws}
	h.register(id, c)

	go func() {
		defer h.unregister(id.UserID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) register(id middleware.Identity, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[id.UserID] = append(h.connections[id.UserID], c)

	if len(h.connections[id.UserID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[id.UserID] = cancel
		go h.subscribe(ctx, id.UserID, id.DomainID)
	}

	h.logger.Debug("websocket connected",
		zap.String("user_id", id.UserID.String()),
		zap.Int("connections", len(h.connections[id.UserID])),
	)
}

func (h *Hub) unregister(userID uuid.UUID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.ws.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.logger.Debug("websocket disconnected", zap.String("user_id", userID.String()))
}

// subscribe relays the user's personal channel and their domain's channel
// until the last socket of the user closes.
func (h *Hub) subscribe(ctx context.Context, userID, domainID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserChannel(userID), services.DomainChannel(domainID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Debug("websocket write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
}

// connectionCount reports how many sockets a user has open.
func (h *Hub) connectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every socket and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.connections {
		for _, c := range conns {
			c.ws.Close()
		}
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
		}
	}
	h.connections = make(map[uuid.UUID][]*conn)
	h.cancelFuncs = make(map[uuid.UUID]context.CancelFunc)
}
