package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID    uuid.UUID
	DomainID  uuid.UUID
	Domain    string
	Username  string
	Role      string
	SessionID string
}

// SessionClaims are carried inside a session code.
type SessionClaims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"user_id"`
	DomainID  string `json:"domain_id"`
	Domain    string `json:"domain"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// SessionChecker reports whether a session id is still registered.
type SessionChecker interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

var (
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidSession = errors.New("invalid session")
)

type SessionAuth struct {
	Secret   []byte
	TTL      time.Duration
	sessions SessionChecker
}

func NewSessionAuth(secret string, ttl time.Duration, sessions SessionChecker) *SessionAuth {
	return &SessionAuth{Secret: []byte(secret), TTL: ttl, sessions: sessions}
}

// IssueSessionCode signs a new session code for the identity. The caller
// is responsible for registering id.SessionID.
func (a *SessionAuth) IssueSessionCode(id Identity, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(a.TTL)
	claims := SessionClaims{
		SessionID: id.SessionID,
		UserID:    id.UserID.String(),
		DomainID:  id.DomainID.String(),
		Domain:    id.Domain,
		Username:  id.Username,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session code: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseSessionCode verifies the signature and expiry of a session code and
// returns the identity it carries. It does not consult the registry.
func (a *SessionAuth) ParseSessionCode(code string) (Identity, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(code, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrSessionExpired
		}
		return Identity{}, ErrInvalidSession
	}
	if !token.Valid || claims.SessionID == "" {
		return Identity{}, ErrInvalidSession
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, ErrInvalidSession
	}
	domainID, err := uuid.Parse(claims.DomainID)
	if err != nil {
		return Identity{}, ErrInvalidSession
	}

	return Identity{
		UserID:    userID,
		DomainID:  domainID,
		Domain:    claims.Domain,
		Username:  claims.Username,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// Credentials are the domain, username and session code presented by a
// request. Query parameters win; a bearer header is the fallback for the
// code.
type Credentials struct {
	Domain      string
	Username    string
	SessionCode string
}

func CredentialsFromRequest(r *http.Request) Credentials {
	q := r.URL.Query()
	creds := Credentials{
		Domain:      q.Get("domain"),
		Username:    q.Get("username"),
		SessionCode: q.Get("session_code"),
	}
	if creds.SessionCode == "" {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			creds.SessionCode = strings.TrimSpace(parts[1])
		}
	}
	return creds
}

// Authenticate resolves credentials to a live identity.
func (a *SessionAuth) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	if creds.SessionCode == "" {
		return Identity{}, ErrInvalidSession
	}

	id, err := a.ParseSessionCode(creds.SessionCode)
	if err != nil {
		return Identity{}, err
	}

	if creds.Domain != "" && creds.Domain != id.Domain {
		return Identity{}, ErrInvalidSession
	}
	if creds.Username != "" && creds.Username != id.Username {
		return Identity{}, ErrInvalidSession
	}

	if a.sessions != nil {
		live, err := a.sessions.Exists(ctx, id.SessionID)
		if err != nil {
			return Identity{}, fmt.Errorf("session lookup: %w", err)
		}
		if !live {
			return Identity{}, ErrSessionExpired
		}
	}

	return id, nil
}

// Middleware validates the session credentials and attaches the identity
// to the request context.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := CredentialsFromRequest(r)
		if creds.SessionCode == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing session credentials", r)
			return
		}

		id, err := a.Authenticate(r.Context(), creds)
		switch {
		case err == nil:
		case errors.Is(err, ErrSessionExpired):
			writeError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "Session has expired", r)
			return
		case errors.Is(err, ErrInvalidSession):
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session", r)
			return
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to validate session", r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetIdentity(r.Context()).Role
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity extracts the caller identity from the request context.
func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityKey).(Identity)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
