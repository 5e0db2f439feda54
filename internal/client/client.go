// Package client talks to the inspection backend on behalf of inspectctl.
// Every authenticated call carries the stored domain, username and session
// code as query parameters; a 401 wipes the stored session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"inspecta-backend/internal/models"
)

var (
	ErrSessionExpired = errors.New("session expired, log in again")
	ErrNotLoggedIn    = errors.New("not logged in")
)

// APIError is a non-2xx, non-401 response.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	for field, problem := range e.Fields {
		msg += fmt.Sprintf("; %s: %s", field, problem)
	}
	return msg
}

type Client struct {
	server string
	http   *http.Client
	store  *SessionStore
}

// New returns a client for server. An empty server falls back to the one
// recorded in the stored session.
func New(server string, store *SessionStore) *Client {
	return &Client{
		server: strings.TrimRight(server, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		store:  store,
	}
}

func (c *Client) Login(ctx context.Context, domain, username, password string) (*models.LoginResponse, error) {
	if c.server == "" {
		return nil, errors.New("server URL is required")
	}
	body := map[string]string{"domain": domain, "username": username, "password": password}

	var resp models.LoginResponse
	if err := c.do(ctx, c.server, http.MethodPost, "/auth/login", nil, body, &resp, nil); err != nil {
		return nil, err
	}

	sess := &Session{
		Server:      c.server,
		Domain:      resp.Domain,
		Username:    username,
		SessionCode: resp.SessionCode,
		ExpiresAt:   resp.ExpiresAt,
	}
	if resp.User != nil {
		sess.Username = resp.User.Username
		sess.User = SessionUser{
			ID:       resp.User.ID,
			Username: resp.User.Username,
			FullName: resp.User.FullName,
			Role:     resp.User.Role,
		}
	}
	if err := c.store.Save(sess); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the session on the server and always forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.authed(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil {
		return clearErr
	}
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotLoggedIn) {
		return nil
	}
	return err
}

type MeResponse struct {
	User   *models.User `json:"user"`
	Domain string       `json:"domain"`
}

func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := c.authed(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type TaskQuery struct {
	Status     string
	OperatorID *uuid.UUID
	ObjectID   *uuid.UUID
	Limit      int
	Offset     int
}

type TaskPage struct {
	Tasks  []*models.Task `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (c *Client) ListTasks(ctx context.Context, q TaskQuery) (*TaskPage, error) {
	v := url.Values{}
	setString(v, "status", q.Status)
	setUUID(v, "operator_id", q.OperatorID)
	setUUID(v, "object_id", q.ObjectID)
	setInt(v, "limit", q.Limit)
	setInt(v, "offset", q.Offset)

	var out TaskPage
	if err := c.authed(ctx, http.MethodGet, "/tasks", v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CheckQuery struct {
	Status string
	From   string
	To     string
}

func (c *Client) ListChecks(ctx context.Context, q CheckQuery) ([]*models.Check, error) {
	v := url.Values{}
	setString(v, "status", q.Status)
	setString(v, "from", q.From)
	setString(v, "to", q.To)

	var out struct {
		Checks []*models.Check `json:"checks"`
	}
	if err := c.authed(ctx, http.MethodGet, "/checks", v, nil, &out); err != nil {
		return nil, err
	}
	return out.Checks, nil
}

func (c *Client) Calendar(ctx context.Context, from, to, tz string) ([]models.CalendarDay, error) {
	v := url.Values{}
	setString(v, "from", from)
	setString(v, "to", to)
	setString(v, "tz", tz)

	var out struct {
		Days []models.CalendarDay `json:"days"`
	}
	if err := c.authed(ctx, http.MethodGet, "/calendar", v, nil, &out); err != nil {
		return nil, err
	}
	return out.Days, nil
}

func (c *Client) SyncNonCompliances(ctx context.Context, checkID uuid.UUID, req models.SyncRequest) (*models.SyncPlan, error) {
	var plan models.SyncPlan
	path := "/checks/" + checkID.String() + "/non-compliances/sync"
	if err := c.authed(ctx, http.MethodPost, path, nil, req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *Client) authed(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	sess, err := c.store.Load()
	if err != nil {
		return err
	}
	if sess.Empty() {
		return ErrNotLoggedIn
	}

	server := c.server
	if server == "" {
		server = sess.Server
	}
	if server == "" {
		return errors.New("server URL is unknown; pass --server")
	}
	return c.do(ctx, server, method, path, query, body, out, sess)
}

func (c *Client) do(ctx context.Context, server, method, path string, query url.Values, body, out interface{}, sess *Session) error {
	if query == nil {
		query = url.Values{}
	}
	if sess != nil {
		query.Set("domain", sess.Domain)
		query.Set("username", sess.Username)
		query.Set("session_code", sess.SessionCode)
	}

	u := server + "/api/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && sess != nil {
		if err := c.store.Clear(); err != nil {
			return err
		}
		return ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: resp.Status}

	var envelope models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Fields = envelope.Error.Fields
		apiErr.RequestID = envelope.Error.RequestID
	}
	return apiErr
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setUUID(v url.Values, key string, id *uuid.UUID) {
	if id != nil {
		v.Set(key, id.String())
	}
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, fmt.Sprint(n))
	}
}
