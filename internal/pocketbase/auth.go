package pocketbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthStore holds the auth token and the authenticated record.
type AuthStore struct {
	mu        sync.RWMutex
	token     string
	record    json.RawMessage
	listeners map[int]func(token string, record json.RawMessage)
	nextID    int
	now       func() time.Time
}

func NewAuthStore() *AuthStore {
	return &AuthStore{
		listeners: make(map[int]func(string, json.RawMessage)),
		now:       time.Now,
	}
}

// Token returns the current token, "" when logged out.
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Record returns the raw auth record, nil when logged out.
func (s *AuthStore) Record() json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// DecodeRecord unmarshals the auth record into out. It reports false when
// there is no record.
func (s *AuthStore) DecodeRecord(out any) (bool, error) {
	rec := s.Record()
	if len(rec) == 0 || string(rec) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(rec, out); err != nil {
		return false, fmt.Errorf("decode auth record: %w", err)
	}
	return true, nil
}

// IsValid reports whether a token is present and its exp claim has not
// passed. Tokens without an exp claim are treated as valid.
func (s *AuthStore) IsValid() bool {
	s.mu.RLock()
	token, now := s.token, s.now
	s.mu.RUnlock()
	if token == "" {
		return false
	}
	// The signature is PocketBase's to check; only the claims matter here.
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(now())
}

// Save replaces token and record and notifies listeners.
func (s *AuthStore) Save(token string, record json.RawMessage) {
	s.mu.Lock()
	s.token = token
	s.record = append(json.RawMessage(nil), record...)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(token, record)
	}
}

// Clear drops token and record and notifies listeners.
func (s *AuthStore) Clear() {
	s.Save("", nil)
}

// OnChange registers fn and returns a function that removes it.
func (s *AuthStore) OnChange(fn func(token string, record json.RawMessage)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

type exportedAuth struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record,omitempty"`
	Model  json.RawMessage `json:"model,omitempty"`
}

// Export serialises the store for persistence.
func (s *AuthStore) Export() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, _ := json.Marshal(exportedAuth{Token: s.token, Record: s.record})
	return string(data)
}

// Import restores an exported blob without notifying listeners. The legacy
// "model" key is accepted for the record.
func (s *AuthStore) Import(raw string) error {
	var exp exportedAuth
	if err := json.Unmarshal([]byte(raw), &exp); err != nil {
		return fmt.Errorf("import auth: %w", err)
	}
	record := exp.Record
	if len(record) == 0 {
		record = exp.Model
	}
	s.mu.Lock()
	s.token = exp.Token
	s.record = record
	s.mu.Unlock()
	return nil
}

func (s *AuthStore) snapshotListeners() []func(string, json.RawMessage) {
	out := make([]func(string, json.RawMessage), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

// AuthResponse is returned by the auth endpoints.
type AuthResponse struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record"`
}

// AuthWithPassword authenticates against an auth collection and saves the
// result into the auth store.
func (c *Client) AuthWithPassword(ctx context.Context, collection, identity, password string) (AuthResponse, error) {
	var resp AuthResponse
	body := map[string]string{"identity": identity, "password": password}
	if err := c.send(ctx, http.MethodPost, collectionPath(collection)+"/auth-with-password", nil, body, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.auth.Save(resp.Token, resp.Record)
	return resp, nil
}

// AuthRefresh renews the current token.
func (c *Client) AuthRefresh(ctx context.Context, collection string) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.send(ctx, http.MethodPost, collectionPath(collection)+"/auth-refresh", nil, nil, &resp); err != nil {
		return AuthResponse{}, err
	}
	c.auth.Save(resp.Token, resp.Record)
	return resp, nil
}

func collectionPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection)
}
