// Package auth manages the Hotmart bearer token lifecycle: a file cache
// of the last captured token and a browser login to obtain a fresh one
// when the cache misses or expires.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// expiryBuffer keeps us from handing out a token that dies mid-request.
const expiryBuffer = 5 * time.Minute

// fallbackTTL is assumed when a token carries no readable exp claim.
const fallbackTTL = time.Hour

// ErrLoginFailed wraps browser login failures so callers can tell them
// apart from cache I/O problems.
var ErrLoginFailed = errors.New("auth: login failed")

// Credential is the on-disk cache entry.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CachedAt  time.Time `json:"cached_at"`
}

// Valid reports whether the token is still usable with the safety buffer
// applied.
func (c Credential) Valid(now time.Time) bool {
	return c.Token != "" && now.Add(expiryBuffer).Before(c.ExpiresAt)
}

// LoginFunc produces a fresh bearer token. The production implementation
// drives a browser; tests inject stubs.
type LoginFunc func(ctx context.Context) (string, error)

// Manager hands out valid tokens, reading the cache first and logging in
// only when it must. Concurrent callers share one login: the mutex
// serializes the miss path so a burst of requests triggers a single
// browser session.
type Manager struct {
	Path  string
	Login LoginFunc

	mu  sync.Mutex
	cur Credential
	now func() time.Time
}

func NewManager(path string, login LoginFunc) *Manager {
	return &Manager{Path: path, Login: login, now: time.Now}
}

// Token returns a valid bearer token, from memory, disk, or a fresh
// login, in that order.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.cur.Valid(now) {
		return m.cur.Token, nil
	}

	if cred, err := m.load(); err == nil && cred.Valid(now) {
		m.cur = cred
		return cred.Token, nil
	}

	token, err := m.Login(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: no token captured", ErrLoginFailed)
	}

	m.cur = Credential{
		Token:     token,
		ExpiresAt: TokenExpiry(token, now),
		CachedAt:  now,
	}
	if err := m.store(m.cur); err != nil {
		// A dead cache file costs one extra login next run, nothing more.
		fmt.Fprintf(os.Stderr, "warning: could not write token cache: %v\n", err)
	}
	return token, nil
}

// Refresh drops the current token and forces a new login. Used when the
// API starts answering 401 with a token the cache still considers valid.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.cur = Credential{}
	m.mu.Unlock()
	if m.Path != "" {
		os.Remove(m.Path)
	}
	return m.Token(ctx)
}

// Store caches a token captured out of band, e.g. sniffed by the stream
// resolver while it had a browser open anyway.
func (m *Manager) Store(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.cur = Credential{Token: token, ExpiresAt: TokenExpiry(token, now), CachedAt: now}
	if err := m.store(m.cur); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write token cache: %v\n", err)
	}
}

func (m *Manager) load() (Credential, error) {
	if m.Path == "" {
		return Credential{}, errors.New("no cache path")
	}
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return Credential{}, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func (m *Manager) store(cred Credential) error {
	if m.Path == "" {
		return nil
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.Path, data, 0o600)
}

// TokenExpiry reads the exp claim out of a JWT without verifying it; we
// only need a refresh deadline, not trust. Unreadable tokens get a
// conservative one-hour lifetime.
func TokenExpiry(token string, now time.Time) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return now.Add(fallbackTTL)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return now.Add(fallbackTTL)
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp <= 0 {
		return now.Add(fallbackTTL)
	}
	return time.Unix(claims.Exp, 0)
}
