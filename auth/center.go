package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rcc-sub005/llmrouter/core"
)

// Refresher performs the provider-specific token refresh call. Concrete
// providers (or the hosting program) supply one per provider; the Center
// only owns persistence, serialization, and the maintenance-mode state
// machine around it.
type Refresher func(ctx context.Context, current TokenBundle) (TokenBundle, error)

// CredentialOverride lets a single request supply its own credential,
// bypassing the Center's stored bundle — grounded on the teacher's
// llm/credentials.go context-override pattern. It is carried only via
// context.Context, never unmarshalled from request JSON.
type CredentialOverride struct {
	APIKey string
	Bearer string
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" && c.Bearer == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{masked}"
}

func (c CredentialOverride) MarshalJSON() ([]byte, error) {
	type masked struct {
		APIKey string `json:"api_key,omitempty"`
		Bearer string `json:"bearer,omitempty"`
	}
	out := masked{}
	if c.APIKey != "" {
		out.APIKey = "***"
	}
	if c.Bearer != "" {
		out.Bearer = "***"
	}
	return json.Marshal(out)
}

type credentialOverrideKey struct{}

// WithCredentialOverride attaches c to ctx. A zero-value c is a no-op.
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" && c.Bearer == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialOverrideKey{}, c)
}

// CredentialOverrideFromContext reads an override set by WithCredentialOverride.
func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	v := ctx.Value(credentialOverrideKey{})
	if v == nil {
		return CredentialOverride{}, false
	}
	c, ok := v.(CredentialOverride)
	return c, ok
}

type providerState struct {
	mu          sync.RWMutex
	bundle      TokenBundle
	maintenance bool
}

// Center is the Auth Center: per-provider token storage, proactive
// refresh serialized via singleflight, and maintenance-mode tracking.
type Center struct {
	stateDir         string
	refreshThreshold time.Duration
	logger           *zap.Logger

	refreshers map[string]Refresher

	mu     sync.Mutex
	states map[string]*providerState
	group  singleflight.Group
}

// NewCenter builds a Center rooted at stateDir.
func NewCenter(stateDir string, refreshThreshold time.Duration, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refreshThreshold <= 0 {
		refreshThreshold = 5 * time.Minute
	}
	return &Center{
		stateDir:         stateDir,
		refreshThreshold: refreshThreshold,
		logger:           logger,
		refreshers:       make(map[string]Refresher),
		states:           make(map[string]*providerState),
	}
}

// RegisterRefresher installs the refresh function for providerID. Schemes
// with no refresh flow (api-key, bearer, none) never need one.
func (c *Center) RegisterRefresher(providerID string, fn Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshers[providerID] = fn
}

func (c *Center) state(providerID string) *providerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[providerID]
	if !ok {
		s = &providerState{}
		if bundle, found, err := LoadTokenBundle(c.stateDir, providerID); err == nil && found {
			s.bundle = bundle
		}
		c.states[providerID] = s
	}
	return s
}

// Token returns a valid access token for providerID, refreshing
// proactively if it is within refreshThreshold of expiry. At most one
// refresh is in flight per provider at any time (spec.md §8 "Auth
// serialisation"); concurrent callers await the same singleflight call.
func (c *Center) Token(ctx context.Context, providerID string) (string, error) {
	s := c.state(providerID)

	s.mu.RLock()
	maintenance := s.maintenance
	bundle := s.bundle
	s.mu.RUnlock()

	if maintenance {
		return "", core.NewError(core.KindAuthFailed, "provider "+providerID+" is in maintenance mode").WithRetryable(false)
	}
	if bundle.ValidFor(c.refreshThreshold) {
		return bundle.AccessToken, nil
	}

	refreshed, err, _ := c.group.Do(providerID, func() (any, error) {
		return c.doRefresh(ctx, providerID)
	})
	if err != nil {
		return "", err
	}
	return refreshed.(TokenBundle).AccessToken, nil
}

func (c *Center) doRefresh(ctx context.Context, providerID string) (TokenBundle, error) {
	s := c.state(providerID)

	// Re-check under the singleflight call: a waiter may arrive after a
	// sibling already refreshed (idempotence invariant of spec.md §8).
	s.mu.RLock()
	current := s.bundle
	s.mu.RUnlock()
	if current.ValidFor(c.refreshThreshold) {
		return current, nil
	}

	c.mu.Lock()
	refresher, ok := c.refreshers[providerID]
	c.mu.Unlock()
	if !ok {
		s.mu.Lock()
		s.maintenance = true
		s.mu.Unlock()
		return TokenBundle{}, core.NewError(core.KindAuthFailed, "no refresher registered for "+providerID).WithRetryable(false)
	}

	next, err := refresher(ctx, current)
	if err != nil {
		s.mu.Lock()
		s.maintenance = !current.ValidFor(0)
		s.mu.Unlock()
		return TokenBundle{}, core.NewError(core.KindAuthFailed, fmt.Sprintf("refresh failed for %s", providerID)).WithCause(err)
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now()
	}

	if err := SaveTokenBundle(c.stateDir, providerID, next); err != nil {
		c.logger.Warn("failed to persist refreshed token", zap.String("provider", providerID), zap.Error(err))
	}

	s.mu.Lock()
	s.bundle = next
	s.maintenance = false
	s.mu.Unlock()
	return next, nil
}

// EnterMaintenance forces maintenance mode for providerID, e.g. after a
// device-flow re-login is required out-of-band.
func (c *Center) EnterMaintenance(providerID string) {
	s := c.state(providerID)
	s.mu.Lock()
	s.maintenance = true
	s.mu.Unlock()
}

// InMaintenance reports whether providerID is currently shedding outbound
// calls for lack of a usable credential.
func (c *Center) InMaintenance(providerID string) bool {
	s := c.state(providerID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

// SeedBundle installs bundle directly (used after a device-flow grant
// completes) and persists it.
func (c *Center) SeedBundle(providerID string, bundle TokenBundle) error {
	s := c.state(providerID)
	s.mu.Lock()
	s.bundle = bundle
	s.maintenance = false
	s.mu.Unlock()
	return SaveTokenBundle(c.stateDir, providerID, bundle)
}
