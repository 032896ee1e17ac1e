// Package auth implements the Auth Center: token bundle persistence,
// proactive refresh, and the OAuth device-flow + PKCE grant.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TokenBundle is the per-provider persisted credential material of
// spec.md §3. CreatedAt and ExpiresAt are absolute times; the on-disk
// JSON form instead carries ExpiresIn seconds, matching spec.md §4.8's
// documented file format.
type TokenBundle struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"-"`
	Scope        string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	ExpiresAt    time.Time `json:"-"`
}

// tokenFile is the on-disk JSON shape, field-for-field as spec.md §4.8
// names it.
type tokenFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
}

// ValidFor reports whether the bundle remains valid for at least
// threshold beyond now (the refresh-threshold invariant of spec.md §3).
func (b TokenBundle) ValidFor(threshold time.Duration) bool {
	if b.AccessToken == "" {
		return false
	}
	return b.ExpiresAt.Sub(time.Now()) >= threshold
}

func tokenPath(stateDir, providerID string) string {
	return filepath.Join(stateDir, providerID+".token.json")
}

// LoadTokenBundle reads a provider's token file. A missing file is not an
// error; it reports ok=false so the caller knows to obtain a fresh grant.
func LoadTokenBundle(stateDir, providerID string) (TokenBundle, bool, error) {
	path := tokenPath(stateDir, providerID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TokenBundle{}, false, nil
		}
		return TokenBundle{}, false, fmt.Errorf("read token file: %w", err)
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return TokenBundle{}, false, fmt.Errorf("decode token file: %w", err)
	}
	created := time.Unix(tf.CreatedAt, 0)
	return TokenBundle{
		AccessToken:  tf.AccessToken,
		RefreshToken: tf.RefreshToken,
		TokenType:    tf.TokenType,
		Scope:        tf.Scope,
		CreatedAt:    created,
		ExpiresAt:    created.Add(time.Duration(tf.ExpiresIn) * time.Second),
	}, true, nil
}

// SaveTokenBundle persists b with 0600 permissions via write-temp-then-
// rename, the atomic-replacement scheme spec.md §4.8 requires.
func SaveTokenBundle(stateDir, providerID string, b TokenBundle) error {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	expiresIn := int64(time.Until(b.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	tf := tokenFile{
		AccessToken:  b.AccessToken,
		RefreshToken: b.RefreshToken,
		TokenType:    b.TokenType,
		ExpiresIn:    expiresIn,
		Scope:        b.Scope,
		CreatedAt:    b.CreatedAt.Unix(),
	}
	data, err := json.Marshal(tf)
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	final := tokenPath(stateDir, providerID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename token file: %w", err)
	}
	return nil
}
