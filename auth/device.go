package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcc-sub005/llmrouter/core"
)

// DeviceFlowEndpoints names the two endpoints an oauth-device-flow
// provider declares.
type DeviceFlowEndpoints struct {
	DeviceAuthURL string
	TokenURL      string
	ClientID      string
	Scope         string
}

// DeviceAuthorization is the response to the initial device-auth POST.
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"`
	Interval        int64  `json:"interval"`
}

// PKCEPair is a PKCE code verifier/challenge pair (RFC 7636, S256 method).
type PKCEPair struct {
	Verifier  string
	Challenge string
}

// NewPKCEPair generates a fresh verifier/challenge pair.
func NewPKCEPair() (PKCEPair, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return PKCEPair{}, fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return PKCEPair{Verifier: verifier, Challenge: challenge}, nil
}

// DeviceFlowClient drives the RFC 8628 device authorization grant with a
// PKCE code challenge attached, as spec.md §4.8 requires.
type DeviceFlowClient struct {
	httpClient *http.Client
	logger     *zap.Logger

	// OnUserCode is invoked once the device code is issued so the
	// hosting program can surface user_code/verification_uri to the
	// operator. The core never prints to stdout itself.
	OnUserCode func(DeviceAuthorization)
}

// NewDeviceFlowClient builds a client using httpClient, or a default
// client with a conservative timeout if nil.
func NewDeviceFlowClient(httpClient *http.Client, logger *zap.Logger) *DeviceFlowClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceFlowClient{httpClient: httpClient, logger: logger}
}

// Authorize runs the full device-code grant: request a device code, poll
// the token endpoint at the server-declared interval, and return a fresh
// TokenBundle once the user completes the verification step. ctx
// cancellation (or the server's expires_in elapsing) aborts the poll.
func (d *DeviceFlowClient) Authorize(ctx context.Context, ep DeviceFlowEndpoints) (TokenBundle, error) {
	pkce, err := NewPKCEPair()
	if err != nil {
		return TokenBundle{}, err
	}

	auth, err := d.requestDeviceCode(ctx, ep, pkce)
	if err != nil {
		return TokenBundle{}, err
	}
	if d.OnUserCode != nil {
		d.OnUserCode(auth)
	}

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return TokenBundle{}, core.NewError(core.KindCancelled, "device flow cancelled").WithCause(ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return TokenBundle{}, core.NewError(core.KindAuthFailed, "device code expired before user completed verification")
			}
			bundle, pending, err := d.pollToken(ctx, ep, auth.DeviceCode, pkce)
			if err != nil {
				return TokenBundle{}, err
			}
			if pending {
				continue
			}
			return bundle, nil
		}
	}
}

func (d *DeviceFlowClient) requestDeviceCode(ctx context.Context, ep DeviceFlowEndpoints, pkce PKCEPair) (DeviceAuthorization, error) {
	form := url.Values{
		"client_id":             {ep.ClientID},
		"scope":                 {ep.Scope},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {"S256"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.DeviceAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return DeviceAuthorization{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return DeviceAuthorization{}, core.NewError(core.KindNetwork, "device code request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return DeviceAuthorization{}, core.NewError(core.KindAuthFailed, "device code request rejected: "+string(body)).WithHTTPStatus(resp.StatusCode)
	}

	var auth DeviceAuthorization
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return DeviceAuthorization{}, core.NewError(core.KindMalformedResponse, "device code response unparsable").WithCause(err)
	}
	return auth, nil
}

// pollToken performs one poll. pending=true means authorization_pending
// (keep polling); an error other than pending is terminal.
func (d *DeviceFlowClient) pollToken(ctx context.Context, ep DeviceFlowEndpoints, deviceCode string, pkce PKCEPair) (TokenBundle, bool, error) {
	form := url.Values{
		"grant_type":    {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code":   {deviceCode},
		"client_id":     {ep.ClientID},
		"code_verifier": {pkce.Verifier},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenBundle{}, false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return TokenBundle{}, false, core.NewError(core.KindNetwork, "token poll failed").WithCause(err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return TokenBundle{}, false, core.NewError(core.KindMalformedResponse, "token poll response unparsable").WithCause(err)
	}

	if body.Error == "authorization_pending" || body.Error == "slow_down" {
		return TokenBundle{}, true, nil
	}
	if body.Error != "" {
		return TokenBundle{}, false, core.NewError(core.KindAuthFailed, "device flow rejected: "+body.Error)
	}
	if resp.StatusCode >= 400 {
		return TokenBundle{}, false, core.NewError(core.KindAuthFailed, "token poll rejected").WithHTTPStatus(resp.StatusCode)
	}

	now := time.Now()
	return TokenBundle{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
		Scope:        body.Scope,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(body.ExpiresIn) * time.Second),
	}, false, nil
}
