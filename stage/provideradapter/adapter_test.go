package provideradapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcc-sub005/llmrouter/auth"
	"github.com/rcc-sub005/llmrouter/config"
	"github.com/rcc-sub005/llmrouter/core"
	"github.com/rcc-sub005/llmrouter/stage/protocolswitch"
)

func TestExecuteRequest_SuccessReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	provider := config.Provider{ID: "p1", BaseURL: srv.URL, AuthScheme: config.AuthNone}
	c := NewClient(provider, nil, nil, nil)
	body, err := c.ExecuteRequest(context.Background(), protocolswitch.WireRequest{Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestExecuteRequest_AppliesAPIKeyHeaderFromAuthCenter(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("x-api-key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	center := auth.NewCenter(t.TempDir(), time.Hour, nil)
	require.NoError(t, center.SeedBundle("p1", auth.TokenBundle{AccessToken: "secret-key", ExpiresAt: time.Now().Add(time.Hour)}))

	provider := config.Provider{ID: "p1", BaseURL: srv.URL, AuthScheme: config.AuthAPIKey}
	c := NewClient(provider, center, nil, nil)
	_, err := c.ExecuteRequest(context.Background(), protocolswitch.WireRequest{Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotHeader)
}

func TestExecuteRequest_CredentialOverrideBypassesAuthCenter(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	provider := config.Provider{ID: "p1", BaseURL: srv.URL, AuthScheme: config.AuthBearer}
	c := NewClient(provider, nil, nil, nil)
	ctx := auth.WithCredentialOverride(context.Background(), auth.CredentialOverride{Bearer: "override-token"})
	_, err := c.ExecuteRequest(ctx, protocolswitch.WireRequest{Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "Bearer override-token", gotAuth)
}

func TestExecuteRequest_MapsHTTPErrorsByStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   core.ErrorKind
	}{
		{http.StatusUnauthorized, "", core.KindAuthFailed},
		{http.StatusTooManyRequests, "", core.KindRateLimited},
		{http.StatusServiceUnavailable, "", core.KindProviderUnavailable},
		{http.StatusBadRequest, "", core.KindInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			provider := config.Provider{ID: "p1", BaseURL: srv.URL, AuthScheme: config.AuthNone}
			c := NewClient(provider, nil, nil, nil)
			_, err := c.ExecuteRequest(context.Background(), protocolswitch.WireRequest{Body: []byte(`{}`)})
			require.Error(t, err)
			assert.Equal(t, tc.want, core.GetKind(err))
		})
	}
}

func TestExecuteStreamingRequest_FailsFastWhenUnsupported(t *testing.T) {
	provider := config.Provider{ID: "p1", BaseURL: "http://example.invalid", SupportsStreaming: false}
	c := NewClient(provider, nil, nil, nil)
	_, err := c.ExecuteStreamingRequest(context.Background(), protocolswitch.WireRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, core.KindStreamingUnsupported, core.GetKind(err))
}

func TestExecuteStreamingRequest_EmitsDecodedChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"id\":\"x\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	provider := config.Provider{ID: "p1", BaseURL: srv.URL, SupportsStreaming: true}
	c := NewClient(provider, nil, nil, nil)
	decoder := (protocolswitch.Converter)(mustConverter(t)).NewStreamDecoder()
	seq, err := c.ExecuteStreamingRequest(context.Background(), protocolswitch.WireRequest{Body: []byte(`{}`)}, decoder)
	require.NoError(t, err)
	chunks := seq.Drain()
	require.Len(t, chunks, 1)
	assert.Equal(t, "hi", chunks[0].Delta.Content)
}

func mustConverter(t *testing.T) protocolswitch.Converter {
	t.Helper()
	c, err := protocolswitch.For(config.ProtocolOpenAI)
	require.NoError(t, err)
	return c
}

func TestHealthCheck_ReportsHealthyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider := config.Provider{ID: "p1", BaseURL: srv.URL, HealthEndpoint: srv.URL + "/health"}
	c := NewClient(provider, nil, nil, nil)
	healthy, elapsed, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
}

func TestHealthCheck_NoEndpointConfiguredErrors(t *testing.T) {
	provider := config.Provider{ID: "p1"}
	c := NewClient(provider, nil, nil, nil)
	_, _, err := c.HealthCheck(context.Background())
	require.Error(t, err)
}
