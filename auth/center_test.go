package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_Token_RefreshesWhenNearExpiry(t *testing.T) {
	c := NewCenter(t.TempDir(), 5*time.Minute, nil)
	var calls int32
	c.RegisterRefresher("providerA", func(ctx context.Context, current TokenBundle) (TokenBundle, error) {
		atomic.AddInt32(&calls, 1)
		return TokenBundle{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	tok, err := c.Token(context.Background(), "providerA")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	tok2, err := c.Token(context.Background(), "providerA")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "valid token must not trigger another refresh")
}

func TestCenter_Token_SerializesConcurrentRefreshes(t *testing.T) {
	c := NewCenter(t.TempDir(), 5*time.Minute, nil)
	var calls int32
	release := make(chan struct{})
	c.RegisterRefresher("providerA", func(ctx context.Context, current TokenBundle) (TokenBundle, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return TokenBundle{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Token(context.Background(), "providerA")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "at most one refresh in flight per provider")
}

func TestCenter_EnterMaintenance_FailsOutboundToken(t *testing.T) {
	c := NewCenter(t.TempDir(), time.Minute, nil)
	c.EnterMaintenance("providerA")
	_, err := c.Token(context.Background(), "providerA")
	require.Error(t, err)
	assert.True(t, c.InMaintenance("providerA"))
}

func TestCredentialOverride_MaskedMarshal(t *testing.T) {
	c := CredentialOverride{APIKey: "secret"}
	data, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "***")
	assert.NotContains(t, string(data), "secret")
}
