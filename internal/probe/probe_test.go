package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/project-onboarding/pkg/logger"
)

func TestStatus_CollapsesConcurrentChecks(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	release := make(chan struct{})
	checker := CheckerFunc(func(ctx context.Context) ConnectionResult {
		calls.Add(1)
		<-release
		return ConnectionResult{OK: true}
	})
	p := New(checker, Config{Timeout: 5 * time.Second}, logger.NewNop())

	var wg sync.WaitGroup
	results := make([]Status, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Status(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, s := range results {
		assert.True(t, s.Available)
	}
}

func TestStatus_TimeoutMeansUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t)

	checker := CheckerFunc(func(ctx context.Context) ConnectionResult {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return ConnectionResult{OK: true}
	})
	p := New(checker, Config{Timeout: 20 * time.Millisecond}, logger.NewNop())

	start := time.Now()
	s := p.Status(context.Background())

	assert.False(t, s.Available)
	assert.False(t, s.CredentialsExpired)
	assert.Equal(t, "connection test timed out", s.Detail)
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, s.Notice())
}

func TestStatus_ExpiredCredentials(t *testing.T) {
	defer goleak.VerifyNone(t)

	checker := CheckerFunc(func(ctx context.Context) ConnectionResult {
		return ConnectionResult{ErrorDetail: "ExpiredTokenException: the security token included in the request is expired"}
	})
	p := New(checker, Config{}, logger.NewNop())

	s := p.Status(context.Background())

	assert.False(t, s.Available)
	assert.True(t, s.CredentialsExpired)
	assert.Contains(t, s.Notice(), "credentials")
}

func TestStatus_StaleValueReturnedWithoutWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	var healthy atomic.Bool
	healthy.Store(true)
	release := make(chan struct{})
	checker := CheckerFunc(func(ctx context.Context) ConnectionResult {
		if healthy.Load() {
			return ConnectionResult{OK: true}
		}
		<-release
		return ConnectionResult{ErrorDetail: "503 service unavailable"}
	})

	p := New(checker, Config{CacheTTL: time.Minute, Timeout: 5 * time.Second}, logger.NewNop())
	clock := time.Now()
	p.now = func() time.Time { return clock }

	require.True(t, p.Status(context.Background()).Available)

	healthy.Store(false)
	clock = clock.Add(2 * time.Minute)

	start := time.Now()
	s := p.Status(context.Background())
	assert.True(t, s.Available, "stale value is served while refreshing")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	refreshed := p.Refresh(context.Background())
	assert.False(t, refreshed.Available)

	cached, ok := p.Cached()
	require.True(t, ok)
	assert.False(t, cached.Available)
}

func TestStatus_FreshValueSkipsCheck(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	checker := CheckerFunc(func(ctx context.Context) ConnectionResult {
		calls.Add(1)
		return ConnectionResult{OK: true}
	})
	p := New(checker, Config{}, logger.NewNop())

	for i := 0; i < 5; i++ {
		p.Status(context.Background())
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestStatus_CheckerPanicMeansUnavailable(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := New(CheckerFunc(func(ctx context.Context) ConnectionResult {
		panic("boom")
	}), Config{}, logger.NewNop())

	s := p.Status(context.Background())

	assert.False(t, s.Available)
	assert.Contains(t, s.Detail, "panicked")
}

func TestIsExpiredCredentials(t *testing.T) {
	assert.True(t, IsExpiredCredentials("status 401: unauthorized"))
	assert.True(t, IsExpiredCredentials("ExpiredToken"))
	assert.False(t, IsExpiredCredentials("connection refused"))
	assert.False(t, IsExpiredCredentials(""))
}
