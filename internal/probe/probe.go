// Package probe keeps a cached, non-blocking view of whether the AI
// dependency is reachable.
package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/capitalize-ai/project-onboarding/pkg/logger"
	"github.com/capitalize-ai/project-onboarding/pkg/metrics"
)

const (
	// DefaultCacheTTL is how long a check result is trusted.
	DefaultCacheTTL = 2 * time.Minute
	// DefaultTimeout bounds a single check.
	DefaultTimeout = 1500 * time.Millisecond
)

// ConnectionResult is what a Checker reports.
type ConnectionResult struct {
	OK          bool
	ErrorDetail string
}

// Checker tests the connection to the dependency.
type Checker interface {
	TestConnection(ctx context.Context) ConnectionResult
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) ConnectionResult

// TestConnection calls f.
func (f CheckerFunc) TestConnection(ctx context.Context) ConnectionResult {
	return f(ctx)
}

// Status is the cached availability.
type Status struct {
	Available          bool
	CredentialsExpired bool
	Detail             string
	CheckedAt          time.Time
}

// Notice returns the user-facing explanation for an unavailable status.
func (s Status) Notice() string {
	switch {
	case s.Available:
		return ""
	case s.CredentialsExpired:
		return "AI-assisted analysis is paused while our provider credentials are renewed. Your project works normally and AI features will switch on automatically."
	default:
		return "AI-assisted analysis is temporarily unavailable. Your project works normally and AI features will switch on automatically."
	}
}

// Config holds probe timing.
type Config struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

// Probe caches the dependency status and collapses concurrent refreshes.
type Probe struct {
	checker Checker
	cfg     Config
	log     *logger.Logger
	now     func() time.Time

	mu     sync.RWMutex
	status Status
	valid  bool

	group singleflight.Group
}

// New creates a probe.
func New(checker Checker, cfg Config, log *logger.Logger) *Probe {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Probe{checker: checker, cfg: cfg, log: log, now: time.Now}
}

// Cached returns the last known status without checking. ok is false before the first check.
func (p *Probe) Cached() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status, p.valid
}

// Status returns the dependency status. A fresh cached value is returned
// directly. A stale value is returned immediately while one background
// refresh runs. Only the very first call waits, and never longer than the
// check timeout.
func (p *Probe) Status(ctx context.Context) Status {
	p.mu.RLock()
	status, valid := p.status, p.valid
	fresh := valid && p.now().Sub(status.CheckedAt) < p.cfg.CacheTTL
	p.mu.RUnlock()

	if fresh {
		return status
	}

	ch := p.group.DoChan("check", func() (any, error) {
		return p.check(), nil
	})
	if valid {
		return status
	}

	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		return Status{Detail: ctx.Err().Error(), CheckedAt: p.now()}
	}
}

// Refresh forces a check, sharing any check already in flight.
func (p *Probe) Refresh(ctx context.Context) Status {
	ch := p.group.DoChan("check", func() (any, error) {
		return p.check(), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		status, _ := p.Cached()
		return status
	}
}

// check runs one bounded connection test and stores the result. The checker
// runs in its own goroutine so a checker that ignores its context cannot hold
// the probe past the timeout.
func (p *Probe) check() Status {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	done := make(chan ConnectionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ConnectionResult{ErrorDetail: fmt.Sprintf("checker panicked: %v", r)}
			}
		}()
		done <- p.checker.TestConnection(ctx)
	}()

	var res ConnectionResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = ConnectionResult{ErrorDetail: "connection test timed out"}
	}

	status := Status{
		Available:          res.OK,
		CredentialsExpired: !res.OK && IsExpiredCredentials(res.ErrorDetail),
		Detail:             res.ErrorDetail,
		CheckedAt:          p.now(),
	}

	p.mu.Lock()
	p.status = status
	p.valid = true
	p.mu.Unlock()

	result := "available"
	switch {
	case status.CredentialsExpired:
		result = "expired_credentials"
	case !status.Available:
		result = "unavailable"
	}
	metrics.ProbeChecks.WithLabelValues(result).Inc()

	if !status.Available {
		p.log.Warn("ai dependency unavailable",
			zap.String("detail", status.Detail),
			zap.Bool("credentials_expired", status.CredentialsExpired),
		)
	}
	return status
}

// IsExpiredCredentials reports whether an error detail describes expired credentials.
func IsExpiredCredentials(detail string) bool {
	d := strings.ToLower(detail)
	for _, marker := range []string{"expired", "expiredtoken", "401", "invalid x-api-key", "authentication_error"} {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}
