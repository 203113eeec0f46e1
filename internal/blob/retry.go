package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/textproto"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RetryConfig controls how a retrying store backs off between attempts.
type RetryConfig struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// JitterFraction spreads each delay by ±fraction.
	JitterFraction float64
}

// DefaultRetryConfig suits remote object stores.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	return c
}

func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(attempt))
	delay = math.Min(delay, float64(c.MaxBackoff))
	if c.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * c.JitterFraction
	}
	return time.Duration(math.Max(delay, 0))
}

// IsTransient reports whether err looks like a network hiccup worth
// retrying. Missing keys and cancelled contexts never are.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	// ftp 4xx replies are transient by definition
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code >= 400 && tpErr.Code < 500
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"tls handshake timeout",
		"server closed idle connection",
		"slowdown",
		"serviceunavailable",
		"internalerror",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryingStore retries transient failures of the wrapped store.
type RetryingStore struct {
	next Store
	cfg  RetryConfig
}

// WithRetry wraps s so every operation is retried on transient errors.
func WithRetry(s Store, cfg RetryConfig) *RetryingStore {
	return &RetryingStore{next: s, cfg: cfg.withDefaults()}
}

func retry[T any](ctx context.Context, cfg RetryConfig, op, key string, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == cfg.MaxAttempts-1 {
			break
		}
		zap.L().Warn("blob: retrying operation",
			zap.String("op", op),
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

// Put buffers r so the body can be replayed on retry.
func (s *RetryingStore) Put(ctx context.Context, key string, r io.Reader) (Info, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return Info{}, eris.Wrapf(err, "blob: read body for %s", key)
	}
	return retry(ctx, s.cfg, "put", key, func() (Info, error) {
		return s.next.Put(ctx, key, bytes.NewReader(body))
	})
}

func (s *RetryingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return retry(ctx, s.cfg, "get", key, func() (io.ReadCloser, error) {
		return s.next.Get(ctx, key)
	})
}

func (s *RetryingStore) Head(ctx context.Context, key string) (Info, error) {
	return retry(ctx, s.cfg, "head", key, func() (Info, error) {
		return s.next.Head(ctx, key)
	})
}

func (s *RetryingStore) Delete(ctx context.Context, key string) error {
	_, err := retry(ctx, s.cfg, "delete", key, func() (struct{}, error) {
		return struct{}{}, s.next.Delete(ctx, key)
	})
	return err
}

func (s *RetryingStore) List(ctx context.Context, prefix string) ([]Info, error) {
	return retry(ctx, s.cfg, "list", prefix, func() ([]Info, error) {
		return s.next.List(ctx, prefix)
	})
}

// Driver reports the wrapped store's driver.
func (s *RetryingStore) Driver() Driver { return s.next.Driver() }
