package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first failures calls of every operation with err.
type flakyStore struct {
	Store
	failures int
	err      error
	calls    map[string]int
}

func newFlaky(failures int, err error) *flakyStore {
	return &flakyStore{Store: NewMemory(), failures: failures, err: err, calls: make(map[string]int)}
}

func (f *flakyStore) fail(op string) error {
	f.calls[op]++
	if f.calls[op] <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader) (Info, error) {
	if err := f.fail("put"); err != nil {
		// drain like a real client would before failing
		_, _ = io.Copy(io.Discard, r)
		return Info{}, err
	}
	return f.Store.Put(ctx, key, r)
}

func (f *flakyStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := f.fail("get"); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetryingStore_RecoversFromTransientErrors(t *testing.T) {
	ctx := context.Background()
	flaky := newFlaky(2, fmt.Errorf("put object: %w", syscall.ECONNRESET))
	s := WithRetry(flaky, fastRetry(3))

	_, err := s.Put(ctx, "coda/age.json", bytes.NewReader([]byte(`[]`)))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls["put"])

	rc, err := s.Get(ctx, "coda/age.json")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	// the replayed body arrives intact
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, 3, flaky.calls["get"])
	assert.Equal(t, DriverMemory, s.Driver())
}

func TestRetryingStore_GivesUp(t *testing.T) {
	flaky := newFlaky(5, errors.New("read: i/o timeout"))
	s := WithRetry(flaky, fastRetry(2))

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.Equal(t, 2, flaky.calls["get"])
}

func TestRetryingStore_NotFoundIsFinal(t *testing.T) {
	mem := NewMemory()
	flaky := newFlaky(0, nil)
	flaky.Store = mem
	s := WithRetry(flaky, fastRetry(3))

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 1, flaky.calls["get"])
}

func TestRetryingStore_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	flaky := newFlaky(5, syscall.ECONNREFUSED)
	s := WithRetry(flaky, fastRetry(5))

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, 1, flaky.calls["get"])
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), false},
		{"cancelled", context.Canceled, false},
		{"conn reset", fmt.Errorf("put: %w", syscall.ECONNRESET), true},
		{"s3 throttle", errors.New("api error SlowDown: please reduce your request rate"), true},
		{"s3 503", errors.New("api error ServiceUnavailable"), true},
		{"access denied", errors.New("api error AccessDenied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 25 * time.Millisecond}.withDefaults()
	cfg.JitterFraction = 0
	assert.Equal(t, 10*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 20*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 25*time.Millisecond, cfg.backoff(2))
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestOpen_S3IsRetried(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	s, err := Open(context.Background(), Config{
		Driver:      "s3",
		MaxAttempts: 4,
		S3:          S3Config{Bucket: "survey-bucket", Region: "us-east-1"},
	})
	require.NoError(t, err)
	rs, ok := s.(*RetryingStore)
	require.True(t, ok)
	assert.Equal(t, 4, rs.cfg.MaxAttempts)
	assert.Equal(t, DriverS3, rs.Driver())
}
