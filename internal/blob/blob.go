// Package blob abstracts the object storage that record files and annotation
// files are read from and written to.
package blob

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
	DriverFTP        Driver = "ftp"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob: not found")

// Info describes a stored object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a flat key/value object store. Put replaces existing objects.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Config selects and configures a backend.
type Config struct {
	Driver string
	Root   string
	S3     S3Config
	FTP    FTPConfig
	// MaxAttempts bounds retries of remote drivers. Zero uses the default.
	MaxAttempts int
}

// Open constructs the store named by cfg.Driver. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFS(cfg.Root)
	case DriverS3:
		s, err := NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return WithRetry(s, RetryConfig{MaxAttempts: cfg.MaxAttempts}), nil
	case DriverFTP:
		s, err := NewFTP(cfg.FTP)
		if err != nil {
			return nil, err
		}
		return WithRetry(s, RetryConfig{MaxAttempts: cfg.MaxAttempts}), nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, eris.Errorf("blob: unknown driver %q", cfg.Driver)
	}
}

// Exists reports whether key is present.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
