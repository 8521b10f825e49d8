// Package storage provides the archive backends for built firmware
// images: a local filesystem directory or S3-compatible object
// storage. Keys are slash separated regardless of backend, in the
// form <product>/<target>/<build id>/<image>.xz.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/eebbk/s6build/src/common/errors"
)

// Backend is the interface the firmware archiver writes through.
type Backend interface {
	// Prepare makes the backend ready for writes, creating the
	// archive directory or bucket when missing.
	Prepare(ctx context.Context) error

	// Store writes one object under the given key.
	Store(ctx context.Context, key string, reader io.Reader, size int64) error

	// List returns the stored objects under the given key prefix.
	// An empty prefix lists everything.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Type identifies the backend kind, "local" or "s3".
	Type() string

	// Location describes where archived images land, for log lines.
	Location() string
}

// Object is one archived firmware image.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Config selects and configures the archive backend.
type Config struct {
	// Type is the backend kind: "local" (default) or "s3".
	Type string

	Local LocalConfig
	S3    S3Config
}

// DefaultConfig returns the local filesystem configuration used when
// nothing else is configured.
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "~/.s6build/artifacts",
		},
	}
}

// New creates the archive backend selected by the configuration.
// Unknown types are rejected.
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "", "local":
		if cfg.Local.BasePath == "" {
			cfg.Local = DefaultConfig().Local
		}
		return NewLocal(cfg.Local)
	default:
		return nil, errors.ErrStorageUnavailable.WithMessagef("unknown storage type %q", cfg.Type)
	}
}
