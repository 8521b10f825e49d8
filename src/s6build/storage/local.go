package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/paths"
)

// LocalConfig configures the filesystem archive backend.
type LocalConfig struct {
	// BasePath is the directory archived firmware images land in.
	BasePath string
}

// LocalBackend archives firmware images into a directory tree
// mirroring the object keys.
type LocalBackend struct {
	basePath string
}

// NewLocal creates a filesystem backend rooted at the configured base
// path. The directory itself appears on first Prepare or Store.
func NewLocal(cfg LocalConfig) (*LocalBackend, error) {
	basePath, err := filepath.Abs(paths.Expand(cfg.BasePath))
	if err != nil {
		return nil, errors.ErrStorageUnavailable.WithCause(err)
	}
	return &LocalBackend{basePath: basePath}, nil
}

// Prepare creates the archive directory.
func (b *LocalBackend) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(b.basePath, 0755); err != nil {
		return errors.ErrStorageUnavailable.WithMessagef("cannot create archive directory %s", b.basePath).WithCause(err)
	}
	return nil
}

// objectPath maps a slash separated key into the archive directory.
// Absolute and parent-relative keys are flattened so no object can
// land outside the base path.
func (b *LocalBackend) objectPath(key string) string {
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	return filepath.Join(b.basePath, filepath.FromSlash(clean))
}

// Store writes one object through a staging file next to its final
// path; a partially written image is never visible under its key.
func (b *LocalBackend) Store(ctx context.Context, key string, reader io.Reader, size int64) error {
	dst := b.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.ErrUploadFailed.WithMessagef("cannot create %s", filepath.Dir(dst)).WithCause(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".partial-*")
	if err != nil {
		return errors.ErrUploadFailed.WithCause(err)
	}
	written, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	switch {
	case err != nil:
		os.Remove(tmp.Name())
		return errors.ErrUploadFailed.WithMessagef("write failed for %s", key).WithCause(err)
	case closeErr != nil:
		os.Remove(tmp.Name())
		return errors.ErrUploadFailed.WithCause(closeErr)
	case size > 0 && written != size:
		os.Remove(tmp.Name())
		return errors.ErrUploadFailed.WithMessagef("size mismatch for %s: expected %d bytes, wrote %d", key, size, written)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return errors.ErrUploadFailed.WithCause(err)
	}
	return nil
}

// List walks the archive directory and returns the objects whose keys
// start with the given prefix. A base path that does not exist yet
// lists as empty.
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	prefix = strings.TrimPrefix(prefix, "/")

	walkErr := filepath.WalkDir(b.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// A missing or unreadable branch lists as absent.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// Skip staged uploads that never completed.
		if strings.Contains(d.Name(), ".partial-") {
			return nil
		}

		rel, err := filepath.Rel(b.basePath, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		objects = append(objects, Object{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, errors.ErrStorageUnavailable.WithMessagef("cannot list archive directory %s", b.basePath).WithCause(walkErr)
	}

	return objects, nil
}

// Type returns the storage backend type.
func (b *LocalBackend) Type() string {
	return "local"
}

// Location returns the archive directory.
func (b *LocalBackend) Location() string {
	return b.basePath
}
