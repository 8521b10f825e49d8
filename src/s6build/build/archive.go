package build

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/s6build/storage"
	"github.com/ulikunitz/xz"
)

// FirmwareOutputs returns the flash images the engine wrote for the
// given target and toolchain, following the engine's output layout
// Build/<package>/<TARGET>_<TOOLCHAIN>/FV/*.fd.
func FirmwareOutputs(workspaceRoot, packageName, target, toolchain string) ([]string, error) {
	pattern := filepath.Join("Build", packageName, target+"_"+toolchain, "FV", "*.fd")
	return OutputsFromGlob(workspaceRoot, pattern)
}

// OutputsFromGlob returns the firmware images matching a
// workspace-relative glob, for configurations whose output layout
// differs from the engine default.
func OutputsFromGlob(workspaceRoot, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(workspaceRoot, pattern))
	if err != nil {
		return nil, errors.Wrap(err, errors.DomainStorage, errors.CodeNoArtifacts, "bad firmware output pattern")
	}
	return matches, nil
}

// Archiver compresses built firmware images and stores them in the
// configured archive backend.
type Archiver struct {
	log     *logs.Logger
	backend storage.Backend
}

// NewArchiver creates an archiver writing to the given backend.
func NewArchiver(log *logs.Logger, backend storage.Backend) *Archiver {
	return &Archiver{
		log:     log,
		backend: backend,
	}
}

// ArchiveBuild uploads every output as
// <product>/<target>/<buildID>/<name>.xz and returns the stored keys.
// The SHA-256 of each uncompressed image is logged so archived images
// can be verified after extraction.
func (a *Archiver) ArchiveBuild(ctx context.Context, product, target, buildID string, outputs []string) ([]string, error) {
	if len(outputs) == 0 {
		return nil, errors.ErrNoArtifacts
	}

	if err := a.backend.Prepare(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(outputs))
	for _, output := range outputs {
		key := product + "/" + target + "/" + buildID + "/" + filepath.Base(output) + ".xz"
		if err := a.archiveOne(ctx, key, output); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}

	a.log.Info("Archived firmware images",
		"count", len(keys), "backend", a.backend.Type(), "location", a.backend.Location())
	return keys, nil
}

func (a *Archiver) archiveOne(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ErrUploadFailed.WithMessagef("failed to read firmware image %s", path).WithCause(err)
	}

	sum := sha256.Sum256(data)

	var compressed bytes.Buffer
	writer, err := xz.NewWriter(&compressed)
	if err != nil {
		return errors.ErrUploadFailed.WithMessagef("failed to start compression for %s", path).WithCause(err)
	}
	if _, err := writer.Write(data); err != nil {
		return errors.ErrUploadFailed.WithMessagef("failed to compress %s", path).WithCause(err)
	}
	if err := writer.Close(); err != nil {
		return errors.ErrUploadFailed.WithMessagef("failed to finish compression for %s", path).WithCause(err)
	}

	size := int64(compressed.Len())
	if err := a.backend.Store(ctx, key, &compressed, size); err != nil {
		return err
	}

	a.log.Info("Archived firmware image",
		"key", key,
		"size", int64(len(data)),
		"compressed", size,
		"sha256", hex.EncodeToString(sum[:]))
	return nil
}
