package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
	"github.com/Skryldev/image-converter/utils"
)

// FileScheme prefixes handles issued by Local.
const FileScheme = "file://"

// Local writes outputs to the local filesystem.  Handles are file:// URIs of
// the written files.
type Local struct {
	rootDir     string
	permissions os.FileMode
	chunkSize   int
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode, chunkSize int) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: mkdir %s: %w", abs, err)
	}
	return &Local{rootDir: abs, permissions: perm, chunkSize: chunkSize}, nil
}

// Root returns the absolute directory outputs are written to.
func (l *Local) Root() string { return l.rootDir }

// Put writes obj as <uuid>-<name> plus a .meta.json side-car.
func (l *Local) Put(ctx context.Context, obj core.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := filepath.Base(filepath.Clean("/" + obj.Name))
	if name == "/" || name == "." {
		name = "output"
	}
	path := filepath.Join(l.rootDir, uuid.NewString()+"-"+name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, l.permissions)
	if err != nil {
		return "", fmt.Errorf("local.put.open: %w", err)
	}
	w := &utils.ChunkedWriter{W: f, ChunkSize: l.chunkSize}
	if _, err := w.Write(obj.Data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("local.put.write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("local.put.close: %w", err)
	}

	meta := map[string]string{"mime_type": obj.MIMEType, "name": obj.Name}
	if mf, err := os.OpenFile(path+".meta.json", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.permissions); err == nil {
		_ = json.NewEncoder(mf).Encode(meta)
		mf.Close()
	}
	return FileScheme + path, nil
}

func (l *Local) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, handle)
		}
		return nil, fmt.Errorf("local.open: %w", err)
	}
	return f, nil
}

// Revoke deletes the file behind handle and its side-car.
func (l *Local) Revoke(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local.revoke: %w", err)
	}
	_ = os.Remove(path + ".meta.json")
	return nil
}

// Meta reads the side-car written by Put.
func (l *Local) Meta(handle string) (map[string]string, error) {
	path, err := l.resolve(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path + ".meta.json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, handle)
		}
		return nil, fmt.Errorf("local.meta: %w", err)
	}
	defer f.Close()
	meta := make(map[string]string)
	if err := json.NewDecoder(f).Decode(&meta); err != nil {
		return nil, fmt.Errorf("local.meta.decode: %w", err)
	}
	return meta, nil
}

// resolve maps a handle back to a path, refusing anything outside rootDir.
func (l *Local) resolve(handle string) (string, error) {
	if !strings.HasPrefix(handle, FileScheme) {
		return "", fmt.Errorf("local storage: %w: %s", apperrors.ErrNotFound, handle)
	}
	path := filepath.Clean(strings.TrimPrefix(handle, FileScheme))
	if filepath.Dir(path) != l.rootDir {
		return "", fmt.Errorf("local storage: %w: %s is outside %s", apperrors.ErrNotFound, handle, l.rootDir)
	}
	return path, nil
}

var _ core.Store = (*Local)(nil)
