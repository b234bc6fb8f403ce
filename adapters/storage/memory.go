// Package storage provides core.Store implementations for assembled outputs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Skryldev/image-converter/core"
	apperrors "github.com/Skryldev/image-converter/errors"
)

// MemoryScheme prefixes handles issued by Memory.
const MemoryScheme = "mem://"

// Memory keeps outputs in process memory, addressed by mem://<uuid> handles.
// Safe for concurrent use.
type Memory struct {
	maxBytes int64 // 0 = unbounded

	mu      sync.RWMutex
	objects map[string]core.Object
	used    int64
}

// NewMemory creates a Memory store holding at most maxBytes of output.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{maxBytes: maxBytes, objects: make(map[string]core.Object)}
}

func (m *Memory) Put(ctx context.Context, obj core.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	size := int64(len(obj.Data))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxBytes > 0 && m.used+size > m.maxBytes {
		return "", fmt.Errorf("%w: %d of %d bytes in use, need %d",
			apperrors.ErrStoreFull, m.used, m.maxBytes, size)
	}
	handle := MemoryScheme + uuid.NewString()
	m.objects[handle] = obj
	m.used += size
	return handle, nil
}

func (m *Memory) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, ok := m.get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, handle)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Stat returns the stored object without copying its bytes.
func (m *Memory) Stat(handle string) (core.Object, bool) { return m.get(handle) }

// Revoke forgets handle.  Revoking an unknown handle is not an error.
func (m *Memory) Revoke(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasPrefix(handle, MemoryScheme) {
		return fmt.Errorf("memory store: %w: %s", apperrors.ErrNotFound, handle)
	}
	m.mu.Lock()
	if obj, ok := m.objects[handle]; ok {
		m.used -= int64(len(obj.Data))
		delete(m.objects, handle)
	}
	m.mu.Unlock()
	return nil
}

// Used returns the number of bytes currently held.
func (m *Memory) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Len returns the number of live handles.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) get(handle string) (core.Object, bool) {
	m.mu.RLock()
	obj, ok := m.objects[handle]
	m.mu.RUnlock()
	return obj, ok
}

var _ core.Store = (*Memory)(nil)
