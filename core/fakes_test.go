package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"
)

// ── Fake runtime ──────────────────────────────────────────────────────────────

type fakeRuntime struct {
	mu sync.Mutex

	gate       chan struct{} // when set, Startup blocks until closed
	startupErr error
	startPanic bool
	decodeErr  error
	partial    bool // return a handle alongside decodeErr
	encodeErr  error
	encodeOut  []byte
	encodeNil  bool

	startups  int
	shutdowns int
	decodes   int
	encodes   int
	releases  int
	lastData  []byte
	lastOpts  EncodeOptions
}

func (r *fakeRuntime) Name() string { return "fake" }

func (r *fakeRuntime) Startup(ctx context.Context) error {
	r.mu.Lock()
	r.startups++
	gate, panics := r.gate, r.startPanic
	r.mu.Unlock()

	if panics {
		panic("boom")
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startupErr
}

func (r *fakeRuntime) Shutdown() {
	r.mu.Lock()
	r.shutdowns++
	r.mu.Unlock()
}

func (r *fakeRuntime) Decode(data []byte) (ImageHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodes++
	r.lastData = data
	if r.decodeErr != nil {
		if r.partial {
			return &fakeHandle{rt: r}, r.decodeErr
		}
		return nil, r.decodeErr
	}
	return &fakeHandle{rt: r}, nil
}

func (r *fakeRuntime) Encode(h ImageHandle, f Format, opts EncodeOptions) ([]byte, error) {
	if _, ok := h.(*fakeHandle); !ok {
		return nil, errors.New("foreign handle")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodes++
	r.lastOpts = opts
	switch {
	case r.encodeErr != nil:
		return nil, r.encodeErr
	case r.encodeNil:
		return nil, nil
	case r.encodeOut != nil:
		return r.encodeOut, nil
	}
	return []byte("encoded:" + string(f) + ":" + strconv.Itoa(opts.Quality)), nil
}

func (r *fakeRuntime) set(fn func(r *fakeRuntime)) {
	r.mu.Lock()
	fn(r)
	r.mu.Unlock()
}

func (r *fakeRuntime) counts() (startups, decodes, encodes, releases int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startups, r.decodes, r.encodes, r.releases
}

type fakeHandle struct{ rt *fakeRuntime }

func (h *fakeHandle) Width() int  { return 1 }
func (h *fakeHandle) Height() int { return 1 }
func (h *fakeHandle) Release() {
	h.rt.mu.Lock()
	h.rt.releases++
	h.rt.mu.Unlock()
}

// ── Fake alternate decoder ────────────────────────────────────────────────────

type altFunc func(ctx context.Context, data []byte) ([][]byte, error)

func (f altFunc) Decode(ctx context.Context, data []byte) ([][]byte, error) { return f(ctx, data) }

// ── Fake store ────────────────────────────────────────────────────────────────

type fakeStore struct {
	mu   sync.Mutex
	err  error
	objs map[string]Object
}

func newFakeStore() *fakeStore { return &fakeStore{objs: make(map[string]Object)} }

func (s *fakeStore) Put(_ context.Context, obj Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	h := "fake://" + strconv.Itoa(len(s.objs))
	s.objs[h] = obj
	return h, nil
}

func (s *fakeStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (s *fakeStore) Revoke(_ context.Context, handle string) error {
	s.mu.Lock()
	delete(s.objs, handle)
	s.mu.Unlock()
	return nil
}

// ── Recording hook ────────────────────────────────────────────────────────────

type stageEvent struct {
	stage State
	err   error
}

type recordingHook struct {
	mu     sync.Mutex
	before []State
	after  []stageEvent
}

func (h *recordingHook) BeforeStage(_ context.Context, _ string, s State) {
	h.mu.Lock()
	h.before = append(h.before, s)
	h.mu.Unlock()
}

func (h *recordingHook) AfterStage(_ context.Context, _ string, s State, _ time.Duration, err error) {
	h.mu.Lock()
	h.after = append(h.after, stageEvent{stage: s, err: err})
	h.mu.Unlock()
}

func (h *recordingHook) saw(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.before {
		if b == s {
			return true
		}
	}
	return false
}
