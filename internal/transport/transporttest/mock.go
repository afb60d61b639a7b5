// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/transport"
)

// Handle is an in-memory transport handle. Reads never block: they return
// the injected bytes, the injected failure, or (0, nil).
type Handle struct {
	mu       sync.Mutex
	buf      []byte
	readErr  error
	writeErr error
	written  []byte
	closes   int
	reads    int
	signal   chan struct{}
}

// NewHandle creates an empty handle
func NewHandle() *Handle {
	return &Handle{signal: make(chan struct{}, 1)}
}

// Inject makes data available to the next read.
func (h *Handle) Inject(data []byte) {
	h.mu.Lock()
	h.buf = append(h.buf, data...)
	h.mu.Unlock()
	h.wake()
}

// Fail makes every subsequent read return err.
func (h *Handle) Fail(err error) {
	h.mu.Lock()
	h.readErr = err
	h.mu.Unlock()
	h.wake()
}

// FailWrites makes every subsequent write return err.
func (h *Handle) FailWrites(err error) {
	h.mu.Lock()
	h.writeErr = err
	h.mu.Unlock()
}

func (h *Handle) wake() {
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if len(h.buf) > 0 {
		n := copy(p, h.buf)
		h.buf = h.buf[n:]
		return n, nil
	}
	if h.readErr != nil {
		return 0, h.readErr
	}
	return 0, nil
}

func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.writeErr != nil {
		return 0, h.writeErr
	}
	h.written = append(h.written, p...)
	return len(p), nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
	h.wake()
	return nil
}

// Written returns a copy of everything written so far.
func (h *Handle) Written() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.written...)
}

// Closed reports whether Close was called at least once.
func (h *Handle) Closed() bool {
	return h.Closes() > 0
}

// Closes returns how many times Close was called.
func (h *Handle) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Reads returns how many times Read was called.
func (h *Handle) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

// WaitingHandle adds a readiness signal to Handle.
type WaitingHandle struct {
	*Handle
}

// WaitReadable returns once bytes or a failure are pending.
func (w WaitingHandle) WaitReadable(ctx context.Context) error {
	for {
		w.mu.Lock()
		ready := len(w.buf) > 0 || w.readErr != nil
		w.mu.Unlock()
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.signal:
		}
	}
}

// Driver hands out in-memory handles and records every open request.
type Driver struct {
	// Polling makes opened handles lack a readiness signal.
	Polling bool

	mu      sync.Mutex
	openErr error
	handles []*Handle
	configs []serialcfg.SerialConfig
}

// NewDriver creates a driver whose handles signal readiness.
func NewDriver() *Driver {
	return &Driver{}
}

// FailOpen makes subsequent opens return err.
func (d *Driver) FailOpen(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// Open records cfg and returns a new handle
func (d *Driver) Open(ctx context.Context, cfg serialcfg.SerialConfig) (transport.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.configs = append(d.configs, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.openErr != nil {
		return nil, d.openErr
	}

	h := NewHandle()
	d.handles = append(d.handles, h)
	if d.Polling {
		return h, nil
	}
	return WaitingHandle{Handle: h}, nil
}

// Opens returns how many open requests reached the driver.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.configs)
}

// Configs returns the settings of every open request, in order.
func (d *Driver) Configs() []serialcfg.SerialConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]serialcfg.SerialConfig(nil), d.configs...)
}

// Last returns the most recently opened handle, or nil.
func (d *Driver) Last() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}
