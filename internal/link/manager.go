// Package link owns the lifecycle of a serial link: validating settings,
// opening the transport, running the background read loop and releasing
// everything on close or failure.
package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/metric"
	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/transport"
)

const (
	DefaultReadBufferSize = 4096
	DefaultPollInterval   = time.Second
)

// Options tune a Manager. Zero values select the defaults.
type Options struct {
	ReadBufferSize int
	// PollInterval is used when the transport has no readiness signal.
	PollInterval time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
	Metrics      *metric.Metrics
}

func (o Options) withDefaults() Options {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Manager drives one serial link through
// Disconnected → Connecting → Connected → Closing → Disconnected.
//
// Open, Close and Write are meant to be driven by one logical caller.
// The manager still guards its state against its own read loop, which may
// tear the link down after a transport failure.
type Manager struct {
	driver   transport.Driver
	listener Listener
	opts     Options
	logger   *zap.Logger

	// opMu serializes Open, Close and failure teardown.
	opMu sync.Mutex

	// mu guards the fields below. Write holds it shared while using handle.
	mu      sync.RWMutex
	state   State
	applied *serialcfg.SerialConfig
	handle  transport.Handle
	loop    *readLoop
	linkID  uuid.UUID
}

// NewManager creates a manager in the Disconnected state. A nil listener
// discards events.
func NewManager(driver transport.Driver, listener Listener, opts Options) *Manager {
	opts = opts.withDefaults()
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &Manager{
		driver:   driver,
		listener: listener,
		opts:     opts,
		logger:   opts.Logger.With(zap.String("component", "link")),
		state:    Disconnected,
	}
}

// Open validates raw and opens the transport. It is only allowed from
// Disconnected; otherwise it returns AlreadyOpen and changes nothing.
// Validation failures return every ConfigInvalid record joined and never
// reach the driver.
func (m *Manager) Open(ctx context.Context, raw serialcfg.RawConfig) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()
	if state != Disconnected {
		err := linkerr.Newf(linkerr.AlreadyOpen, "link is %s", state)
		m.recordError(err)
		return err
	}

	cfg, problems := serialcfg.Validate(raw)
	if len(problems) > 0 {
		for _, p := range problems {
			m.recordError(p)
		}
		m.logger.Warn("Rejected serial settings", zap.Strings("fields", linkerr.Fields(linkerr.Join(problems))))
		return linkerr.Join(problems)
	}

	m.mu.Lock()
	m.applied = &cfg
	m.setState(Connecting)
	m.mu.Unlock()

	handle, err := m.driver.Open(ctx, cfg)
	if err != nil {
		record := toRecord(transport.Classify(err, transport.OpOpen))
		m.mu.Lock()
		m.setState(Disconnected)
		m.mu.Unlock()

		m.recordError(record)
		m.opts.Metrics.RecordOpen(false)
		m.logger.Error("Failed to open link", zap.String("port", cfg.Port), zap.Error(record))
		return record
	}

	id := uuid.New()
	logger := m.logger.With(zap.String("link_id", id.String()), zap.String("port", cfg.Port))
	loop := newReadLoop(m, handle, logger)

	m.mu.Lock()
	m.handle = handle
	m.loop = loop
	m.linkID = id
	m.setState(Connected)
	m.mu.Unlock()

	m.opts.Metrics.RecordOpen(true)
	logger.Info("Link opened", zap.String("settings", serialcfg.Format(&cfg)))

	m.listener.OnOpened(OpenedEvent{
		LinkID: id,
		Port:   cfg.Port,
		Config: cfg,
		At:     m.opts.Now(),
	})

	go loop.run()
	return nil
}

// Close stops the read loop, waits for it to exit, releases the transport
// and emits OnClosed. Closing a link that is not open is a no-op.
func (m *Manager) Close() error {
	m.opMu.Lock()

	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		m.opMu.Unlock()
		return nil
	}
	m.setState(Closing)
	loop := m.loop
	m.loop = nil
	m.mu.Unlock()

	loop.stop()
	<-loop.done

	event, err := m.release(ReasonRequested, nil)
	m.opMu.Unlock()

	if err != nil {
		m.logger.Warn("Transport reported an error on close", zap.Error(err))
	}
	m.listener.OnClosed(event)

	// the transport is gone whatever it reported
	return nil
}

// closeAfterFailure tears the link down from the read loop goroutine once
// the loop has exited with a fatal error.
func (m *Manager) closeAfterFailure(loop *readLoop, cause *linkerr.Error) {
	m.opMu.Lock()

	m.mu.Lock()
	if m.loop != loop || m.state != Connected {
		// Close got there first
		m.mu.Unlock()
		m.opMu.Unlock()
		return
	}
	m.setState(Closing)
	m.loop = nil
	m.mu.Unlock()

	event, err := m.release(ReasonFailed, cause)
	m.opMu.Unlock()

	if err != nil {
		m.logger.Debug("Transport close after failure", zap.Error(err))
	}
	m.listener.OnClosed(event)
}

// release closes the handle and returns to Disconnected. The read loop must
// already have exited.
func (m *Manager) release(reason string, cause *linkerr.Error) (ClosedEvent, error) {
	m.mu.Lock()
	handle := m.handle
	m.handle = nil
	id := m.linkID
	m.linkID = uuid.Nil
	port := ""
	if m.applied != nil {
		port = m.applied.Port
	}
	m.mu.Unlock()

	var err error
	if handle != nil {
		err = handle.Close()
	}

	m.mu.Lock()
	m.setState(Disconnected)
	m.mu.Unlock()

	m.logger.Info("Link closed",
		zap.String("link_id", id.String()),
		zap.String("port", port),
		zap.String("reason", reason),
	)

	return ClosedEvent{
		LinkID: id,
		Port:   port,
		Reason: reason,
		Err:    cause,
		At:     m.opts.Now(),
	}, err
}

// Write forwards p to the transport synchronously. It returns NotOpen unless
// the link is Connected.
//
// A write that finds the device removed makes the read loop tear the link
// down. Write waits for that teardown unless a listener callback is running
// at the time: the callback may be the caller, and the loop cannot finish
// until it returns. In that case the link closes once the callback returns
// and OnClosed is the signal that it has.
func (m *Manager) Write(p []byte) (int, error) {
	m.mu.RLock()
	if m.state != Connected {
		m.mu.RUnlock()
		return 0, linkerr.New(linkerr.NotOpen, "link is not open")
	}
	handle, loop := m.handle, m.loop
	n, err := handle.Write(p)
	m.mu.RUnlock()

	m.opts.Metrics.RecordBytesWritten(n)
	if err == nil {
		return n, nil
	}

	record := toRecord(transport.Classify(err, transport.OpWrite))
	m.recordError(record)
	m.logger.Warn("Write failed", zap.Int("written", n), zap.Error(record))

	if record.Kind == linkerr.DeviceRemoved {
		loop.requestFatal(record)
		// no goroutine identity in Go, so an overlapping delivery is
		// treated as a possible call from inside the listener
		if !loop.delivering.Load() {
			<-loop.finished
		}
	}
	return n, record
}

// ConfigDescription formats the applied settings, or returns "" when no
// settings have been accepted yet.
func (m *Manager) ConfigDescription() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return serialcfg.Format(m.applied)
}

// Config returns the applied settings
func (m *Manager) Config() (serialcfg.SerialConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.applied == nil {
		return serialcfg.SerialConfig{}, false
	}
	return *m.applied, true
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LinkID identifies the open link. It is uuid.Nil while disconnected.
func (m *Manager) LinkID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linkID
}

// setState must be called with mu held.
func (m *Manager) setState(s State) {
	m.state = s
	m.opts.Metrics.RecordLinkState(int(s))
}

func (m *Manager) recordError(err *linkerr.Error) {
	m.opts.Metrics.RecordError(err.Kind.String())
}

// toRecord returns the first error record in err's chain, wrapping err in
// one when it carries none.
func toRecord(err error) *linkerr.Error {
	var record *linkerr.Error
	if errors.As(err, &record) {
		return record
	}
	return linkerr.Wrap(linkerr.KindUnknown, "unclassified transport error", err)
}
