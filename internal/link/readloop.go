package link

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/transport"
)

// readLoop drains one open transport on its own goroutine.
//
// It blocks on the handle's readiness signal when the handle has one and
// otherwise polls every pollInterval. It stops when the stop flag is set or
// the transport fails fatally.
type readLoop struct {
	manager      *Manager
	handle       transport.Handle
	buf          []byte
	pollInterval time.Duration
	logger       *zap.Logger
	decoder      Decoder

	ctx    context.Context
	cancel context.CancelFunc

	stopped    atomic.Bool
	delivering atomic.Bool
	// requested holds a fatal error found outside the loop, by Write.
	requested atomic.Pointer[linkerr.Error]

	// done is closed once the loop no longer touches the handle.
	done chan struct{}
	// finished is closed after any failure teardown has completed.
	finished chan struct{}
}

func newReadLoop(m *Manager, handle transport.Handle, logger *zap.Logger) *readLoop {
	ctx, cancel := context.WithCancel(context.Background())
	return &readLoop{
		manager:      m,
		handle:       handle,
		buf:          make([]byte, m.opts.ReadBufferSize),
		pollInterval: m.opts.PollInterval,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
	}
}

// stop sets the stop flag and aborts a pending readiness wait.
func (l *readLoop) stop() {
	l.stopped.Store(true)
	l.cancel()
}

// requestFatal makes the loop exit and tear the link down with err, which
// the caller has already reported.
func (l *readLoop) requestFatal(err *linkerr.Error) {
	l.requested.CompareAndSwap(nil, err)
	l.stop()
}

func (l *readLoop) run() {
	defer close(l.finished)

	fatal := l.loop()
	if text := l.decoder.Flush(); text != "" {
		l.deliver(func(listener Listener) { listener.OnDataReceived(text) })
	}

	reported := false
	if fatal == nil {
		if fatal = l.requested.Load(); fatal != nil {
			reported = true
		}
	}

	if fatal != nil && !reported {
		l.logger.Error("Read loop stopped by transport failure", zap.Error(fatal))
		l.manager.recordError(fatal)
		l.deliver(func(listener Listener) { listener.OnError(fatal) })
	}

	l.cancel()
	close(l.done)

	if fatal != nil {
		l.manager.closeAfterFailure(l, fatal)
	}
}

// loop returns the fatal error that ended it, or nil when it was stopped.
func (l *readLoop) loop() *linkerr.Error {
	waiter, canWait := l.handle.(transport.ReadinessWaiter)

	var ticker *time.Ticker
	if !canWait {
		l.logger.Debug("Transport has no readiness signal, polling",
			zap.Duration("interval", l.pollInterval))
		ticker = time.NewTicker(l.pollInterval)
		defer ticker.Stop()
	}

	for {
		if l.stopped.Load() {
			return nil
		}

		if canWait {
			if err := waiter.WaitReadable(l.ctx); err != nil {
				if l.stopped.Load() {
					return nil
				}
				if fatal := l.handleError(err); fatal != nil {
					return fatal
				}
				continue
			}
		} else {
			select {
			case <-l.ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		if l.stopped.Load() {
			return nil
		}

		n, err := l.handle.Read(l.buf)
		if n > 0 {
			l.manager.opts.Metrics.RecordBytesRead(n)
			if text := l.decoder.Decode(l.buf[:n]); text != "" {
				l.deliver(func(listener Listener) { listener.OnDataReceived(text) })
			}
		}
		if err != nil {
			if fatal := l.handleError(err); fatal != nil {
				return fatal
			}
		}
	}
}

// handleError reports a non-fatal error and returns fatal ones.
func (l *readLoop) handleError(err error) *linkerr.Error {
	record := toRecord(transport.Classify(err, transport.OpRead))
	if record.Kind.IsFatal() {
		return record
	}

	l.logger.Warn("Read error", zap.Error(record))
	l.manager.recordError(record)
	l.deliver(func(listener Listener) { listener.OnError(record) })

	// back off so a persistent soft error cannot spin
	select {
	case <-l.ctx.Done():
	case <-time.After(l.pollInterval):
	}
	return nil
}

func (l *readLoop) deliver(fn func(Listener)) {
	l.delivering.Store(true)
	defer l.delivering.Store(false)
	fn(l.manager.listener)
}
