// Package console runs an interactive terminal session over a link.
package console

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/linkerr"
)

// EscapeKey (Ctrl-]) ends a session.
const EscapeKey = 0x1d

const quitPrompt = "\r\nClose the link? [y/N] "

// Writer is the part of the link a session sends keystrokes to.
type Writer interface {
	Write(p []byte) (int, error)
}

// Session copies keystrokes from in to the link until the escape key.
type Session struct {
	link   Writer
	in     io.Reader
	out    io.Writer
	logger *zap.Logger

	// PromptOnQuit is consulted on every escape key and LocalEcho on every
	// send, so both may follow a preferences reload.
	PromptOnQuit func() bool
	LocalEcho    func() bool
	// Echo receives locally echoed input. Nil means out.
	Echo io.Writer
}

// NewSession creates a session. out receives prompts and local messages.
func NewSession(w Writer, in io.Reader, out io.Writer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		link:         w,
		in:           in,
		out:          out,
		logger:       logger.With(zap.String("component", "console")),
		PromptOnQuit: func() bool { return false },
		LocalEcho:    func() bool { return false },
	}
}

// Run forwards input until the user quits, input ends, or the link goes
// away. It returns nil on a user quit or end of input and the link error
// when the link is no longer open.
func (s *Session) Run() error {
	buf := make([]byte, 256)
	for {
		n, err := s.in.Read(buf)
		if n > 0 {
			quit, werr := s.handle(buf[:n])
			if werr != nil {
				return werr
			}
			if quit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

// handle sends chunk up to any escape key and reports whether to quit.
func (s *Session) handle(chunk []byte) (bool, error) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, EscapeKey)
		if i < 0 {
			return false, s.send(chunk)
		}
		if err := s.send(chunk[:i]); err != nil {
			return false, err
		}
		chunk = chunk[i+1:]

		if !s.PromptOnQuit() {
			return true, nil
		}

		fmt.Fprint(s.out, quitPrompt)
		answer, rest, err := s.answer(chunk)
		if err != nil {
			return false, err
		}
		if answer == 'y' || answer == 'Y' {
			fmt.Fprint(s.out, "y\r\n")
			return true, nil
		}
		fmt.Fprint(s.out, "\r\n")
		chunk = rest
	}
	return false, nil
}

// answer takes the reply key from pending input or reads one more chunk.
func (s *Session) answer(pending []byte) (byte, []byte, error) {
	if len(pending) > 0 {
		return pending[0], pending[1:], nil
	}

	buf := make([]byte, 16)
	for {
		n, err := s.in.Read(buf)
		if n > 0 {
			return buf[0], append([]byte(nil), buf[1:n]...), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// no reply is a yes
				return 'y', nil, nil
			}
			return 0, nil, err
		}
	}
}

func (s *Session) send(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if s.LocalEcho() {
		s.echo(p)
	}
	if _, err := s.link.Write(p); err != nil {
		switch linkerr.KindOf(err) {
		case linkerr.NotOpen, linkerr.DeviceRemoved:
			return err
		}
		s.logger.Warn("Write failed", zap.Error(err))
		fmt.Fprintf(s.out, "\r\n[write failed: %v]\r\n", err)
	}
	return nil
}

// echo shows typed input the way a line terminal would, moving to a new
// line on carriage return.
func (s *Session) echo(p []byte) {
	w := s.Echo
	if w == nil {
		w = s.out
	}
	w.Write(bytes.ReplaceAll(p, []byte("\r"), []byte("\r\n")))
}

// Display prints link events to a terminal. It implements link.Listener.
type Display struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer

	closeOnce sync.Once
	closed    chan link.ClosedEvent
}

// NewDisplay creates a display writing received text to out and notices to
// errOut.
func NewDisplay(out, errOut io.Writer) *Display {
	return &Display{
		out:    out,
		errOut: errOut,
		closed: make(chan link.ClosedEvent, 1),
	}
}

// Closed delivers the first close event.
func (d *Display) Closed() <-chan link.ClosedEvent {
	return d.closed
}

func (d *Display) OnOpened(event link.OpenedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.errOut, "Connected to %s. Press Ctrl-] to quit.\r\n", event.Port)
}

func (d *Display) OnClosed(event link.ClosedEvent) {
	d.mu.Lock()
	if event.Err != nil {
		fmt.Fprintf(d.errOut, "\r\n[link closed: %v]\r\n", event.Err)
	} else {
		fmt.Fprint(d.errOut, "\r\n[link closed]\r\n")
	}
	d.mu.Unlock()

	d.closeOnce.Do(func() {
		d.closed <- event
	})
}

func (d *Display) OnDataReceived(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	io.WriteString(d.out, text)
}

// Write prints p alongside received text. Sessions echo through it.
func (d *Display) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.out.Write(p)
}

func (d *Display) OnError(err *linkerr.Error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.errOut, "\r\n[%s: %s]\r\n", err.Kind, err.Error())
}
