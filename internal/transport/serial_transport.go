package transport

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// DefaultReadWindow bounds a single blocking read on the device. It is also
// the longest a pending readiness wait can take to notice cancellation.
const DefaultReadWindow = 100 * time.Millisecond

// portHandle is the subset of serial.Port the driver uses.
type portHandle interface {
	SetReadTimeout(timeout time.Duration) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// allow tests to replace the system call
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// SerialDriver opens physical or virtual serial ports with go.bug.st/serial.
type SerialDriver struct {
	logger     *zap.Logger
	readWindow time.Duration
}

// NewSerialDriver creates a serial driver. A zero readWindow selects
// DefaultReadWindow.
func NewSerialDriver(logger *zap.Logger, readWindow time.Duration) *SerialDriver {
	if readWindow <= 0 {
		readWindow = DefaultReadWindow
	}
	return &SerialDriver{
		logger:     logger.With(zap.String("protocol", "serial")),
		readWindow: readWindow,
	}
}

// ModeFor translates a validated config into go.bug.st port settings.
func ModeFor(cfg serialcfg.SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: int(cfg.DataBits),
	}

	switch cfg.Parity {
	case serialcfg.ParityNone:
		mode.Parity = serial.NoParity
	case serialcfg.ParityOdd:
		mode.Parity = serial.OddParity
	case serialcfg.ParityEven:
		mode.Parity = serial.EvenParity
	case serialcfg.ParitySpace:
		mode.Parity = serial.SpaceParity
	case serialcfg.ParityMark:
		mode.Parity = serial.MarkParity
	default:
		return nil, linkerr.InvalidField(serialcfg.FieldParity, "unsupported parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case serialcfg.StopBits1:
		mode.StopBits = serial.OneStopBit
	case serialcfg.StopBits1Half:
		mode.StopBits = serial.OnePointFiveStopBits
	case serialcfg.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, linkerr.InvalidField(serialcfg.FieldStopBits, "unsupported stop bits %q", cfg.StopBits.String())
	}

	switch cfg.FlowControl {
	case serialcfg.FlowNone:
	case serialcfg.FlowHardware:
		// The library has no CTS gating; assert RTS/DTR so the peer may send.
		mode.InitialStatusBits = &serial.ModemOutputBits{RTS: true, DTR: true}
	case serialcfg.FlowSoftware:
		return nil, linkerr.New(linkerr.Unsupported, "XON/XOFF flow control is not supported by the serial driver")
	default:
		return nil, linkerr.InvalidField(serialcfg.FieldFlowControl, "unsupported flow control %q", cfg.FlowControl)
	}

	return mode, nil
}

// Open opens the port named in cfg
func (d *SerialDriver) Open(ctx context.Context, cfg serialcfg.SerialConfig) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err, OpOpen)
	}

	mode, err := ModeFor(cfg)
	if err != nil {
		return nil, err
	}

	d.logger.Info("Opening serial port",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.Baud),
		zap.String("settings", serialcfg.Format(&cfg)),
	)

	port, err := openPort(cfg.Port, mode)
	if err != nil {
		d.logger.Error("Failed to open serial port", zap.String("port", cfg.Port), zap.Error(err))
		return nil, Classify(err, OpOpen)
	}

	if err := port.SetReadTimeout(d.readWindow); err != nil {
		port.Close()
		return nil, Classify(fmt.Errorf("failed to set read timeout: %w", err), OpOpen)
	}

	d.logger.Info("Serial port opened successfully", zap.String("port", cfg.Port))

	return &serialHandle{
		port:    port,
		scratch: make([]byte, 4096),
	}, nil
}

// serialHandle turns the bounded blocking reads of go.bug.st into a
// readiness signal. Read and WaitReadable must be called from one goroutine.
type serialHandle struct {
	port    portHandle
	pending []byte
	scratch []byte
}

// WaitReadable blocks in read-window slices until bytes arrive or ctx ends.
// Bytes picked up while waiting are returned by the next Read.
func (h *serialHandle) WaitReadable(ctx context.Context) error {
	for len(h.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := h.port.Read(h.scratch)
		if err != nil {
			return Classify(err, OpRead)
		}
		if n > 0 {
			h.pending = append(h.pending, h.scratch[:n]...)
		}
	}
	return nil
}

// Read returns buffered bytes first; otherwise it reads for at most one
// read window.
func (h *serialHandle) Read(p []byte) (int, error) {
	if len(h.pending) > 0 {
		n := copy(p, h.pending)
		h.pending = h.pending[n:]
		if len(h.pending) == 0 {
			h.pending = nil
		}
		return n, nil
	}

	n, err := h.port.Read(p)
	if err != nil {
		return n, Classify(err, OpRead)
	}
	return n, nil
}

// Write writes all of p or reports why it could not
func (h *serialHandle) Write(p []byte) (int, error) {
	n, err := h.port.Write(p)
	if err != nil {
		return n, Classify(err, OpWrite)
	}
	if n != len(p) {
		return n, linkerr.Newf(linkerr.IOWriteError, "incomplete write: wrote %d of %d bytes", n, len(p))
	}
	return n, nil
}

// Close releases the port
func (h *serialHandle) Close() error {
	if err := h.port.Close(); err != nil {
		return Classify(err, OpClose)
	}
	return nil
}
