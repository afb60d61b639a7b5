package transport

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"go.bug.st/serial"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// Op names the transport operation that produced an error.
type Op int

const (
	OpOpen Op = iota
	OpRead
	OpWrite
	OpClose
)

// String returns the operation name
func (o Op) String() string {
	switch o {
	case OpOpen:
		return "open"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// Classify maps a platform or library error onto exactly one error kind.
// Errors that already carry a kind are returned unchanged.
func Classify(err error, op Op) error {
	if err == nil {
		return nil
	}

	var le *linkerr.Error
	if errors.As(err, &le) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return linkerr.Wrap(linkerr.Timeout, op.String()+" timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return linkerr.Wrap(linkerr.Timeout, op.String()+" cancelled", err)
	}

	var pe *serial.PortError
	if errors.As(err, &pe) {
		if kind, field, ok := classifyPortError(pe.Code(), op); ok {
			return &linkerr.Error{Kind: kind, Message: pe.EncodedErrorString(), Field: field, Err: err}
		}
	}

	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return linkerr.Wrap(linkerr.PermissionDenied, "permission denied", err)
	case errors.Is(err, syscall.EBUSY):
		return linkerr.Wrap(linkerr.PortUnavailable, "port is busy", err)
	}

	if op == OpOpen {
		return linkerr.Wrap(linkerr.PortUnavailable, "failed to open serial port", err)
	}

	if isRemoval(err) {
		return linkerr.Wrap(linkerr.DeviceRemoved, "device removed", err)
	}

	switch op {
	case OpRead:
		return linkerr.Wrap(linkerr.IOReadError, "failed to read from serial port", err)
	default:
		return linkerr.Wrap(linkerr.IOWriteError, "failed to "+op.String()+" serial port", err)
	}
}

func classifyPortError(code serial.PortErrorCode, op Op) (linkerr.Kind, string, bool) {
	switch code {
	case serial.PortNotFound, serial.InvalidSerialPort:
		return linkerr.PortUnavailable, "", true
	case serial.PortBusy:
		return linkerr.PortUnavailable, "", true
	case serial.PermissionDenied:
		return linkerr.PermissionDenied, "", true
	case serial.InvalidSpeed:
		return linkerr.ConfigInvalid, serialcfg.FieldBaud, true
	case serial.InvalidDataBits:
		return linkerr.ConfigInvalid, serialcfg.FieldDataBits, true
	case serial.InvalidParity:
		return linkerr.ConfigInvalid, serialcfg.FieldParity, true
	case serial.InvalidStopBits:
		return linkerr.ConfigInvalid, serialcfg.FieldStopBits, true
	case serial.FunctionNotImplemented:
		return linkerr.Unsupported, "", true
	case serial.PortClosed:
		if op == OpOpen {
			return linkerr.PortUnavailable, "", true
		}
		return linkerr.DeviceRemoved, "", true
	default:
		return linkerr.KindUnknown, "", false
	}
}

// isRemoval reports errors a tty returns once its device has gone away.
func isRemoval(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrClosed) ||
		errors.Is(err, syscall.ENODEV) ||
		errors.Is(err, syscall.ENXIO) ||
		errors.Is(err, syscall.EIO)
}
