// Package transport abstracts the serial device behind a small capability
// interface so the link manager never depends on a concrete port library.
package transport

import (
	"context"

	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// Handle is an open transport. It is owned by exactly one link manager.
type Handle interface {
	// Read returns the bytes currently available. It may return (0, nil)
	// when nothing arrived within the handle's read window.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// ReadinessWaiter is implemented by handles that can signal data arrival.
// WaitReadable blocks until at least one byte can be read without
// blocking, the context is done, or the transport fails.
type ReadinessWaiter interface {
	WaitReadable(ctx context.Context) error
}

// Driver opens transports from validated settings.
type Driver interface {
	Open(ctx context.Context, cfg serialcfg.SerialConfig) (Handle, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, cfg serialcfg.SerialConfig) (Handle, error)

// Open calls f
func (f DriverFunc) Open(ctx context.Context, cfg serialcfg.SerialConfig) (Handle, error) {
	return f(ctx, cfg)
}

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	// Vendor is filled for known USB-serial bridges
	Vendor string `json:"vendor,omitempty"`
}
