package link

import (
	"time"

	"github.com/google/uuid"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// Close reasons reported in ClosedEvent
const (
	ReasonRequested = "requested"
	ReasonFailed    = "failed"
)

// OpenedEvent is emitted once the transport is open and the read loop is bound.
type OpenedEvent struct {
	LinkID uuid.UUID              `json:"link_id"`
	Port   string                 `json:"port"`
	Config serialcfg.SerialConfig `json:"config"`
	At     time.Time              `json:"at"`
}

// ClosedEvent is emitted after the read loop has stopped and the transport
// has been released.
type ClosedEvent struct {
	LinkID uuid.UUID      `json:"link_id"`
	Port   string         `json:"port"`
	Reason string         `json:"reason"`
	Err    *linkerr.Error `json:"error,omitempty"`
	At     time.Time      `json:"at"`
}

// Listener receives link events.
//
// OnOpened and OnClosed run on the goroutine that called Open or Close,
// except for a close caused by a transport failure, which runs on the read
// loop goroutine together with OnDataReceived and OnError. A listener must
// not call Open or Close synchronously.
type Listener interface {
	OnOpened(event OpenedEvent)
	OnClosed(event ClosedEvent)
	OnDataReceived(text string)
	OnError(err *linkerr.Error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Opened func(OpenedEvent)
	Closed func(ClosedEvent)
	Data   func(string)
	Error  func(*linkerr.Error)
}

func (f ListenerFuncs) OnOpened(event OpenedEvent) {
	if f.Opened != nil {
		f.Opened(event)
	}
}

func (f ListenerFuncs) OnClosed(event ClosedEvent) {
	if f.Closed != nil {
		f.Closed(event)
	}
}

func (f ListenerFuncs) OnDataReceived(text string) {
	if f.Data != nil {
		f.Data(text)
	}
}

func (f ListenerFuncs) OnError(err *linkerr.Error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// MultiListener fans every event out to each listener in order.
type MultiListener []Listener

func (ml MultiListener) OnOpened(event OpenedEvent) {
	for _, l := range ml {
		l.OnOpened(event)
	}
}

func (ml MultiListener) OnClosed(event ClosedEvent) {
	for _, l := range ml {
		l.OnClosed(event)
	}
}

func (ml MultiListener) OnDataReceived(text string) {
	for _, l := range ml {
		l.OnDataReceived(text)
	}
}

func (ml MultiListener) OnError(err *linkerr.Error) {
	for _, l := range ml {
		l.OnError(err)
	}
}
