package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

type fakePort struct {
	mu         sync.Mutex
	chunks     [][]byte
	readErr    error
	written    []byte
	timeout    time.Duration
	closed     bool
	timeoutErr error
}

func (f *fakePort) SetReadTimeout(timeout time.Duration) error {
	f.timeout = timeout
	return f.timeoutErr
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.chunks) == 0 {
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		return 0, nil
	}
	n := copy(p, f.chunks[0])
	f.chunks = f.chunks[1:]
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func (f *fakePort) push(b string) {
	f.mu.Lock()
	f.chunks = append(f.chunks, []byte(b))
	f.mu.Unlock()
}

func validConfig(t *testing.T, parity serialcfg.Parity, stop serialcfg.StopBits, flow serialcfg.FlowControl) serialcfg.SerialConfig {
	t.Helper()
	return serialcfg.SerialConfig{
		Port:        "/dev/ttyUSB0",
		Baud:        115200,
		DataBits:    serialcfg.DataBits8,
		StopBits:    stop,
		Parity:      parity,
		FlowControl: flow,
	}
}

func TestModeFor_Parity(t *testing.T) {
	tests := []struct {
		parity serialcfg.Parity
		want   serial.Parity
	}{
		{serialcfg.ParityNone, serial.NoParity},
		{serialcfg.ParityOdd, serial.OddParity},
		{serialcfg.ParityEven, serial.EvenParity},
		{serialcfg.ParitySpace, serial.SpaceParity},
		{serialcfg.ParityMark, serial.MarkParity},
	}

	for _, test := range tests {
		t.Run(string(test.parity), func(t *testing.T) {
			mode, err := ModeFor(validConfig(t, test.parity, serialcfg.StopBits1, serialcfg.FlowNone))
			require.NoError(t, err)
			assert.Equal(t, test.want, mode.Parity)
			assert.Equal(t, 115200, mode.BaudRate)
			assert.Equal(t, 8, mode.DataBits)
		})
	}
}

func TestModeFor_StopBits(t *testing.T) {
	tests := []struct {
		stop serialcfg.StopBits
		want serial.StopBits
	}{
		{serialcfg.StopBits1, serial.OneStopBit},
		{serialcfg.StopBits1Half, serial.OnePointFiveStopBits},
		{serialcfg.StopBits2, serial.TwoStopBits},
	}

	for _, test := range tests {
		mode, err := ModeFor(validConfig(t, serialcfg.ParityNone, test.stop, serialcfg.FlowNone))
		require.NoError(t, err)
		assert.Equal(t, test.want, mode.StopBits)
	}
}

func TestModeFor_FlowControl(t *testing.T) {
	mode, err := ModeFor(validConfig(t, serialcfg.ParityNone, serialcfg.StopBits1, serialcfg.FlowHardware))
	require.NoError(t, err)
	require.NotNil(t, mode.InitialStatusBits)
	assert.True(t, mode.InitialStatusBits.RTS)

	_, err = ModeFor(validConfig(t, serialcfg.ParityNone, serialcfg.StopBits1, serialcfg.FlowSoftware))
	assert.Equal(t, linkerr.Unsupported, linkerr.KindOf(err))
}

func TestSerialDriver_Open(t *testing.T) {
	port := &fakePort{}
	var gotName string
	var gotMode *serial.Mode

	restore := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		gotName, gotMode = name, mode
		return port, nil
	}
	defer func() { openPort = restore }()

	driver := NewSerialDriver(zap.NewNop(), 0)
	h, err := driver.Open(context.Background(), validConfig(t, serialcfg.ParityEven, serialcfg.StopBits2, serialcfg.FlowNone))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", gotName)
	assert.Equal(t, serial.EvenParity, gotMode.Parity)
	assert.Equal(t, DefaultReadWindow, port.timeout)

	_, ok := h.(ReadinessWaiter)
	assert.True(t, ok, "serial handles signal readiness")

	require.NoError(t, h.Close())
	assert.True(t, port.closed)
}

func TestSerialDriver_OpenFailures(t *testing.T) {
	restore := openPort
	defer func() { openPort = restore }()

	openPort = func(string, *serial.Mode) (portHandle, error) {
		return nil, &os.PathError{Op: "open", Path: "/dev/ttyUSB9", Err: syscall.ENOENT}
	}
	_, err := NewSerialDriver(zap.NewNop(), 0).Open(context.Background(), validConfig(t, serialcfg.ParityNone, serialcfg.StopBits1, serialcfg.FlowNone))
	assert.Equal(t, linkerr.PortUnavailable, linkerr.KindOf(err))

	port := &fakePort{timeoutErr: errors.New("bad timeout")}
	openPort = func(string, *serial.Mode) (portHandle, error) { return port, nil }
	_, err = NewSerialDriver(zap.NewNop(), 0).Open(context.Background(), validConfig(t, serialcfg.ParityNone, serialcfg.StopBits1, serialcfg.FlowNone))
	assert.Error(t, err)
	assert.True(t, port.closed, "port is released when setup fails")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSerialDriver(zap.NewNop(), 0).Open(ctx, validConfig(t, serialcfg.ParityNone, serialcfg.StopBits1, serialcfg.FlowNone))
	assert.Equal(t, linkerr.Timeout, linkerr.KindOf(err))
}

func TestSerialHandle_WaitThenRead(t *testing.T) {
	port := &fakePort{}
	h := &serialHandle{port: port, scratch: make([]byte, 64)}

	port.push("hello")
	require.NoError(t, h.WaitReadable(context.Background()))

	buf := make([]byte, 64)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = h.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSerialHandle_WaitIsCancellable(t *testing.T) {
	h := &serialHandle{port: &fakePort{}, scratch: make([]byte, 64)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.WaitReadable(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WaitReadable did not observe cancellation")
	}
}

func TestSerialHandle_ReadErrorIsClassified(t *testing.T) {
	h := &serialHandle{port: &fakePort{readErr: syscall.EIO}, scratch: make([]byte, 8)}

	err := h.WaitReadable(context.Background())
	assert.Equal(t, linkerr.DeviceRemoved, linkerr.KindOf(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		op   Op
		want linkerr.Kind
	}{
		{"not exist on open", &os.PathError{Op: "open", Path: "COM9", Err: os.ErrNotExist}, OpOpen, linkerr.PortUnavailable},
		{"permission on open", &os.PathError{Op: "open", Path: "/dev/ttyS0", Err: os.ErrPermission}, OpOpen, linkerr.PermissionDenied},
		{"busy", syscall.EBUSY, OpOpen, linkerr.PortUnavailable},
		{"eio on read", fmt.Errorf("read: %w", syscall.EIO), OpRead, linkerr.DeviceRemoved},
		{"eof on read", io.EOF, OpRead, linkerr.DeviceRemoved},
		{"enxio on write", syscall.ENXIO, OpWrite, linkerr.DeviceRemoved},
		{"generic read", errors.New("framing error"), OpRead, linkerr.IOReadError},
		{"generic write", errors.New("overrun"), OpWrite, linkerr.IOWriteError},
		{"deadline", context.DeadlineExceeded, OpRead, linkerr.Timeout},
		{"already classified", linkerr.New(linkerr.Unsupported, "nope"), OpRead, linkerr.Unsupported},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, linkerr.KindOf(Classify(test.err, test.op)))
		})
	}

	assert.NoError(t, Classify(nil, OpRead))
}

func TestListPorts(t *testing.T) {
	restore := detailedPortsList
	defer func() { detailedPortsList = restore }()

	detailedPortsList = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001", Product: "FT232R"},
			nil,
			{Name: "/dev/ttyS0"},
		}, nil
	}

	ports, err := ListPorts()
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, "/dev/ttyS0", ports[0].Name)
	assert.Equal(t, "0403", ports[1].VID)
	assert.Equal(t, "FTDI FT232R", ports[1].Vendor)
	assert.Empty(t, ports[0].Vendor)

	detailedPortsList = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("boom") }
	_, err = ListPorts()
	assert.Error(t, err)
}

func TestLookupVendor(t *testing.T) {
	tests := []struct {
		vid, pid string
		want     string
	}{
		{"1A86", "7523", "WCH CH340"},
		{"10c4", "EA60", "Silicon Labs CP210x"},
		{"2341", "0043", "Arduino"},
		{"0403", "ffff", "FTDI"},
		{"dead", "beef", ""},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, LookupVendor(test.vid, test.pid), test.vid+":"+test.pid)
	}
}
