package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/transport"
	"github.com/fallrisk/super-serial/internal/transport/transporttest"
)

func rawConfig(port string) serialcfg.RawConfig {
	return serialcfg.RawConfig{
		Port:        port,
		Baud:        9600,
		DataBits:    8,
		StopBits:    decimal.NewFromInt(1),
		Parity:      "NONE",
		FlowControl: "NONE",
	}
}

func newTestService(t *testing.T) (*TerminalService, *transporttest.Driver, string) {
	t.Helper()
	driver := transporttest.NewDriver()
	manager := link.NewManager(driver, nil, link.Options{Logger: zap.NewNop()})
	path := filepath.Join(t.TempDir(), "connections.json")
	ts := NewTerminalService(manager, profile.NewStore(zap.NewNop(), nil), path, zap.NewNop())
	t.Cleanup(func() { ts.Close() })
	return ts, driver, path
}

func TestTerminalService_OpenWriteClose(t *testing.T) {
	ts, driver, _ := newTestService(t)

	assert.Equal(t, link.Disconnected, ts.Status().State)
	assert.Nil(t, ts.Status().LinkID)

	require.NoError(t, ts.Open(context.Background(), rawConfig("/dev/ttyUSB0")))

	status := ts.Status()
	assert.Equal(t, link.Connected, status.State)
	require.NotNil(t, status.LinkID)
	require.NotNil(t, status.Config)
	assert.Equal(t, "/dev/ttyUSB0 9600 8 1 None None", status.Description)

	n, err := ts.Write([]byte("AT\r"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("AT\r"), driver.Last().Written())

	err = ts.Open(context.Background(), rawConfig("/dev/ttyUSB1"))
	assert.Equal(t, linkerr.AlreadyOpen, linkerr.KindOf(err))

	require.NoError(t, ts.Close())
	require.NoError(t, ts.Close())
	assert.Equal(t, link.Disconnected, ts.Status().State)
	assert.True(t, driver.Last().Closed())

	_, err = ts.Write([]byte("x"))
	assert.Equal(t, linkerr.NotOpen, linkerr.KindOf(err))
}

func TestTerminalService_OpenFailureIsClassified(t *testing.T) {
	ts, driver, _ := newTestService(t)
	driver.FailOpen(syscall.EACCES)

	err := ts.Open(context.Background(), rawConfig("/dev/ttyS0"))
	assert.Equal(t, linkerr.PermissionDenied, linkerr.KindOf(err))
	assert.Equal(t, link.Disconnected, ts.Status().State)
}

func TestTerminalService_Profiles(t *testing.T) {
	ts, driver, path := newTestService(t)

	require.NoError(t, ts.LoadProfiles())
	assert.Empty(t, ts.Profiles())

	_, err := ts.SaveProfile("bench", rawConfig("COM1"))
	require.NoError(t, err)
	_, err = ts.SaveProfile("lab", rawConfig("COM2"))
	require.NoError(t, err)

	_, err = ts.SaveProfile(" ", rawConfig("COM3"))
	assert.Equal(t, linkerr.NameRequired, linkerr.KindOf(err))

	bad := rawConfig("COM3")
	bad.DataBits = 9
	_, err = ts.SaveProfile("bad", bad)
	assert.Equal(t, linkerr.ConfigInvalid, linkerr.KindOf(err))

	require.NoError(t, ts.RenameProfile("lab", "lab2"))
	assert.ErrorIs(t, ts.RenameProfile("nope", "x"), profile.ErrNotFound)

	// the file on disk matches memory
	onDisk, err := profile.NewStore(nil, nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, ts.Profiles(), onDisk)
	require.Len(t, onDisk, 2)
	assert.Equal(t, "lab2", onDisk[1].Name)

	require.NoError(t, ts.OpenProfile(context.Background(), "lab2"))
	assert.Equal(t, "COM2", driver.Configs()[0].Port)
	require.NoError(t, ts.Close())

	err = ts.OpenProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	require.NoError(t, ts.DeleteProfile("bench"))
	assert.ErrorIs(t, ts.DeleteProfile("bench"), profile.ErrNotFound)
	assert.Len(t, ts.Profiles(), 1)
}

func TestTerminalService_LoadFailureKeepsPrevious(t *testing.T) {
	ts, _, path := newTestService(t)

	_, err := ts.SaveProfile("keep", rawConfig("COM1"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "x", "stopBits": "banana"}]`), 0644))

	err = ts.LoadProfiles()
	assert.Equal(t, linkerr.SchemaError, linkerr.KindOf(err))
	require.Len(t, ts.Profiles(), 1)
	assert.Equal(t, "keep", ts.Profiles()[0].Name)

	p, err := ts.Profile("keep")
	require.NoError(t, err)
	assert.Equal(t, "COM1", p.Port)
}

func TestTerminalService_Ports(t *testing.T) {
	ts, _, _ := newTestService(t)

	ts.listPorts = func() ([]transport.PortInfo, error) {
		return []transport.PortInfo{{Name: "/dev/ttyACM0", IsUSB: true}}, nil
	}
	ports, err := ts.Ports()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", ports[0].Name)

	ts.listPorts = func() ([]transport.PortInfo, error) {
		return nil, errors.New("no enumerator")
	}
	_, err = ts.Ports()
	assert.Equal(t, linkerr.PortUnavailable, linkerr.KindOf(err))
}
