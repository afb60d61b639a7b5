package profile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/serialcfg"
)

func TestNew(t *testing.T) {
	raw := serialcfg.RawConfig{
		Port:        "COM4",
		Baud:        115200,
		DataBits:    8,
		StopBits:    decimal.NewFromInt(1),
		Parity:      "NONE",
		FlowControl: "HARDWARE",
	}

	p, err := New("  desk  ", raw)
	require.NoError(t, err)
	assert.Equal(t, "desk", p.Name)
	assert.Equal(t, "COM4 115200 8 1 None RTS/CTS", serialcfg.Format(&p.SerialConfig))

	_, err = New("", raw)
	assert.Equal(t, linkerr.NameRequired, linkerr.KindOf(err))

	raw.Baud = 0
	_, err = New("desk", raw)
	assert.Equal(t, linkerr.ConfigInvalid, linkerr.KindOf(err))
}

func TestCollection(t *testing.T) {
	a := Profile{Name: "a"}
	b := Profile{Name: "b"}
	c := Profile{Name: "c"}

	col := NewCollection([]Profile{a, b, c})
	assert.Equal(t, 3, col.Len())

	updated := Profile{Name: "b", SerialConfig: serialcfg.SerialConfig{Port: "COM2"}}
	col.Put(updated)
	assert.Equal(t, []Profile{a, updated, c}, col.List())

	got, ok := col.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "COM2", got.Port)

	assert.True(t, col.Delete("a"))
	assert.False(t, col.Delete("a"))
	_, ok = col.Get("a")
	assert.False(t, ok)

	require.NoError(t, col.Rename("c", "z"))
	names := []string{}
	for _, p := range col.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"b", "z"}, names)

	assert.ErrorIs(t, col.Rename("missing", "x"), ErrNotFound)
	assert.ErrorIs(t, col.Rename("b", "z"), ErrExists)
	assert.Equal(t, linkerr.NameRequired, linkerr.KindOf(col.Rename("b", " ")))
	assert.NoError(t, col.Rename("b", "b"))
}
