// Package serialcfg validates user supplied serial settings and renders them
// for display. Everything here is pure.
package serialcfg

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names used in ConfigInvalid records and in the profile file.
const (
	FieldPort        = "port"
	FieldBaud        = "baud"
	FieldDataBits    = "dataBits"
	FieldStopBits    = "stopBits"
	FieldParity      = "parity"
	FieldFlowControl = "flowControl"
)

// Unknown is the sentinel token produced for unrecognised CLI codes.
const Unknown = "UNKNOWN"

// DataBits is the number of data bits per character.
type DataBits int

const (
	DataBits5 DataBits = 5
	DataBits6 DataBits = 6
	DataBits7 DataBits = 7
	DataBits8 DataBits = 8
)

// Valid reports whether d is 5, 6, 7 or 8
func (d DataBits) Valid() bool {
	return d >= DataBits5 && d <= DataBits8
}

// StopBits is the number of stop bits.
type StopBits int

const (
	StopBitsUnset StopBits = iota
	StopBits1
	StopBits1Half
	StopBits2
)

var (
	stopBitsOne     = decimal.NewFromInt(1)
	stopBitsOneHalf = decimal.RequireFromString("1.5")
	stopBitsTwo     = decimal.NewFromInt(2)
)

// StopBitsFromDecimal maps 1, 1.5 and 2 onto StopBits.
func StopBitsFromDecimal(d decimal.Decimal) (StopBits, bool) {
	switch {
	case d.Equal(stopBitsOne):
		return StopBits1, true
	case d.Equal(stopBitsOneHalf):
		return StopBits1Half, true
	case d.Equal(stopBitsTwo):
		return StopBits2, true
	default:
		return StopBitsUnset, false
	}
}

// Decimal returns the numeric value
func (s StopBits) Decimal() decimal.Decimal {
	switch s {
	case StopBits1:
		return stopBitsOne
	case StopBits1Half:
		return stopBitsOneHalf
	case StopBits2:
		return stopBitsTwo
	default:
		return decimal.Zero
	}
}

// String renders "1", "1.5" or "2".
func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits1Half:
		return "1.5"
	case StopBits2:
		return "2"
	default:
		return ""
	}
}

// MarshalJSON writes the stop bits as a bare number.
func (s StopBits) MarshalJSON() ([]byte, error) {
	if s == StopBitsUnset {
		return []byte("null"), nil
	}
	return []byte(s.String()), nil
}

// UnmarshalJSON reads a number (or numeric string) into StopBits.
func (s *StopBits) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	v, ok := StopBitsFromDecimal(d)
	if !ok {
		return fmt.Errorf("invalid stop bits %s", d.String())
	}
	*s = v
	return nil
}

// Parity is the per-character parity scheme.
type Parity string

const (
	ParityNone  Parity = "NONE"
	ParityOdd   Parity = "ODD"
	ParityEven  Parity = "EVEN"
	ParitySpace Parity = "SPACE"
	ParityMark  Parity = "MARK"
)

// Parities lists the legal parity tokens in display order.
var Parities = []Parity{ParityNone, ParityOdd, ParityEven, ParitySpace, ParityMark}

// ParseParity accepts a parity token, case-insensitively.
func ParseParity(s string) (Parity, bool) {
	p := Parity(strings.ToUpper(strings.TrimSpace(s)))
	for _, legal := range Parities {
		if p == legal {
			return p, true
		}
	}
	return "", false
}

// Label is the short human label
func (p Parity) Label() string {
	switch p {
	case ParityNone:
		return "None"
	case ParityOdd:
		return "Odd"
	case ParityEven:
		return "Even"
	case ParitySpace:
		return "Space"
	case ParityMark:
		return "Mark"
	default:
		return "Unk"
	}
}

// FlowControl is the sender overrun protection scheme.
type FlowControl string

const (
	FlowNone     FlowControl = "NONE"
	FlowSoftware FlowControl = "SOFTWARE"
	FlowHardware FlowControl = "HARDWARE"
)

// FlowControls lists the legal flow control tokens.
var FlowControls = []FlowControl{FlowNone, FlowSoftware, FlowHardware}

// ParseFlowControl accepts a flow control token. The display labels
// XON/XOFF and RTS/CTS are accepted as aliases.
func ParseFlowControl(s string) (FlowControl, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FlowNone):
		return FlowNone, true
	case string(FlowSoftware), "XON/XOFF":
		return FlowSoftware, true
	case string(FlowHardware), "RTS/CTS":
		return FlowHardware, true
	default:
		return "", false
	}
}

// Label is the short human label
func (f FlowControl) Label() string {
	switch f {
	case FlowNone:
		return "None"
	case FlowSoftware:
		return "XON/XOFF"
	case FlowHardware:
		return "RTS/CTS"
	default:
		return "Unk"
	}
}

// SerialConfig is a validated, transport-ready configuration.
type SerialConfig struct {
	Port        string      `json:"port"`
	Baud        int         `json:"baud"`
	DataBits    DataBits    `json:"dataBits"`
	StopBits    StopBits    `json:"stopBits"`
	Parity      Parity      `json:"parity"`
	FlowControl FlowControl `json:"flowControl"`
}

// Raw converts the config back to its unvalidated input form.
func (c SerialConfig) Raw() RawConfig {
	return RawConfig{
		Port:        c.Port,
		Baud:        c.Baud,
		DataBits:    int(c.DataBits),
		StopBits:    c.StopBits.Decimal(),
		Parity:      string(c.Parity),
		FlowControl: string(c.FlowControl),
	}
}

// RawConfig is user input before validation. Field names match the profile
// file keys.
type RawConfig struct {
	Port        string          `json:"port" mapstructure:"port"`
	Baud        int             `json:"baud" mapstructure:"baud"`
	DataBits    int             `json:"dataBits" mapstructure:"dataBits"`
	StopBits    decimal.Decimal `json:"stopBits" mapstructure:"stopBits"`
	Parity      string          `json:"parity" mapstructure:"parity"`
	FlowControl string          `json:"flowControl" mapstructure:"flowControl"`
}
