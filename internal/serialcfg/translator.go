package serialcfg

import (
	"strconv"
	"strings"

	"github.com/fallrisk/super-serial/internal/linkerr"
)

// Validate checks every field of raw independently and returns the
// normalized config together with one ConfigInvalid record per bad field.
// The returned config is only meaningful when no records are returned.
func Validate(raw RawConfig) (SerialConfig, []*linkerr.Error) {
	var (
		cfg  SerialConfig
		errs []*linkerr.Error
	)

	cfg.Port = strings.TrimSpace(raw.Port)
	if cfg.Port == "" {
		errs = append(errs, linkerr.InvalidField(FieldPort, "port is required"))
	}

	cfg.Baud = raw.Baud
	if raw.Baud <= 0 {
		errs = append(errs, linkerr.InvalidField(FieldBaud, "baud must be a positive integer, got %d", raw.Baud))
	}

	cfg.DataBits = DataBits(raw.DataBits)
	if !cfg.DataBits.Valid() {
		errs = append(errs, linkerr.InvalidField(FieldDataBits, "data bits must be one of 5, 6, 7, 8, got %d", raw.DataBits))
	}

	if sb, ok := StopBitsFromDecimal(raw.StopBits); ok {
		cfg.StopBits = sb
	} else {
		errs = append(errs, linkerr.InvalidField(FieldStopBits, "stop bits must be one of 1, 1.5, 2, got %s", raw.StopBits.String()))
	}

	if p, ok := ParseParity(raw.Parity); ok {
		cfg.Parity = p
	} else {
		errs = append(errs, linkerr.InvalidField(FieldParity, "parity must be one of NONE, ODD, EVEN, SPACE, MARK, got %q", raw.Parity))
	}

	if f, ok := ParseFlowControl(raw.FlowControl); ok {
		cfg.FlowControl = f
	} else {
		errs = append(errs, linkerr.InvalidField(FieldFlowControl, "flow control must be one of NONE, SOFTWARE, HARDWARE, got %q", raw.FlowControl))
	}

	return cfg, errs
}

// Format renders cfg as "<port> <baud> <dataBits> <stopBits> <parity> <flow>",
// e.g. "COM4 115200 8 1 None RTS/CTS". A nil config renders as "".
func Format(cfg *SerialConfig) string {
	if cfg == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(cfg.Port)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(cfg.Baud))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(int(cfg.DataBits)))
	b.WriteByte(' ')
	b.WriteString(cfg.StopBits.String())
	b.WriteByte(' ')
	b.WriteString(cfg.Parity.Label())
	b.WriteByte(' ')
	b.WriteString(cfg.FlowControl.Label())
	return b.String()
}
