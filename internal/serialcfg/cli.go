package serialcfg

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CLIArgs is the flat command-line form of a connection request.
// Parity and flow control use single letter codes.
type CLIArgs struct {
	Port        string
	Baud        int
	DataBits    int
	StopBits    float64
	Parity      string
	FlowControl string
}

// DefaultCLIArgs mirrors the command-line defaults: 115200 8N1, no flow control.
func DefaultCLIArgs() CLIArgs {
	return CLIArgs{
		Baud:        115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      "n",
		FlowControl: "n",
	}
}

var parityCodes = map[string]Parity{
	"n": ParityNone,
	"o": ParityOdd,
	"e": ParityEven,
	"s": ParitySpace,
	"m": ParityMark,
}

var flowCodes = map[string]FlowControl{
	"n": FlowNone,
	"s": FlowSoftware,
	"h": FlowHardware,
}

// ExpandParityCode maps n, o, e, s, m to a parity token, or Unknown.
func ExpandParityCode(code string) string {
	if p, ok := parityCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return string(p)
	}
	return Unknown
}

// ExpandFlowCode maps n, s, h to a flow control token, or Unknown.
func ExpandFlowCode(code string) string {
	if f, ok := flowCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return string(f)
	}
	return Unknown
}

// FromCLI converts command-line arguments into a RawConfig. Unrecognised
// codes become Unknown and are rejected later by Validate.
func FromCLI(args CLIArgs) RawConfig {
	return RawConfig{
		Port:        args.Port,
		Baud:        args.Baud,
		DataBits:    args.DataBits,
		StopBits:    decimal.NewFromFloat(args.StopBits),
		Parity:      ExpandParityCode(args.Parity),
		FlowControl: ExpandFlowCode(args.FlowControl),
	}
}
