package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fallrisk/super-serial/internal/serialcfg"
)

// serialFlags binds the serial settings flags shared by connect and
// profiles save.
type serialFlags struct {
	args serialcfg.CLIArgs
}

func (f *serialFlags) register(flags *pflag.FlagSet) {
	d := serialcfg.DefaultCLIArgs()
	flags.StringVarP(&f.args.Port, "port", "p", "", "Serial port, e.g. /dev/ttyUSB0 or COM4")
	flags.IntVarP(&f.args.Baud, "baud", "b", d.Baud, "Baud rate")
	flags.IntVar(&f.args.DataBits, "data-bits", d.DataBits, "Data bits (5-8)")
	flags.Float64Var(&f.args.StopBits, "stop-bits", d.StopBits, "Stop bits (1, 1.5, 2)")
	flags.StringVar(&f.args.Parity, "parity", d.Parity, "Parity: n, o, e, s, m")
	flags.StringVar(&f.args.FlowControl, "flow-control", d.FlowControl, "Flow control: n, s, h")
	flags.StringVar(&f.args.FlowControl, "fc", d.FlowControl, "Alias for --flow-control")
	flags.MarkHidden("fc")
}

// resolve returns the flag values, taking every flag the user did not set
// from defaults.
func (f *serialFlags) resolve(cmd *cobra.Command, defaults serialcfg.CLIArgs) serialcfg.CLIArgs {
	flags := cmd.Flags()
	args := f.args

	if !flags.Changed("baud") {
		args.Baud = defaults.Baud
	}
	if !flags.Changed("data-bits") {
		args.DataBits = defaults.DataBits
	}
	if !flags.Changed("stop-bits") {
		args.StopBits = defaults.StopBits
	}
	if !flags.Changed("parity") {
		args.Parity = defaults.Parity
	}
	if !flags.Changed("flow-control") && !flags.Changed("fc") {
		args.FlowControl = defaults.FlowControl
	}
	return args
}
