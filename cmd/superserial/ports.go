package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fallrisk/super-serial/internal/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListPorts()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}

		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No serial ports found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tVENDOR\tSERIAL\tPRODUCT")
		for _, p := range ports {
			usb, ids := "no", ""
			if p.IsUSB {
				usb, ids = "yes", p.VID+":"+p.PID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, usb, ids, p.Vendor, p.SerialNumber, p.Product)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
