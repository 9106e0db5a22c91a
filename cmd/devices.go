package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/adb"
)

var restartServer bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached devices and whether a session could start on them",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		client := newClient(adb.Target{})
		if restartServer {
			if err := client.Restart(cmd.Context()); err != nil {
				return err
			}
		}

		devices, emulators, err := client.Devices(cmd.Context())
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(out, "no devices attached")
			return nil
		}
		for _, serial := range devices {
			kind := "device"
			if slices.Contains(emulators, serial) {
				kind = "emulator"
			}
			state := "online"
			if kind == "emulator" && !client.WithDevice(serial).Responsive(cmd.Context()) {
				state = "booting"
			}
			fmt.Fprintf(out, "%-20s %-9s %s\n", serial, kind, state)
		}
		return nil
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&restartServer, "restart", false, "restart the adb server first")
	rootCmd.AddCommand(devicesCmd)
}
