package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/session"
)

var synthOut string

var synthCmd = &cobra.Command{
	Use:   "synth [session-id]",
	Short: "Regenerate the test file of a recorded session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.NewStore()
		if err != nil {
			return err
		}
		s, err := resolveSession(store, args)
		if err != nil {
			return err
		}
		dir := synthOut
		if dir == "" {
			dir = cfg.TestCasesDir
		}
		path, n, err := writeTests(s, dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d test(s) to %s\n", n, path)
		return nil
	},
}

func init() {
	synthCmd.Flags().StringVar(&synthOut, "out", "", "directory to write into (default from config)")
	rootCmd.AddCommand(synthCmd)
}
