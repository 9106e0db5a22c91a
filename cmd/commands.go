package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/command"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands understood while recording",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range command.Names() {
			spec, _ := command.Lookup(name)
			sig := name + "(" + strings.Join(spec.Params, ", ") + ")"
			fmt.Fprintf(out, "  %-32s %s\n", sig, spec.Doc)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commandsCmd)
}
