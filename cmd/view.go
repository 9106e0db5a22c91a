package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/session"
	"github.com/fakeyudi/droidrec/internal/synth"
	"github.com/fakeyudi/droidrec/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View a session journal (.json) or a generated test file (.go)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		doc, err := loadDocument(path)
		if err != nil {
			return err
		}
		if plainOutput {
			printDocument(cmd.OutOrStdout(), doc)
			return nil
		}
		return tui.Run(doc, path)
	},
}

// loadDocument reads a journal or a test file depending on its extension.
func loadDocument(path string) (*tui.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		m, err := synth.Parse(data)
		if err != nil {
			return nil, err
		}
		return tui.FromModule(m), nil
	default:
		s, err := session.ReadFile(path)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return nil, fmt.Errorf("file not found: %s", path)
			}
			return nil, err
		}
		return tui.FromSession(s), nil
	}
}

// printDocument writes a plain-text rendering of doc to w.
func printDocument(w io.Writer, doc *tui.Document) {
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Package:   %s\n", doc.Package)
	fmt.Fprintf(w, "  Launcher:  %s\n", doc.Launcher)
	for _, f := range doc.Fields {
		fmt.Fprintf(w, "  %-10s %s\n", f[0], f[1])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Segments")
	if len(doc.Segments) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, seg := range doc.Segments {
		fmt.Fprintf(w, "  %s\n", seg.Label)
		for _, l := range seg.Lines {
			fmt.Fprintf(w, "    %s\n", l)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Journal")
	if len(doc.Entries) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, e := range doc.Entries {
		if e.Time.IsZero() {
			fmt.Fprintf(w, "  %d. %s\n", e.Seq, e.Raw)
		} else {
			fmt.Fprintf(w, "  %d. [%s] %s\n", e.Seq, e.Time.Format("15:04:05"), e.Raw)
		}
	}
	fmt.Fprintln(w)
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
