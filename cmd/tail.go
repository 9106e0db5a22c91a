package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/session"
)

var noFollow bool

var tailCmd = &cobra.Command{
	Use:   "tail [session-id]",
	Short: "Print the journal of a session as it is recorded",
	Long: `Prints every command journaled so far by the given session (or the most
recent one) and keeps printing new ones until the session finishes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		store, err := session.NewStore()
		if err != nil {
			return err
		}
		s, err := resolveSession(store, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "session %s (%s)\n", s.ID, s.Package)

		show := func(r session.Record) {
			fmt.Fprintf(out, "%4d  %s  %s\n", r.Seq, r.Time.Format("15:04:05"), r.Raw)
		}
		if noFollow {
			for _, r := range s.Records {
				show(r)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return session.Follow(ctx, store, s.ID, show)
	},
}

// resolveSession loads the session named by args[0], or the latest one.
func resolveSession(store session.Store, args []string) (*session.Session, error) {
	var (
		s   *session.Session
		err error
	)
	if len(args) == 1 {
		s, err = store.Load(args[0])
	} else {
		s, err = store.Latest()
	}
	if errors.Is(err, session.ErrNoSession) {
		if len(args) == 1 {
			return nil, fmt.Errorf("no session %q in %s", args[0], store.Dir())
		}
		return nil, fmt.Errorf("no recorded sessions in %s", store.Dir())
	}
	return s, err
}

func init() {
	tailCmd.Flags().BoolVar(&noFollow, "no-follow", false, "print the journal and exit")
	rootCmd.AddCommand(tailCmd)
}
