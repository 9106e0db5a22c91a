package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/droidrec/internal/adb"
	"github.com/fakeyudi/droidrec/internal/avd"
	"github.com/fakeyudi/droidrec/internal/config"
	"github.com/fakeyudi/droidrec/internal/logging"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// logger writes the JSON debug log; set up in PersistentPreRunE.
var logger = logging.Nop()

// runner and spawner replace real processes in tests. nil means real.
var (
	runner  adb.Runner
	spawner avd.Spawner
)

var (
	avdName   string
	devSerial string
	avdOpts   string
	noRecord  bool
)

var rootCmd = &cobra.Command{
	Use:   "droidrec <target.apk>",
	Short: "Record interactions with an Android app and turn them into Go tests",
	Long: `droidrec installs the target APK next to an instrumentation harness,
reads commands such as click(OK) or edit(0, "text") from stdin and drives the
app with them. Typing "sofar <name>" closes a test case; "finish" ends the
session and writes the recorded cases as a Go test file.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		dir, err := config.DataDir()
		if err != nil {
			return fmt.Errorf("resolving data directory: %w", err)
		}
		l, err := logging.New(dir, cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			fmt.Fprintln(cmd.OutOrStdout(), "target file is not given")
			return cmd.Usage()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := runRecord(ctx, cmd, args[0])
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.OutOrStdout(), "session interrupted")
			return nil
		}
		return err
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds the adb client every subcommand shares.
func newClient(target adb.Target) *adb.Client {
	return adb.New(target, adb.Options{
		ADBPath:        cfg.ADBPath,
		HarnessPackage: cfg.HarnessPackage,
		PollInterval:   cfg.PollInterval,
		ProbeTimeout:   cfg.ProbeTimeout,
		SyncTimeout:    cfg.SyncTimeout,
		Runner:         runner,
		Logger:         logger,
	})
}

// closeLogger runs after every command, including failed ones.
func closeLogger() {
	if err := logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "closing debug log:", err)
	}
	logger = logging.Nop()
}

func init() {
	cobra.OnFinalize(closeLogger)
	rootCmd.Flags().StringVar(&avdName, "avd", "", "your own Android Virtual Device (default from config)")
	rootCmd.Flags().StringVar(&devSerial, "dev", "", "serial of the device to use")
	rootCmd.Flags().StringVar(&avdOpts, "opt", "", `emulator options, e.g. "-no-window"`)
	rootCmd.Flags().BoolVar(&noRecord, "no-rec", false, "do not record commands")
}
