package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	console "github.com/Copycord/console"
	"github.com/Copycord/console/internal/logger"
	"github.com/Copycord/console/internal/status"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	NoColor    bool
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "copycord-console",
		Short: "Operator console for Copycord server and client processes",
		Long: "copycord-console keeps a live view of the Copycord server and client\n" +
			"processes by merging periodic polling, the push socket and the event bus\n" +
			"into one status model.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "path to TOML config file")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable colored log output")

	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newToggleCmd(flags, "start", "Start a Copycord role"))
	root.AddCommand(newToggleCmd(flags, "stop", "Stop a Copycord role"))
	return root
}

// setup loads config and builds the console with terminal presentation.
func setup(flags *GlobalFlags) (*console.Console, console.Config, error) {
	cfg, err := console.LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, cfg, err
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.NoColor {
		cfg.Log.NoColor = true
	}

	log, closer, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		NoColor:    cfg.Log.NoColor,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, cfg, err
	}

	term := newTermRenderer(os.Stdout, !cfg.Log.NoColor)
	con, err := console.New(cfg, console.Options{
		Renderer:  term,
		Notifier:  term,
		Logger:    log,
		LogCloser: closer,
	})
	if err != nil {
		_ = closer.Close()
		return nil, cfg, err
	}
	return con, cfg, nil
}

func newWatchCmd(flags *GlobalFlags) *cobra.Command {
	var tailRole string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch live status of both roles until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			con, _, err := setup(flags)
			if err != nil {
				return err
			}
			if err := con.Open(); err != nil {
				con.Close()
				return err
			}
			defer con.Close()

			if tailRole != "" {
				role, err := status.ParseRole(tailRole)
				if err != nil {
					return err
				}
				tail := con.TailLogs(role, func(lines []string, follow bool) {
					for _, line := range lines {
						fmt.Printf("[%s] %s\n", role, line)
					}
				})
				defer tail.Close()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
	cmd.Flags().StringVar(&tailRole, "tail", "", "also tail logs for a role (server or client)")
	return cmd
}

func newStatusCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a one-shot status snapshot of both roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			con, _, err := setup(flags)
			if err != nil {
				return err
			}
			defer con.Close()
			// One immediate poll merges the snapshot into the model before
			// it is printed; no channels are opened.
			con.PollOnce(cmd.Context())
			snap, aggregate, locked := con.Snapshot()
			for _, role := range status.Roles() {
				printStatus(os.Stdout, role, snap[role])
			}
			fmt.Printf("aggregate running: %v  editing locked: %v\n", aggregate, locked)
			return nil
		},
	}
}

func newToggleCmd(flags *GlobalFlags, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <role>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := status.ParseRole(args[0])
			if err != nil {
				return err
			}
			con, _, err := setup(flags)
			if err != nil {
				return err
			}
			defer con.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if verb == "start" {
				err = con.StartRole(ctx, role)
			} else {
				err = con.StopRole(ctx, role)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", verb, role, err)
			}
			fmt.Printf("%s request accepted for %s\n", verb, role)
			return nil
		},
	}
}
