package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dirmirror/internal/dirsyncer"
	"dirmirror/internal/log"
	"dirmirror/internal/settings"
)

func main() {
	if err := settings.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(stop).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stop context.CancelFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dirmirror [flags] SOURCE REPLICA [PERIOD_SECONDS] [LOG_FILE]",
		Short: "Keeps the replica directory a one-way mirror of the source directory",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if err := settings.Load(v, cmd.Flags()); err != nil {
				return err
			}
			stg, err := settings.New(v, args)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true
			return run(cmd.Context(), stop, stg)
		},
	}
	settings.RegisterFlags(rootCmd.Flags())
	return rootCmd
}

func run(ctx context.Context, stop context.CancelFunc, stg *settings.Settings) error {
	logDirCreated := false
	if stg.LogFile != "" {
		var err error
		if logDirCreated, err = log.PrepareFile(stg.LogFile); err != nil {
			return err
		}
	}

	logger, err := log.New(log.Config{Level: stg.LogLevel, ToStd: stg.LogToStd, File: stg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if logDirCreated {
		logger.Warn("log file directory not found, new directory created", log.String("logFile", stg.LogFile))
	}
	if stg.PrintPID {
		logger.Info("process started", log.Int("pid", os.Getpid()))
	}
	logger.Debug("settings resolved", log.Any("settings", stg))

	if err = stg.Validate(); err != nil {
		logger.Error("synchronization cannot start", log.Cause(err))
		return err
	}

	if err = dirsyncer.New(logger, *stg).Start(ctx, stop); err != nil {
		logger.Error("synchronization stopped with an error", log.Cause(err))
		return err
	}
	logger.Info("synchronization stopped")
	return nil
}
