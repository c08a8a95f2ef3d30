package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// This is to keep all fields needed for the main/root fixtured command
type rootCommand struct {
	logger   *logrus.Logger
	stdout   io.Writer
	cmd      *cobra.Command
	logLevel string
	logFmt   string
}

func newRootCommand(logger *logrus.Logger, stdout io.Writer) *rootCommand {
	c := &rootCommand{logger: logger, stdout: stdout}
	c.cmd = &cobra.Command{
		Use:               "fixtured",
		Short:             "serve browser test fixtures and wait for downloads",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.PersistentFlags().AddFlagSet(c.persistentFlagSet())
	c.cmd.AddCommand(
		getServeCmd(logger, stdout),
		getWaitCmd(logger, stdout),
	)
	return c
}

func (c *rootCommand) persistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&c.logFmt, "log-format", "text", "log format: text or json")
	return flags
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	c.logger.SetLevel(level)

	switch strings.ToLower(c.logFmt) {
	case "text":
		c.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		c.logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", c.logFmt)
	}
	return nil
}

func (c *rootCommand) execute(ctx context.Context, args []string) error {
	c.cmd.SetArgs(args)
	c.cmd.SetOut(c.stdout)
	return c.cmd.ExecuteContext(ctx)
}

// Execute runs the command line and exits with a non-zero status on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	c := newRootCommand(logger, os.Stdout)
	if err := c.execute(ctx, os.Args[1:]); err != nil {
		logger.Error(err)
		stop()
		os.Exit(1)
	}
}
