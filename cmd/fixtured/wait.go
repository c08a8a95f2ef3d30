package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/padaiyal/browserfixture/download"
)

func getWaitCmd(logger *logrus.Logger, stdout io.Writer) *cobra.Command {
	var (
		timeout        time.Duration
		poll           time.Duration
		stable         int
		markers        []string
		browserMarkers bool
	)
	waitCmd := &cobra.Command{
		Use:   "wait path...",
		Short: "Wait for downloaded files to appear and stop growing",
		Long: `Wait for downloaded files to appear and stop growing.

All paths are waited for concurrently. The first file that does not settle
within the timeout fails the command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]download.WaitSpec, 0, len(args))
			for _, path := range args {
				spec := download.WaitSpec{
					TargetPath:         path,
					Timeout:            timeout,
					PollInterval:       poll,
					StabilityChecks:    stable,
					InProgressSuffixes: markers,
				}
				if browserMarkers {
					spec = spec.WithBrowserMarkers()
				}
				if err := spec.Validate(); err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			waiter := download.NewWaiter(download.WithLogger(logger))
			observations, err := download.AwaitAll(cmd.Context(), waiter, specs...)
			if err != nil {
				return err
			}
			for i, obs := range observations {
				fmt.Fprintf(stdout, "%s\t%d\t%s\n", specs[i].TargetPath, obs.Size, humanize.Bytes(uint64(obs.Size)))
			}
			return nil
		},
	}

	flags := waitCmd.Flags()
	flags.DurationVarP(&timeout, "timeout", "t", download.DefaultTimeout, "give up after this long")
	flags.DurationVar(&poll, "poll", download.DefaultPollInterval, "interval between checks")
	flags.IntVar(&stable, "stable", download.DefaultStabilityChecks, "consecutive polls with an unchanged size required")
	flags.StringSliceVar(&markers, "marker", nil, "suffix of an in-progress marker file, e.g. .crdownload")
	flags.BoolVar(&browserMarkers, "browser-markers", false, "also watch Chrome and Firefox in-progress markers")
	return waitCmd
}
