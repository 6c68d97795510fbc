package main

import (
	"fmt"

	"github.com/brickingsoft/dio/pkg/driver"
	"github.com/brickingsoft/dio/pkg/kernel"
	"github.com/spf13/cobra"
)

func newProbeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the kernel version and the backend auto would pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := rootOpts.logger(cmd.ErrOrStderr())
			out := cmd.OutOrStdout()
			if v, err := kernel.Get(); err == nil {
				fmt.Fprintf(out, "kernel:   %s\n", v)
			} else {
				logger.Warn().Err(err).Msg("kernel version unavailable")
			}
			uring := "available"
			if err := driver.ProbeIOURing(2); err != nil {
				uring = "unavailable (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "io_uring: %s\n", uring)
			fmt.Fprintf(out, "auto:     %s\n", driver.Detect(logger))
			return nil
		},
	}
}
