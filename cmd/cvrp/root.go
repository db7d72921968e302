package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fleetroute/internal/buildinfo"
)

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "cvrp",
		Short:         "Heuristic solver for capacitated vehicle routing",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(newSolveCmd(), newBenchCmd(), newInstancesCmd())
	return root
}
