package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fleetroute/internal/instances"
)

func newInstancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List the built-in instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLOCATIONS\tVEHICLES\tDEMAND\tSYMMETRIC")
			for _, name := range instances.BuiltinNames() {
				n, err := instances.Builtin{}.Load(name)
				if err != nil {
					return err
				}
				in := n.Instance
				fmt.Fprintf(tw, "%s%s\t%d\t%d\t%d\t%t\n",
					instances.BuiltinPrefix, n.Name, in.NumLocations(), in.NumVehicles(), in.TotalDemand(), in.Symmetric())
			}
			return tw.Flush()
		},
	}
}
