package main

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fleetroute/internal/bench"
	"fleetroute/internal/instances"
)

func newBenchCmd() *cobra.Command {
	var (
		search     searchFlags
		refs       []string
		algorithms []string
		runs       int
		parallel   int
		seed       int64
		refCmd     string
		refArgs    []string
		refTimeout time.Duration
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run every algorithm on every instance and compare distances",
		Example: `  cvrp bench --instance builtin:square4 --instance builtin:six-two --runs 5 --parallel 4
  cvrp bench --instance ./depots/north.yaml --algorithms nearest,tabu,reference --reference-cmd ./ortools-solve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var named []instances.Named
			for _, ref := range refs {
				n, err := instances.Resolve(ref)
				if err != nil {
					return err
				}
				named = append(named, n)
			}
			if len(named) == 0 {
				for _, name := range instances.BuiltinNames() {
					n, _ := instances.Builtin{}.Load(name)
					named = append(named, n)
				}
			}
			p, err := search.params(cmd)
			if err != nil {
				return err
			}
			cfg := bench.Config{
				Instances:  named,
				Algorithms: algorithms,
				Runs:       runs,
				Parallel:   parallel,
				Seed:       seed,
				Params:     p,
				Log:        logrus.StandardLogger(),
			}
			if refCmd != "" {
				cfg.Reference = bench.ExecReference{Command: refCmd, Args: refArgs, Timeout: refTimeout}
			}

			records, err := bench.Sweep(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"records": records, "summary": bench.Summarize(records)})
			}
			return bench.WriteTable(cmd.OutOrStdout(), records)
		},
	}
	fs := cmd.Flags()
	fs.StringArrayVar(&refs, "instance", nil, "Instance file or builtin:<name> (repeatable; default all builtins)")
	fs.StringSliceVar(&algorithms, "algorithms", []string{"nearest", "random", "twoopt", "twoopt-random", "tabu"}, "Comma-separated algorithms, including reference")
	fs.IntVar(&runs, "runs", 1, "Runs per (instance, algorithm)")
	fs.IntVar(&parallel, "parallel", 1, "Runs executed at once")
	fs.Int64Var(&seed, "seed", 0, "Sweep seed; per-run seeds derive from it (0 picks one from the clock)")
	fs.StringVar(&refCmd, "reference-cmd", "", "External solver reading instance JSON on stdin")
	fs.StringArrayVar(&refArgs, "reference-arg", nil, "Argument for the reference command (repeatable)")
	fs.DurationVar(&refTimeout, "reference-timeout", 0, "Timeout per reference solve, e.g. 30s")
	fs.BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	search.register(cmd)
	return cmd
}
