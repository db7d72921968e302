package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fleetroute/internal/config"
	"fleetroute/internal/instances"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/runs"
)

// searchFlags are shared by solve and bench. Only flags the user set
// override the defaults or the --config file.
type searchFlags struct {
	configPath   string
	iterations   int
	timeBudget   time.Duration
	tenure       int
	stagnation   int
	twoOptPolicy string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML file with search defaults")
	fs.IntVar(&f.iterations, "iterations", 0, "Tabu iteration budget")
	fs.DurationVar(&f.timeBudget, "time-budget", 0, "Wall-clock budget per search, e.g. 2s")
	fs.IntVar(&f.tenure, "tenure", 0, "Tabu tenure in iterations")
	fs.IntVar(&f.stagnation, "stagnation", 0, "Stop after this many consecutive tabu steps with no admissible move (0 disables)")
	fs.StringVar(&f.twoOptPolicy, "two-opt-policy", "", "2-opt policy: sampled or full")
}

func (f *searchFlags) params(cmd *cobra.Command) (opt.Params, error) {
	p := opt.DefaultParams()
	if f.configPath != "" {
		var err error
		if p, err = config.LoadSearch(f.configPath, p); err != nil {
			return opt.Params{}, err
		}
	}
	fs := cmd.Flags()
	if fs.Changed("iterations") {
		p.Tabu.Iterations = f.iterations
	}
	if fs.Changed("time-budget") {
		p.Tabu.TimeBudget = f.timeBudget
		p.TwoOpt.TimeBudget = f.timeBudget
	}
	if fs.Changed("tenure") {
		p.Tabu.Tenure = f.tenure
	}
	if fs.Changed("stagnation") {
		p.Tabu.StagnationLimit = f.stagnation
	}
	if fs.Changed("two-opt-policy") {
		pol, err := opt.ParseTwoOptPolicy(f.twoOptPolicy)
		if err != nil {
			return opt.Params{}, err
		}
		p.TwoOpt.Policy = pol
	}
	return p, p.Validate()
}

func newSolveCmd() *cobra.Command {
	var (
		search    searchFlags
		ref       string
		algorithm string
		seed      int64
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve one instance and print its routes",
		Example: `  cvrp solve --instance builtin:six-two --algorithm tabu --seed 7
  cvrp solve --instance ./depots/north.yaml --time-budget 2s --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			named, err := instances.Resolve(ref)
			if err != nil {
				return err
			}
			p, err := search.params(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("algorithm") {
				if p.Algorithm, err = opt.ParseAlgorithm(algorithm); err != nil {
					return err
				}
			}
			p.Seed = seed

			logrus.WithFields(logrus.Fields{"instance": named.Name, "algorithm": p.Algorithm}).Info("solving")
			s, m, err := opt.Solve(named.Instance, p)
			if err != nil {
				return err
			}
			if err := named.Instance.Validate(s); err != nil {
				return err
			}
			routes := runs.RoutesOut(named.Instance, s)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"instance": named.Name,
					"distance": s.Cost,
					"routes":   routes,
					"metrics":  m,
				})
			}
			return printSolution(cmd.OutOrStdout(), named.Name, s.Cost, routes, m)
		},
	}
	cmd.Flags().StringVar(&ref, "instance", "", "Instance file or builtin:<name>")
	cmd.Flags().StringVar(&algorithm, "algorithm", string(opt.AlgoTabu), "Pipeline: nearest, random, twoopt, twoopt-random, tabu")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	search.register(cmd)
	_ = cmd.MarkFlagRequired("instance")
	return cmd
}

func printSolution(w io.Writer, name string, cost float64, routes []model.RouteOut, m opt.Metrics) error {
	if _, err := fmt.Fprintf(w, "instance %s  algorithm %s  seed %d\n", name, m.Algorithm, m.Seed); err != nil {
		return err
	}
	for _, rt := range routes {
		fmt.Fprintf(w, "vehicle %d: %v  load %d/%s  distance %.3f\n",
			rt.Vehicle, rt.Stops, rt.Load, capacityString(rt.Capacity), rt.Distance)
	}
	fmt.Fprintf(w, "total distance %.3f  initial %.3f  iterations %d  time %s",
		cost, m.InitialCost, m.Iterations, m.Duration.Round(time.Microsecond))
	if m.Stopped != "" {
		fmt.Fprintf(w, "  stopped %s", m.Stopped)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func capacityString(c int) string {
	if c == opt.Unlimited {
		return "inf"
	}
	return fmt.Sprint(c)
}
