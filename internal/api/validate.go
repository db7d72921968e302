package api

import (
	"fmt"

	"fleetroute/internal/bench"
	"fleetroute/internal/model"
	"fleetroute/internal/opt"
)

func validateRunRequest(req *model.RunRequest) error {
	if req.Instance == nil && req.Builtin == "" {
		return fmt.Errorf("instance or builtin is required")
	}
	if req.Instance != nil && req.Builtin != "" {
		return fmt.Errorf("give instance or builtin, not both")
	}
	if req.Algorithm != "" {
		if _, err := opt.ParseAlgorithm(req.Algorithm); err != nil {
			return err
		}
	}
	if req.TwoOptPolicy != "" {
		if _, err := opt.ParseTwoOptPolicy(req.TwoOptPolicy); err != nil {
			return err
		}
	}
	if req.Iterations < 0 {
		return fmt.Errorf("iterations must be >= 0")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.Tenure < 0 {
		return fmt.Errorf("tenure must be >= 0")
	}
	if req.StagnationLimit != nil && *req.StagnationLimit < 0 {
		return fmt.Errorf("stagnationLimit must be >= 0")
	}
	if req.TwoOptIterations < 0 {
		return fmt.Errorf("twoOptIterations must be >= 0")
	}
	return nil
}

func validateBenchmarkRequest(req *model.BenchmarkRequest) error {
	if len(req.Builtins) == 0 && len(req.Instances) == 0 {
		return fmt.Errorf("builtins or instances is required")
	}
	for _, a := range req.Algorithms {
		if a == bench.AlgoReference {
			continue
		}
		if _, err := opt.ParseAlgorithm(a); err != nil {
			return err
		}
	}
	if req.Runs < 0 {
		return fmt.Errorf("runs must be >= 0")
	}
	if req.Iterations < 0 {
		return fmt.Errorf("iterations must be >= 0")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	return nil
}
