package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"pdptw/internal/config"
	"pdptw/internal/integrations"
	"pdptw/internal/integrations/lilim"
	"pdptw/internal/model"
	"pdptw/internal/opt"
	"pdptw/internal/report"
)

var (
	configPath string // YAML run file
	flagRun    = config.Default()
)

// solveCmd solves one instance file and writes the report files
var solveCmd = &cobra.Command{
	Use:   "solve [instance-file]",
	Short: "Solve a Li & Lim instance",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd.Flags(), args)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		_, err = solve(ctx, cfg, cmd.OutOrStdout())
		return err
	},
}

// resolveConfig loads the run file, if any, and overlays explicitly set flags.
func resolveConfig(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	overlay := map[string]func(){
		"fleet":         func() { cfg.Instance.Fleet = flagRun.Instance.Fleet },
		"vehicles":      func() { cfg.Instance.Vehicles = flagRun.Instance.Vehicles },
		"capacity":      func() { cfg.Instance.Capacity = flagRun.Instance.Capacity },
		"out":           func() { cfg.Output.Dir = flagRun.Output.Dir },
		"generation":    func() { cfg.Algorithms.Generation = flagRun.Algorithms.Generation },
		"removal":       func() { cfg.Algorithms.Removal = flagRun.Algorithms.Removal },
		"insertion":     func() { cfg.Algorithms.Insertion = flagRun.Algorithms.Insertion },
		"optimization":  func() { cfg.Algorithms.Optimization = flagRun.Algorithms.Optimization },
		"objective":     func() { cfg.Algorithms.Objective = flagRun.Algorithms.Objective },
		"scheduler":     func() { cfg.Algorithms.Scheduler = flagRun.Algorithms.Scheduler },
		"decomposition": func() { cfg.Algorithms.Decomposition = flagRun.Algorithms.Decomposition },
		"iterations":    func() { cfg.Search.Iterations = flagRun.Search.Iterations },
		"time-budget":   func() { cfg.Search.TimeBudgetMs = flagRun.Search.TimeBudgetMs },
		"seed":          func() { cfg.Search.Seed = flagRun.Search.Seed },
		"tenure":        func() { cfg.Search.Tenure = flagRun.Search.Tenure },
		"neighbors":     func() { cfg.Search.Neighbors = flagRun.Search.Neighbors },
		"workers":       func() { cfg.Search.Workers = flagRun.Search.Workers },
		"subproblems":   func() { cfg.Search.SubProblems = flagRun.Search.SubProblems },
		"replay":        func() { cfg.Replay.Enabled = flagRun.Replay.Enabled },
		"replay-step":   func() { cfg.Replay.Step = flagRun.Replay.Step },
	}
	flags.Visit(func(f *pflag.Flag) {
		if set, ok := overlay[f.Name]; ok {
			set()
		}
	})
	if len(args) == 1 {
		cfg.Instance.Path = args[0]
	}
	if cfg.Instance.Path == "" {
		return nil, errors.New("no instance file: pass it as an argument or set instance.path")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// solve runs one configured solve and writes its report. The result is
// returned even when ctx was cancelled mid-search.
func solve(ctx context.Context, cfg *config.Config, out io.Writer) (*opt.Result, error) {
	in, err := integrations.Load(lilim.Source{Path: cfg.Instance.Path}, integrations.FleetOverride{
		Path:     cfg.Instance.Fleet,
		Vehicles: cfg.Instance.Vehicles,
		Capacity: cfg.Instance.Capacity,
	})
	if err != nil {
		return nil, err
	}
	algs, err := opt.Build(cfg.Algorithms, cfg.Search)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"instance": in.Name,
		"requests": in.RequestCount(),
		"vehicles": len(in.Fleet),
	}).Info("solving")

	res, err := opt.NewSolver(algs).Solve(ctx, in, nil)
	if res == nil {
		return nil, err
	}
	if err != nil {
		logrus.WithError(err).Warn("search interrupted, reporting best solution found")
	}
	if verr := res.Solution.Validate(); verr != nil {
		logrus.WithError(verr).Error("solution violates constraints")
	}

	if cfg.Output.Dir != "" {
		w := report.Writer{Dir: cfg.Output.Dir}
		files, werr := w.Write(report.Run{
			Instance:   in.Name,
			Algorithms: cfg.Algorithms,
			Search:     cfg.Search,
			Solution:   res.Solution,
			Unassigned: res.UnassignedIDs(),
		})
		for _, f := range files {
			logrus.WithField("file", f).Info("report written")
		}
		if werr != nil {
			logrus.WithError(werr).Warn("report incomplete")
		}
	}

	fmt.Fprintf(out, "instance %s: objective %.3f, vehicles %d, unassigned %d, iterations %d, %s\n",
		in.Name, res.Objective, res.Solution.UsedVehicles(), res.Unassigned.Len(), res.Iterations(), res.Duration.Round(time.Millisecond))

	if cfg.Replay.Enabled {
		// Replay consumes the routes, so it works on a copy.
		replayed := res.Solution.Clone()
		end, rerr := opt.Replay(replayed, cfg.Replay.Step, cfg.Replay.Horizon, func(t float64, finished []model.Handle) {
			logrus.WithFields(logrus.Fields{"time": t, "finished": len(finished)}).Debug("replay step")
		})
		if rerr != nil {
			return res, rerr
		}
		fmt.Fprintf(out, "replay finished at time %.1f\n", end)
	}
	return res, err
}

func init() {
	f := solveCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML run configuration file")
	f.StringVar(&flagRun.Instance.Fleet, "fleet", "", "YAML fleet file overriding the instance fleet")
	f.IntVar(&flagRun.Instance.Vehicles, "vehicles", 0, "Number of vehicles (0 keeps the instance header)")
	f.IntVar(&flagRun.Instance.Capacity, "capacity", 0, "Vehicle capacity (0 keeps the instance header)")
	f.StringVar(&flagRun.Output.Dir, "out", "", "Directory for the report files (empty disables them)")

	f.StringVar(&flagRun.Algorithms.Generation, "generation", flagRun.Algorithms.Generation, "Generation algorithm (greedy, sweep, sector)")
	f.StringVar(&flagRun.Algorithms.Removal, "removal", flagRun.Algorithms.Removal, "Removal algorithm (random, worst, shaw)")
	f.StringVar(&flagRun.Algorithms.Insertion, "insertion", flagRun.Algorithms.Insertion, "Insertion algorithm (greedy, regret)")
	f.StringVar(&flagRun.Algorithms.Optimization, "optimization", flagRun.Algorithms.Optimization, "Optimization algorithm (tabu)")
	f.StringVar(&flagRun.Algorithms.Objective, "objective", flagRun.Algorithms.Objective, "Objective (total_distance, total_vehicles)")
	f.StringVar(&flagRun.Algorithms.Scheduler, "scheduler", flagRun.Algorithms.Scheduler, "Scheduler (drive_first)")
	f.StringVar(&flagRun.Algorithms.Decomposition, "decomposition", flagRun.Algorithms.Decomposition, "Decomposition (none, sweep)")

	f.IntVar(&flagRun.Search.Iterations, "iterations", flagRun.Search.Iterations, "Search iterations")
	f.IntVar(&flagRun.Search.TimeBudgetMs, "time-budget", 0, "Search time budget in ms (0 for none)")
	f.Int64Var(&flagRun.Search.Seed, "seed", 0, "Random seed (0 seeds from the clock)")
	f.IntVar(&flagRun.Search.Tenure, "tenure", flagRun.Search.Tenure, "Tabu tenure in iterations")
	f.IntVar(&flagRun.Search.Neighbors, "neighbors", flagRun.Search.Neighbors, "Neighbour solutions per iteration")
	f.IntVar(&flagRun.Search.Workers, "workers", flagRun.Search.Workers, "Parallel workers")
	f.IntVar(&flagRun.Search.SubProblems, "subproblems", flagRun.Search.SubProblems, "Sub-problems for sweep decomposition")

	f.BoolVar(&flagRun.Replay.Enabled, "replay", false, "Replay the plan after solving")
	f.Float64Var(&flagRun.Replay.Step, "replay-step", flagRun.Replay.Step, "Replay clock step")
}
