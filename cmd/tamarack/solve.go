package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamarack-opt/tamarack/minlp"
	"github.com/tamarack-opt/tamarack/model"
)

// solveCmd represents the solve command
var solveCmd = &cobra.Command{
	Use:   "solve [problem.yaml]",
	Short: "solves the problem described by the given YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  cmdSolve,
}

var (
	fWorkers    int
	fRestarts   int
	fRetries    int
	fTimeBudget time.Duration
	fHeuristic  bool
	fSeed       uint64
	fProfile    string
)

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().IntVar(&fWorkers, "workers", 0, "relaxation worker-pool size (0 = all CPUs, 1 = serial)")
	solveCmd.Flags().IntVar(&fRestarts, "restarts", 0, "minimum number of relaxation restart attempts")
	solveCmd.Flags().IntVar(&fRetries, "retries", 3, "serial relaxation retry budget")
	solveCmd.Flags().DurationVar(&fTimeBudget, "time-budget", 0, "global time budget (0 = unlimited)")
	solveCmd.Flags().BoolVar(&fHeuristic, "heuristic", true, "run the rounding heuristic before the exact search")
	solveCmd.Flags().Uint64Var(&fSeed, "seed", 0, "seed for the restart random stream")
	solveCmd.Flags().StringVar(&fProfile, "profile", "", "write a pprof solve profile to this path")
}

func cmdSolve(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := model.ParseYAML(f)
	if err != nil {
		return err
	}

	opts := []minlp.Option{
		minlp.WithRetries(fRetries),
		minlp.WithSeed(fSeed),
	}
	if fWorkers > 0 {
		opts = append(opts, minlp.WithWorkers(fWorkers))
	}
	if fRestarts > 0 {
		opts = append(opts, minlp.WithMinRestarts(fRestarts))
	}
	if fTimeBudget > 0 {
		opts = append(opts, minlp.WithTimeBudget(fTimeBudget))
	}
	if !fHeuristic {
		opts = append(opts, minlp.WithoutHeuristic())
	}
	if fProfile != "" {
		opts = append(opts, minlp.WithProfile(fProfile))
	}

	res, err := minlp.Solve(cmd.Context(), p, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status:     %s\n", res.Status)
	if !math.IsNaN(res.Objective) {
		fmt.Fprintf(out, "objective:  %g\n", res.Objective)
		fmt.Fprintf(out, "bound:      %g\n", res.Bound)
		fmt.Fprintf(out, "gap:        %g\n", res.Gap)
	}
	fmt.Fprintf(out, "solve time: %s (relaxation %s)\n", res.SolveTime, res.RelaxTime)
	fmt.Fprintf(out, "incumbents: %d\n", res.NbSolutions)
	if res.Counters.Nodes > 0 {
		fmt.Fprintf(out, "search:     %d nodes, %d cuts, %d branches, depth %d\n",
			res.Counters.Nodes, res.Counters.Cuts, res.Counters.Branches, res.Counters.MaxDepth)
	}
	for i, v := range res.X {
		name := fmt.Sprintf("x%d", i)
		if i < len(p.Names) && p.Names[i] != "" {
			name = p.Names[i]
		}
		fmt.Fprintf(out, "  %s = %g\n", name, v)
	}
	return nil
}
