// Package main is the tamarack CLI: it reads a problem description from a
// YAML file and runs the MINLP solve pipeline on it.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tamarack-opt/tamarack/logger"
)

var rootCmd = &cobra.Command{
	Use:   "tamarack",
	Short: "tamarack solves mixed-integer nonlinear programs",
	Long: `tamarack solves mixed-integer nonlinear programs (MINLP): it solves a
continuous relaxation (optionally racing randomized restarts across a worker
pool), derives an integer-feasible incumbent with a rounding heuristic and
closes the gap by branch and bound.`,
}

var fVerbosity string

func init() {
	rootCmd.PersistentFlags().StringVarP(&fVerbosity, "verbosity", "v", "info", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentPreRunE = setVerbosity
}

func setVerbosity(cmd *cobra.Command, args []string) error {
	switch fVerbosity {
	case "debug", "info", "warn", "error":
		lvl, err := zerolog.ParseLevel(fVerbosity)
		if err != nil {
			return err
		}
		logger.Set(logger.Logger().Level(lvl))
	case "off":
		logger.Disable()
	default:
		return fmt.Errorf("unknown verbosity %q", fVerbosity)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
