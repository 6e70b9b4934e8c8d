package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pdptw/internal/buildinfo"
	"pdptw/internal/opt"
)

// algorithmsCmd lists the strategy names accepted per family
var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List available strategies",
	Run: func(cmd *cobra.Command, args []string) {
		families := []struct {
			name  string
			valid map[string]bool
			def   string
		}{
			{"generation", opt.ValidGenerations, opt.DefaultAlgorithms.Generation},
			{"removal", opt.ValidRemovals, opt.DefaultAlgorithms.Removal},
			{"insertion", opt.ValidInsertions, opt.DefaultAlgorithms.Insertion},
			{"optimization", opt.ValidOptimizations, opt.DefaultAlgorithms.Optimization},
			{"objective", opt.ValidObjectives, opt.DefaultAlgorithms.Objective},
			{"scheduler", opt.ValidSchedulers, opt.DefaultAlgorithms.Scheduler},
			{"decomposition", opt.ValidDecompositions, opt.DefaultAlgorithms.Decomposition},
		}
		for _, f := range families {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s (default %s)\n", f.name, strings.Join(opt.Names(f.valid), ", "), f.def)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
	},
}
