package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duo-labs/narrow/internal/callgraph"
	"github.com/duo-labs/narrow/internal/narrorerr"
	"github.com/duo-labs/narrow/internal/patchminer"
)

var (
	runTargets       []string
	runOSVIDs        []string
	runPrintCFG      bool
	runMaxPrintDepth int
	runPrintAllPaths bool
	runInputFile     string
	runGraphOut      string
)

// runCmd implements `narrow run <entry-file>`: builds the call graph
// rooted at entry-file and reports whether any target name is reachable.
var runCmd = &cobra.Command{
	Use:   "run <entry-file>",
	Short: "Build a call graph from an entry file and check target reachability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryFile := args[0]
		backtrack := viper.GetInt("module-backtracking")
		if backtrack <= 0 {
			backtrack = 2
		}

		targets, err := collectTargets(cmd.Context(), runTargets, runOSVIDs)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			os.Exit(2)
		}
		if len(targets) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), narrorerr.ErrTargetListEmpty)
			os.Exit(1)
		}

		builder := callgraph.New(targets, backtrack)

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		if err := builder.BuildFromEntry(ctx, entryFile); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			if errors.Is(err, narrorerr.ErrEntryNotFound) || errors.Is(err, narrorerr.ErrDependencyExtractorFailed) {
				os.Exit(2)
			}
			os.Exit(1)
		}

		if runPrintCFG {
			if err := printGraph(builder, runGraphOut); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "print graph:", err)
			}
		}

		if !builder.Detected() {
			fmt.Fprintln(cmd.OutOrStdout(), "no target reachable from", entryFile)
			os.Exit(1)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "detected:", builder.DetectedName())

		if runPrintAllPaths {
			printPaths(cmd, builder)
		}

		return nil
	},
}

// collectTargets merges explicit --target names with names mined from
// --osv-id vulnerability identifiers via the Patch-Target Miner.
func collectTargets(ctx context.Context, explicit, osvIDs []string) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, t := range explicit {
		add(t)
	}
	if len(osvIDs) > 0 {
		miner := patchminer.New()
		for _, id := range osvIDs {
			names, err := miner.FindTargets(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("mining targets for %s: %w", id, err)
			}
			for _, n := range names {
				add(n)
			}
		}
	}
	return out, nil
}

func printGraph(builder *callgraph.Builder, out string) error {
	payload, err := json.MarshalIndent(builder.Graph(), "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Println(string(payload))
		return nil
	}
	return os.WriteFile(out, payload, 0o644)
}

func printPaths(cmd *cobra.Command, builder *callgraph.Builder) {
	g := builder.Graph()
	for _, key := range g.ResolvedKeysFor(builder.DetectedName()) {
		for _, path := range g.Paths(key, runMaxPrintDepth) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(path, " -> "))
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVar(&runTargets, "target", nil, "target function/method name to detect (repeatable)")
	runCmd.Flags().StringArrayVar(&runOSVIDs, "osv-id", nil, "vulnerability id to mine target names from (repeatable)")
	runCmd.Flags().BoolVar(&runPrintCFG, "print-cfg", false, "print the resulting call graph as JSON")
	runCmd.Flags().IntVar(&runMaxPrintDepth, "max-print-depth", 0, "maximum path depth for --print-all-paths (0 = unbounded)")
	runCmd.Flags().BoolVar(&runPrintAllPaths, "print-all-paths", false, "print every root-to-target call chain once a target is detected")
	runCmd.Flags().StringVar(&runInputFile, "input-file", "", "SBOM path (accepted, but not read by `narrow run`)")
	runCmd.Flags().StringVar(&runGraphOut, "graph-out", "", "write --print-cfg output to this path instead of stdout")
}
