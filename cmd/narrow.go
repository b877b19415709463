package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duo-labs/narrow/internal/callgraph"
	"github.com/duo-labs/narrow/internal/patchminer"
	"github.com/duo-labs/narrow/internal/sbom"
)

var (
	narrowEntry     string
	narrowInputFile string
	narrowOut       string
)

// narrowCmd implements `narrow narrow`: for every vulnerability in
// --input-file, mines its patched function names, checks whether any is
// reachable from --entry, and writes the rewritten SBOM to --out/stdout.
var narrowCmd = &cobra.Command{
	Use:   "narrow",
	Short: "Narrow an SBOM's vulnerabilities by reachability from an entry file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if narrowEntry == "" {
			return fmt.Errorf("--entry is required (entry file to build the call graph from)")
		}
		if narrowInputFile == "" {
			return fmt.Errorf("--input-file is required (SBOM path)")
		}

		raw, err := os.ReadFile(narrowInputFile)
		if err != nil {
			return fmt.Errorf("read --input-file: %w", err)
		}

		format, err := sbom.ValidateAndDetectFormat(raw)
		if err != nil {
			return err
		}

		var doc sbom.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode sbom: %w", err)
		}

		ids := vulnIDs(format, doc)
		backtrack := viper.GetInt("module-backtracking")
		if backtrack <= 0 {
			backtrack = 2
		}

		miner := patchminer.New()
		detected := make(map[string]bool, len(ids))
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		for _, id := range ids {
			targets, err := miner.FindTargets(ctx, id)
			if err != nil || len(targets) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", id, err)
				continue
			}
			builder := callgraph.New(targets, backtrack)
			if err := builder.BuildFromEntry(ctx, narrowEntry); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", id, err)
				continue
			}
			detected[id] = builder.Detected()
		}

		narrowed, err := sbom.Narrow(raw, detected)
		if err != nil {
			return err
		}

		if narrowOut == "" {
			fmt.Fprintln(cmd.OutOrStdout(), string(narrowed.Output))
			return nil
		}
		return os.WriteFile(narrowOut, narrowed.Output, 0o644)
	},
}

// vulnIDs extracts the per-document vulnerability identifiers the Patch-
// Target Miner keys on: top-level ids for the CycloneDX shape, per-
// component CVEs for the krefst shape.
func vulnIDs(format sbom.Format, doc sbom.Document) []string {
	var ids []string
	switch format {
	case sbom.FormatCycloneDX:
		for _, v := range doc.Vulnerabilities {
			ids = append(ids, v.ID)
		}
	case sbom.FormatKrefst:
		for _, c := range doc.Components {
			for _, v := range c.Vulnerabilities {
				ids = append(ids, v.CVE)
			}
		}
	}
	return ids
}

func init() {
	rootCmd.AddCommand(narrowCmd)
	narrowCmd.Flags().StringVar(&narrowEntry, "entry", "", "entry file to build the call graph from")
	narrowCmd.Flags().StringVar(&narrowInputFile, "input-file", "", "SBOM path to narrow")
	narrowCmd.Flags().StringVar(&narrowOut, "out", "", "write narrowed SBOM to this path instead of stdout")
}
