package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/duo-labs/narrow/internal/callgraph"
	"github.com/duo-labs/narrow/internal/patchminer"
	"github.com/duo-labs/narrow/internal/sbom"
)

var (
	watchEntry     string
	watchTargets   []string
	watchOSVIDs    []string
	watchInputFile string
	watchGraph     string
	watchEvents    string
)

// watchCmd re-runs the call graph (and, if --input-file is set, the SBOM
// narrowing pass) whenever the entry file's discovered import closure or
// the SBOM itself changes, pushing a refresh to any attached `narrow ui`
// client.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an entry file's import closure and re-run narrowing on change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchEntry == "" {
			return fmt.Errorf("--entry is required (entry file to watch)")
		}
		if watchGraph == "" {
			return fmt.Errorf("--graph is required (output graph.json path)")
		}
		if watchEvents == "" {
			watchEvents = filepath.Join(filepath.Dir(watchGraph), "events.json")
		}
		backtrack := viper.GetInt("module-backtracking")
		if backtrack <= 0 {
			backtrack = 2
		}
		targets, err := collectTargets(cmd.Context(), watchTargets, watchOSVIDs)
		if err != nil {
			return err
		}

		idTargets := map[string][]string{}
		if watchInputFile != "" && len(watchOSVIDs) > 0 {
			miner := patchminer.New()
			for _, id := range watchOSVIDs {
				names, err := miner.FindTargets(cmd.Context(), id)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "mining targets for %s: %v\n", id, err)
					continue
				}
				idTargets[id] = names
			}
		}

		build := func(ctx context.Context) (*callgraph.Builder, []string, error) {
			builder := callgraph.New(targets, backtrack)
			err := builder.BuildFromEntry(ctx, watchEntry)
			files := builder.Graph().Files()
			return builder, files, err
		}

		// narrowSBOM re-narrows --input-file against a fresh per-vulnerability
		// reachability check, one Builder run per mined vulnerability id.
		narrowSBOM := func(ctx context.Context) error {
			if watchInputFile == "" || len(idTargets) == 0 {
				return nil
			}
			raw, err := os.ReadFile(watchInputFile)
			if err != nil {
				return err
			}
			detected := make(map[string]bool, len(idTargets))
			for id, names := range idTargets {
				if len(names) == 0 {
					continue
				}
				b := callgraph.New(names, backtrack)
				if err := b.BuildFromEntry(ctx, watchEntry); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "rebuilding for %s: %v\n", id, err)
					continue
				}
				detected[id] = b.Detected()
			}
			narrowed, err := sbom.Narrow(raw, detected)
			if err != nil {
				return err
			}
			return os.WriteFile(watchInputFile, narrowed.Output, 0o644)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		watched := map[string]bool{}
		addWatch := func(path string) {
			if path == "" || watched[path] {
				return
			}
			if err := watcher.Add(path); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "watch", path, ":", err)
				return
			}
			watched[path] = true
		}
		addWatch(watchEntry)
		addWatch(watchInputFile)

		rebuild := func(changed []string) {
			files, err := doRebuild(build, watchGraph, watchEvents, changed)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "rebuild:", err)
			}
			if err := narrowSBOM(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "narrow sbom:", err)
			}
			for _, f := range files {
				addWatch(f)
			}
			wsBroadcast()
		}
		rebuild(nil)

		var mu sync.Mutex
		pending := map[string]struct{}{}
		var timer *time.Timer
		flush := func() {
			mu.Lock()
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			pending = map[string]struct{}{}
			mu.Unlock()
			rebuild(files)
		}

		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if isWatchedFile(ev.Name) || ev.Name == watchInputFile {
					mu.Lock()
					p := ev.Name
					if !filepath.IsAbs(p) {
						if a, err := filepath.Abs(p); err == nil {
							p = a
						}
					}
					pending[filepath.Clean(p)] = struct{}{}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(300*time.Millisecond, flush)
					mu.Unlock()
				}
			case err := <-watcher.Errors:
				fmt.Fprintln(cmd.ErrOrStderr(), "watch error:", err)
			}
		}
	},
}

func isWatchedFile(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".py")
}

// doRebuild runs one build pass, writes graph.json/events.json, and
// returns the discovered import closure so the caller can extend the
// fsnotify watch set.
func doRebuild(build func(context.Context) (*callgraph.Builder, []string, error), outGraph, outEvents string, changed []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	builder, files, err := build(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build error:", err)
	}
	if builder != nil {
		if err := writeJSONFile(outGraph, builder.Graph()); err != nil {
			fmt.Fprintln(os.Stderr, "write graph:", err)
		}
	}

	evt := struct {
		Timestamp int64    `json:"ts"`
		Changed   []string `json:"changed"`
		Files     []string `json:"files"`
		Detected  bool     `json:"detected"`
	}{Timestamp: time.Now().UnixMilli(), Changed: changed, Files: files}
	if builder != nil {
		evt.Detected = builder.Detected()
	}
	if err := writeJSONFile(outEvents, evt); err != nil {
		fmt.Fprintln(os.Stderr, "write events:", err)
	}
	return files, nil
}

func writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEntry, "entry", "", "entry file to watch")
	watchCmd.Flags().StringArrayVar(&watchTargets, "target", nil, "target function/method name to detect (repeatable)")
	watchCmd.Flags().StringArrayVar(&watchOSVIDs, "osv-id", nil, "vulnerability id to mine target names from (repeatable)")
	watchCmd.Flags().StringVar(&watchInputFile, "input-file", "", "SBOM path to re-narrow on change")
	watchCmd.Flags().StringVar(&watchGraph, "graph", "", "output graph.json path")
	watchCmd.Flags().StringVar(&watchEvents, "events", "", "output events.json path (default: sibling of --graph)")
}
