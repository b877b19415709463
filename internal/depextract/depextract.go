// Package depextract is the Dependency-extractor collaborator: it turns
// an entry file into the external dependency map the Import Resolver
// consumes (spec.md §6, "Dependency-extractor collaborator"). It is
// deliberately a thin interface over an external process so tests can
// substitute a static map instead of shelling out (REDESIGN FLAGS §9).
package depextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/duo-labs/narrow/internal/narrorerr"
	"github.com/duo-labs/narrow/internal/resolve"
)

// Extractor returns the dependency map rooted at entryFile: a JSON map
// `{ dotted-name -> { path: string|null, imports: [dotted-name] } }`,
// decoded into resolve.DepEntry values.
type Extractor interface {
	Extract(ctx context.Context, entryFile string) (map[string]resolve.DepEntry, error)
}

// wireEntry mirrors the collaborator's wire shape: path is nullable.
type wireEntry struct {
	Path    *string  `json:"path"`
	Imports []string `json:"imports"`
}

// SubprocessExtractor shells out to an external dependency-extraction
// binary (default: pydeps) and parses its JSON stdout, mirroring cfg.py's
// _resolve_module_imports.
type SubprocessExtractor struct {
	// Binary is the executable to invoke. Defaults to "pydeps".
	Binary string
	// Args are extra arguments appended after the entry file, mirroring
	// the original's "--show-deps --pylib --no-show --max-bacon 0
	// --no-dot --include-missing" invocation. If nil, that default set
	// is used.
	Args []string
}

func (s SubprocessExtractor) binary() string {
	if s.Binary == "" {
		return "pydeps"
	}
	return s.Binary
}

func (s SubprocessExtractor) args() []string {
	if s.Args != nil {
		return s.Args
	}
	return []string{"--show-deps", "--pylib", "--no-show", "--max-bacon", "0", "--no-dot", "--include-missing"}
}

// Extract runs the subprocess and decodes its stdout.
func (s SubprocessExtractor) Extract(ctx context.Context, entryFile string) (map[string]resolve.DepEntry, error) {
	args := append([]string{entryFile}, s.args()...)
	cmd := exec.CommandContext(ctx, s.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", narrorerr.ErrDependencyExtractorFailed, s.binary(), err, stderr.String())
	}
	return decode(stdout.Bytes())
}

// StaticExtractor is a test-only Extractor wrapping an already-built map,
// so callgraph/resolve tests never need a real pydeps binary on PATH.
type StaticExtractor struct {
	Deps map[string]resolve.DepEntry
	Err  error
}

func (s StaticExtractor) Extract(ctx context.Context, entryFile string) (map[string]resolve.DepEntry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Deps, nil
}

func decode(raw []byte) (map[string]resolve.DepEntry, error) {
	var wire map[string]wireEntry
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", narrorerr.ErrDependencyExtractorFailed, err)
	}
	out := make(map[string]resolve.DepEntry, len(wire))
	for name, e := range wire {
		entry := resolve.DepEntry{Imports: e.Imports}
		if e.Path != nil {
			entry.Path = *e.Path
		}
		out[name] = entry
	}
	return out, nil
}
