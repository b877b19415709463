package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_QualifiedLookup(t *testing.T) {
	deps := map[string]DepEntry{
		"pkg.mod": {Path: "/src/pkg/mod.py"},
	}
	r := New(deps, 2)
	got := r.Resolve("mod", "/src/entry.py", "pkg", 0)
	if len(got) != 1 || got[0] != "/src/pkg/mod.py" {
		t.Fatalf("expected qualified lookup to resolve, got %v", got)
	}
}

func TestResolve_BareLookup(t *testing.T) {
	deps := map[string]DepEntry{
		"os": {Path: "/usr/lib/python/os.py"},
	}
	r := New(deps, 2)
	got := r.Resolve("os", "/src/entry.py", "", 0)
	if len(got) != 1 || got[0] != "/usr/lib/python/os.py" {
		t.Fatalf("expected bare lookup to resolve, got %v", got)
	}
}

func TestResolve_ModuleOnlyLookup(t *testing.T) {
	deps := map[string]DepEntry{
		"pkg": {Path: "/src/pkg/__init__.py"},
	}
	r := New(deps, 2)
	got := r.Resolve("missing_name", "/src/entry.py", "pkg", 0)
	if len(got) != 1 || got[0] != "/src/pkg/__init__.py" {
		t.Fatalf("expected module-only lookup to resolve, got %v", got)
	}
}

func TestResolve_RelativeLevel1(t *testing.T) {
	deps := map[string]DepEntry{
		"pkg.entry": {Path: "/src/pkg/entry.py", Imports: []string{"pkg.sibling"}},
		"pkg.sibling": {Path: "/src/pkg/sibling.py"},
	}
	r := New(deps, 2)
	got := r.Resolve("helper", "/src/pkg/entry.py", "sibling", 1)
	if len(got) != 1 || got[0] != "/src/pkg/sibling.py" {
		t.Fatalf("expected relative-level-1 lookup to resolve, got %v", got)
	}
}

func TestResolve_AbsoluteImportSkipsRelativeLevel1Step(t *testing.T) {
	currentFile := "/src/pkg/entry.py"
	deps := map[string]DepEntry{
		"pkg.entry":          {Path: currentFile, Imports: []string{"vendor.pkg.sibling"}},
		"vendor.pkg.sibling": {Path: "/wrong/sibling.py"},
		"pkg.sibling":        {Path: "/src/pkg/sibling.py"},
	}
	r := New(deps, 2)
	// "vendor.pkg.sibling" is one of currentFile's imports and ends with the
	// module "pkg.sibling" being resolved here, so the level-1 suffix match
	// would wrongly fire if it ran for a level-0 (absolute) import.
	got := r.Resolve("x", currentFile, "pkg.sibling", 0)
	if len(got) != 1 || got[0] != "/src/pkg/sibling.py" {
		t.Fatalf("expected level-0 import to resolve via the module-only lookup, not the loose relative-level-1 suffix match, got %v", got)
	}
}

func TestResolve_FilesystemWalkFallback(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "mypkg")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "target.py"), []byte("def target(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	entry := filepath.Join(root, "app", "sub", "entry.py")
	if err := os.MkdirAll(filepath.Dir(entry), 0o755); err != nil {
		t.Fatal(err)
	}
	r := New(map[string]DepEntry{}, 2)
	got := r.Resolve("target", entry, "mypkg", 0)
	if len(got) != 1 {
		t.Fatalf("expected filesystem fallback to find one candidate, got %v", got)
	}
}

func TestResolve_NoCandidatesReturnsEmpty(t *testing.T) {
	r := New(map[string]DepEntry{}, 2)
	got := r.Resolve("nope", "/src/entry.py", "nowhere", 0)
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}
