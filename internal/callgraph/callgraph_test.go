package callgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/duo-labs/narrow/internal/depextract"
	"github.com/duo-labs/narrow/internal/resolve"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildFromEntry_SingleFileReachability(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, filepath.Join(dir, "entry.py"), `
def bar():
    pass

def foo():
    bar()

foo()
`)
	b := New([]string{"bar"}, 2).WithExtractor(depextract.StaticExtractor{Deps: map[string]resolve.DepEntry{}})
	if err := b.BuildFromEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Detected() {
		t.Fatalf("expected bar to be detected")
	}
	if !b.Has("foo", 0) {
		t.Fatalf("expected unknown.foo.0 node")
	}
	if !b.Has("bar", 0) {
		t.Fatalf("expected unknown.bar.0 node")
	}
}

func TestBuildFromEntry_MissingFunction(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, filepath.Join(dir, "entry.py"), `
def bar():
    pass

def foo():
    bar()

foo()
`)
	b := New([]string{"does_not_exist"}, 2).WithExtractor(depextract.StaticExtractor{Deps: map[string]resolve.DepEntry{}})
	if err := b.BuildFromEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Detected() {
		t.Fatalf("expected no detection")
	}
	if !b.Has("foo", 0) {
		t.Fatalf("expected unknown.foo.0 node")
	}
	if b.Has("does_not_exist", 0) {
		t.Fatalf("did not expect does_not_exist node")
	}
}

func TestBuildFromEntry_ClassConstructionResolvesToInit(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, filepath.Join(dir, "entry.py"), `
class Something:
    def __init__(self):
        print("hi")

Something()
`)
	b := New([]string{"print"}, 2).WithExtractor(depextract.StaticExtractor{Deps: map[string]resolve.DepEntry{}})
	if err := b.BuildFromEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Detected() {
		t.Fatalf("expected print to be detected via Something's initializer")
	}
	if !b.Has("Something", 0) {
		t.Fatalf("expected unknown.Something.0 node")
	}
	if !b.Has("print", 1) {
		t.Fatalf("expected unknown.print.1 node")
	}
}

func TestBuildFromEntry_CrossFileImport(t *testing.T) {
	dir := t.TempDir()
	libPath := write(t, filepath.Join(dir, "lib.py"), `
def helper():
    pass
`)
	entry := write(t, filepath.Join(dir, "entry.py"), `
import lib

lib.helper()
`)
	deps := map[string]resolve.DepEntry{
		"lib": {Path: libPath, Imports: nil},
	}
	b := New([]string{"helper"}, 2).WithExtractor(depextract.StaticExtractor{Deps: deps})
	if err := b.BuildFromEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Detected() {
		t.Fatalf("expected helper to be detected across the import")
	}
	if !b.Has("helper", 0) {
		t.Fatalf("expected unknown.helper.0 node")
	}
}

func TestBuildFromEntry_MutualImportsTerminate(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.py")
	bPath := filepath.Join(dir, "b.py")
	write(t, aPath, `
import b

def from_a():
    b.from_b()
`)
	write(t, bPath, `
import a

def from_b():
    pass
`)
	deps := map[string]resolve.DepEntry{
		"a": {Path: aPath, Imports: []string{"b"}},
		"b": {Path: bPath, Imports: []string{"a"}},
	}
	b := New([]string{"nonexistent_target"}, 2).WithExtractor(depextract.StaticExtractor{Deps: deps})

	done := make(chan error, 1)
	go func() { done <- b.BuildFromEntry(context.Background(), aPath) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("BuildFromEntry did not terminate on mutual imports")
	}
}

func TestBuildFromEntry_ArityDisambiguation(t *testing.T) {
	dir := t.TempDir()
	entry := write(t, filepath.Join(dir, "entry.py"), `
def f(x):
    one_arg_only()

def f(x, y):
    two_arg_only()

f(1)
f(1, 2)
`)
	b := New([]string{"two_arg_only"}, 2).WithExtractor(depextract.StaticExtractor{Deps: map[string]resolve.DepEntry{}})
	if err := b.BuildFromEntry(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Has("f", 1) {
		t.Fatalf("expected unknown.f.1 node")
	}
	if !b.Has("f", 2) {
		t.Fatalf("expected unknown.f.2 node")
	}
	if !b.Detected() {
		t.Fatalf("expected two_arg_only to be detected: f(1, 2) must bind to the two-parameter f and expand its body")
	}
	if !b.Has("one_arg_only", 0) {
		t.Fatalf("expected f(1) to expand the single-parameter f's body")
	}
	if !b.Has("two_arg_only", 0) {
		t.Fatalf("expected f(1, 2) to expand the two-parameter f's body")
	}
}
