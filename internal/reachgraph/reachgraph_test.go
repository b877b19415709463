package reachgraph

import "testing"

func TestNew_RootSentinelAlwaysExists(t *testing.T) {
	g := New()
	if !g.Has(RootSentinel) {
		t.Fatal("expected root sentinel to exist on construction")
	}
}

func TestAddEdge_Idempotent(t *testing.T) {
	g := New()
	g.AddRootEdge("unknown.foo.0")
	g.AddRootEdge("unknown.foo.0")
	nodes := g.Nodes()
	count := 0
	for _, n := range nodes {
		if n == "unknown.foo.0" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one node, got %d in %v", count, nodes)
	}
}

func TestAddAlternateName_Deduplicates(t *testing.T) {
	g := New()
	if !g.AddAlternateName("foo", "unknown.foo.0") {
		t.Fatal("expected first insertion to succeed")
	}
	if g.AddAlternateName("foo", "unknown.foo.0") {
		t.Fatal("expected duplicate insertion to be rejected")
	}
	keys := g.ResolvedKeysFor("foo")
	if len(keys) != 1 || keys[0] != "unknown.foo.0" {
		t.Fatalf("expected exactly one resolved key, got %v", keys)
	}
}

func TestReachable_FollowsEdgesFromRoot(t *testing.T) {
	g := New()
	g.AddRootEdge("unknown.foo.0")
	g.AddEdge("unknown.foo.0", "unknown.bar.0")
	if !g.Reachable("unknown.bar.0") {
		t.Fatal("expected bar to be reachable via foo from the root")
	}
	if g.Reachable("unknown.unreached.0") {
		t.Fatal("did not expect an untouched node to be reachable")
	}
}

func TestSetFile_FirstWriteWins(t *testing.T) {
	g := New()
	g.SetFile("unknown.foo.0", "a.py")
	g.SetFile("unknown.foo.0", "b.py")
	f, ok := g.FileOf("unknown.foo.0")
	if !ok || f != "a.py" {
		t.Fatalf("expected first-write-wins semantics, got %q (ok=%v)", f, ok)
	}
}

func TestMarshalJSON_IncludesNodesEdgesAndAlternateNames(t *testing.T) {
	g := New()
	g.AddRootEdge("unknown.foo.0")
	g.AddAlternateName("foo", "unknown.foo.0")
	raw, err := g.MarshalJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty JSON output")
	}
}
