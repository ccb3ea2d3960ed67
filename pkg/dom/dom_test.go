package dom

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type adjGraph struct {
	root  int
	succs [][]int
	preds [][]int
}

func newAdjGraph(root int, edges [][2]int, n int) *adjGraph {
	g := &adjGraph{root: root, succs: make([][]int, n), preds: make([][]int, n)}
	for _, e := range edges {
		g.succs[e[0]] = append(g.succs[e[0]], e[1])
		g.preds[e[1]] = append(g.preds[e[1]], e[0])
	}
	return g
}

func (g *adjGraph) NumNodes() int     { return len(g.succs) }
func (g *adjGraph) Root() int         { return g.root }
func (g *adjGraph) Succs(n int) []int { return g.succs[n] }
func (g *adjGraph) Preds(n int) []int { return g.preds[n] }

// Diamond: 0 -> 1, 0 -> 2, 1 -> 3, 2 -> 3.
func TestDiamondIdom(t *testing.T) {
	g := newAdjGraph(0, [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}}, 4)
	tr := Analyze(g)
	if tr.Idom(0) != 0 {
		t.Fatalf("root should self-dominate, got idom=%d", tr.Idom(0))
	}
	if tr.Idom(1) != 0 || tr.Idom(2) != 0 {
		t.Fatalf("expected 1 and 2 idom'd by 0, got %d %d", tr.Idom(1), tr.Idom(2))
	}
	if tr.Idom(3) != 0 {
		t.Fatalf("expected join node 3 idom'd by 0, got %d", tr.Idom(3))
	}
	if !tr.StrictlyDominates(0, 3) {
		t.Fatal("0 should strictly dominate 3")
	}
	if tr.StrictlyDominates(1, 3) {
		t.Fatal("1 should not dominate 3 (join has another path)")
	}
}

func TestDominanceFrontier(t *testing.T) {
	g := newAdjGraph(0, [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}}, 4)
	tr := Analyze(g)
	tr.ComputeFrontier(g)
	df1 := tr.Frontier(1)
	if len(df1) != 1 || df1[0] != 3 {
		t.Fatalf("expected DF(1) = {3}, got %v", df1)
	}
	df0 := tr.Frontier(0)
	if len(df0) != 0 {
		t.Fatalf("expected DF(0) = {}, got %v", df0)
	}
}

// Loop: 0 -> 1 -> 2 -> 1 (back edge), 2 -> 3.
func TestLoopIdom(t *testing.T) {
	g := newAdjGraph(0, [][2]int{{0, 1}, {1, 2}, {2, 1}, {2, 3}}, 4)
	tr := Analyze(g)
	if tr.Idom(2) != 1 {
		t.Fatalf("expected idom(2) == 1, got %d", tr.Idom(2))
	}
	if tr.Idom(3) != 2 {
		t.Fatalf("expected idom(3) == 2, got %d", tr.Idom(3))
	}
	if !tr.Dominates(0, 0) {
		t.Fatal("entry should self-dominate")
	}
}

func TestEntrySelfDominates(t *testing.T) {
	g := newAdjGraph(0, [][2]int{{0, 1}}, 2)
	tr := Analyze(g)
	if tr.Idom(0) != 0 {
		t.Fatal("entry must be its own idom")
	}
}

// allIdoms and allFrontiers snapshot a whole Tree for structural comparison,
// since Tree exposes per-node accessors rather than a single diffable value.
func allIdoms(tr *Tree, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = tr.Idom(i)
	}
	return out
}

func allFrontiers(tr *Tree, n int) [][]int {
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		df := make([]int, 0, len(tr.Frontier(i)))
		df = append(df, tr.Frontier(i)...)
		sort.Ints(df)
		out[i] = df
	}
	return out
}

// Diamond feeding a self-looping header: 0->1, 0->2, 1->3, 2->3, 3->4,
// 4->5, 5->4, 4->6. Exercises a merge point immediately followed by a
// loop, the shape iselect/regalloc actually see for an if/else inside a
// for loop (S2's matrix clip/score loop has exactly this structure one
// level up). go-cmp gives a readable diff of the whole tree at once
// instead of one assertion per node.
func TestDiamondIntoLoopDominatorTree(t *testing.T) {
	g := newAdjGraph(0, [][2]int{
		{0, 1}, {0, 2}, {1, 3}, {2, 3}, {3, 4}, {4, 5}, {5, 4}, {4, 6},
	}, 7)
	tr := Analyze(g)
	tr.ComputeFrontier(g)

	wantIdom := []int{0, 0, 0, 0, 3, 4, 4}
	if diff := cmp.Diff(wantIdom, allIdoms(tr, 7)); diff != "" {
		t.Fatalf("idom mismatch (-want +got):\n%s", diff)
	}

	wantFrontier := [][]int{{}, {3}, {3}, {}, {4}, {4}, {}}
	if diff := cmp.Diff(wantFrontier, allFrontiers(tr, 7)); diff != "" {
		t.Fatalf("dominance frontier mismatch (-want +got):\n%s", diff)
	}
}
