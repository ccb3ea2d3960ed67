// Package loop implements Havlak-style reducible-loop detection over any
// rooted graph, independent of what the nodes represent — it is used both
// for the register allocator's loop-nest spill-cost weighting (over a
// cg.Func's CFG) and is available to any other pass that needs natural-loop
// structure.
package loop

import (
	"fmt"

	"github.com/markuszzz/mycc/pkg/bitset"
)

// Graph is the minimal view Analyze needs. Node ids are dense integers in
// [0, NumNodes).
type Graph interface {
	NumNodes() int
	Root() int
	Succs(n int) []int
	Preds(n int) []int
}

// Type classifies a node's role in the loop forest.
type Type int

const (
	NonHeader Type = iota
	Header
	SelfLoop
)

func (t Type) String() string {
	switch t {
	case Header:
		return "HEADER"
	case SelfLoop:
		return "SELF"
	default:
		return "NONHEADER"
	}
}

// Info is the per-node record spec.md §4.2 asks the info-getter to return.
type Info struct {
	Pre    int
	RPost  int
	Header int // nearest enclosing loop header, or the node itself if none
	Type   Type
}

// Result is the output of Analyze: one Info per node plus the reverse
// postorder node sequence.
type Result struct {
	info  []Info
	rpost []int // node ids in reverse postorder
}

// Info returns the analysis record for node n.
func (r *Result) Info(n int) Info { return r.info[n] }

// RPostOrder returns node ids in reverse postorder (root first).
func (r *Result) RPostOrder() []int { return r.rpost }

// IsLoopHeader reports whether n is a loop header (HEADER or SELF).
func (r *Result) IsLoopHeader(n int) bool {
	t := r.info[n].Type
	return t == Header || t == SelfLoop
}

// NestDepth returns the number of enclosing loop headers for n, counting a
// loop header itself as depth >= 1 for its own loop. Used directly as the
// register allocator's loop_nest(block) weight (spec.md §4.5.e).
func (r *Result) NestDepth(n int) int {
	depth := 0
	if r.IsLoopHeader(n) {
		depth++ // n is itself a member of the loop it heads
	}
	cur := n
	for {
		h := r.info[cur].Header
		if h == cur {
			return depth
		}
		depth++
		cur = h
	}
}

// ErrIrreducible is returned when the input graph contains an irreducible
// loop — spec.md §4.2 treats this as a hard failure since upstream passes
// must only ever hand the register allocator reducible CFGs.
type ErrIrreducible struct {
	Header int
	Node   int
}

func (e *ErrIrreducible) Error() string {
	return fmt.Sprintf("irreducible control flow: loop at node %d reaches node %d outside its body", e.Header, e.Node)
}

// Analyze runs Havlak's algorithm on g, rooted at g.Root().
func Analyze(g Graph) (*Result, error) {
	n := g.NumNodes()
	pre := make([]int, n)
	last := make([]int, n) // max preorder number within the subtree
	rpost := make([]int, n)
	visitOrder := make([]int, 0, n) // node ids by increasing preorder
	for i := range pre {
		pre[i] = -1
	}

	type frame struct {
		node     int
		succIdx  int
	}
	stack := []frame{{node: g.Root()}}
	nextPre := 0
	pre[g.Root()] = nextPre
	visitOrder = append(visitOrder, g.Root())
	last[g.Root()] = nextPre
	nextPre++
	postOrder := make([]int, 0, n)

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succs(top.node)
		advanced := false
		for top.succIdx < len(succs) {
			s := succs[top.succIdx]
			top.succIdx++
			if pre[s] == -1 {
				pre[s] = nextPre
				visitOrder = append(visitOrder, s)
				last[s] = nextPre
				nextPre++
				stack = append(stack, frame{node: s})
				advanced = true
				break
			}
		}
		if advanced {
			continue
		}
		// node finished: pop and record postorder, propagate `last` up.
		stack = stack[:len(stack)-1]
		postOrder = append(postOrder, top.node)
		if len(stack) > 0 {
			parent := &stack[len(stack)-1]
			if last[top.node] > last[parent.node] {
				last[parent.node] = last[top.node]
			}
		}
	}

	for i, nd := range postOrder {
		rpost[nd] = len(postOrder) - 1 - i
	}
	rpostOrder := make([]int, len(postOrder))
	for _, nd := range visitOrder {
		rpostOrder[rpost[nd]] = nd
	}

	isAncestor := func(w, v int) bool {
		return pre[w] <= pre[v] && pre[v] <= last[w]
	}

	header := make([]int, n)
	typ := make([]Type, n)
	for i := range header {
		header[i] = i
	}

	ds := bitset.NewDisjointSet(n)

	// Process nodes in decreasing preorder (deepest-discovered first), the
	// "reverse pre-order" walk of spec.md §4.2.
	for pi := nextPre - 1; pi >= 0; pi-- {
		w := visitOrder[pi]

		selfLoop := false
		var backPreds []int
		for _, v := range g.Preds(w) {
			if pre[v] == -1 {
				continue // unreachable predecessor, not part of the rooted graph
			}
			if isAncestor(w, v) {
				if v == w {
					selfLoop = true
				} else {
					backPreds = append(backPreds, ds.Find(v))
				}
			}
		}
		if selfLoop && typ[w] == NonHeader {
			typ[w] = SelfLoop
		}
		if len(backPreds) == 0 {
			continue
		}
		typ[w] = Header

		inBody := map[int]bool{ds.Find(w): true}
		work := append([]int(nil), backPreds...)
		for len(work) > 0 {
			x := work[len(work)-1]
			work = work[:len(work)-1]
			xr := ds.Find(x)
			if inBody[xr] {
				continue
			}
			if !isAncestor(w, xr) {
				return nil, &ErrIrreducible{Header: w, Node: xr}
			}
			inBody[xr] = true
			header[xr] = w
			for _, y := range g.Preds(xr) {
				if pre[y] == -1 {
					continue
				}
				yr := ds.Find(y)
				if inBody[yr] {
					continue
				}
				if !isAncestor(w, yr) {
					return nil, &ErrIrreducible{Header: w, Node: yr}
				}
				work = append(work, yr)
			}
		}
		wRoot := ds.Find(w)
		for xr := range inBody {
			if xr != wRoot {
				ds.Union(w, xr)
			}
		}
	}

	info := make([]Info, n)
	for i := 0; i < n; i++ {
		if pre[i] == -1 {
			continue // not reachable from root; leave zero Info
		}
		info[i] = Info{Pre: pre[i], RPost: rpost[i], Header: header[i], Type: typ[i]}
	}

	return &Result{info: info, rpost: rpostOrder}, nil
}
