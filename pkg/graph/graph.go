// Package graph implements the directed multigraph substrate every later
// pass builds on: CFGs (ir.Func, cg.Func) and the SSA-use graph are both
// instances of it. Nodes live in arena storage; each edge is recorded in the
// source's succ slice and the target's pred slice, kept sorted by the
// comparator when one is set and in insertion order otherwise. Insertion and
// deletion scan the slice linearly. This avoids the ownership cycles a
// pointer-linked representation would need.
package graph

// NodeID identifies a node within a Ctx's arena.
type NodeID int

// invalidNode marks a free edge slot.
const invalidNode NodeID = -1

type edge struct {
	to NodeID // target of this edge, as stored in the source's succ list
}

type nodeData struct {
	alive bool
	succ  []NodeID // sorted by comparator
	pred  []NodeID
}

// Comparator orders two node ids for insertion into sorted pred/succ lists.
// Ctx.Less is used when set; nil means insertion order (append).
type Comparator func(a, b NodeID) bool

// Ctx owns a pool of nodes and edges plus a monotonic version counter and a
// small reusable marker pool — per spec.md §3.1/§4.1.
type Ctx struct {
	nodes   []nodeData
	version uint64
	less    Comparator

	markerUsed []bool     // which marker slots are allocated
	markerBits [][]bool   // marker slot -> per-node flag
}

// NewCtx creates an empty graph context. If less is non-nil, successor and
// predecessor lists are kept sorted by it; otherwise insertion order is used.
func NewCtx(less Comparator) *Ctx {
	return &Ctx{less: less}
}

// Version returns the current mutation counter. Callers cache analyses
// (loops, RPO) keyed by this value and recompute when it changes.
func (g *Ctx) Version() uint64 { return g.version }

func (g *Ctx) bump() { g.version++ }

// NewNode allocates and returns a fresh node id.
func (g *Ctx) NewNode() NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, nodeData{alive: true})
	for slot := range g.markerBits {
		g.markerBits[slot] = append(g.markerBits[slot], false)
	}
	g.bump()
	return id
}

// NumNodes returns one past the highest node id ever allocated (dead nodes
// keep their slot, so this is an upper bound suitable for sizing arrays).
func (g *Ctx) NumNodes() int { return len(g.nodes) }

// Alive reports whether a node id is live (not deleted).
func (g *Ctx) Alive(n NodeID) bool {
	return int(n) >= 0 && int(n) < len(g.nodes) && g.nodes[n].alive
}

func insertSorted(list []NodeID, n NodeID, less Comparator) []NodeID {
	if less == nil {
		return append(list, n)
	}
	i := 0
	for i < len(list) && less(list[i], n) {
		i++
	}
	list = append(list, invalidNode)
	copy(list[i+1:], list[i:])
	list[i] = n
	return list
}

// AddEdge creates an edge from -> to, inserting to into from's successor
// list and from into to's predecessor list, both kept sorted by the
// context's comparator.
func (g *Ctx) AddEdge(from, to NodeID) {
	g.nodes[from].succ = insertSorted(g.nodes[from].succ, to, g.less)
	g.nodes[to].pred = insertSorted(g.nodes[to].pred, from, g.less)
	g.bump()
}

func removeFirst(list []NodeID, n NodeID) []NodeID {
	for i, v := range list {
		if v == n {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// DeleteEdge removes one instance of the edge from -> to, if present.
func (g *Ctx) DeleteEdge(from, to NodeID) {
	g.nodes[from].succ = removeFirst(g.nodes[from].succ, to)
	g.nodes[to].pred = removeFirst(g.nodes[to].pred, from)
	g.bump()
}

// DeletePredsOf removes every edge terminating at n.
func (g *Ctx) DeletePredsOf(n NodeID) {
	preds := append([]NodeID(nil), g.nodes[n].pred...)
	for _, p := range preds {
		g.DeleteEdge(p, n)
	}
}

// DeleteSuccsOf removes every edge originating at n.
func (g *Ctx) DeleteSuccsOf(n NodeID) {
	succs := append([]NodeID(nil), g.nodes[n].succ...)
	for _, s := range succs {
		g.DeleteEdge(n, s)
	}
}

// DeleteNode removes n and cascades to every incident edge.
func (g *Ctx) DeleteNode(n NodeID) {
	g.DeletePredsOf(n)
	g.DeleteSuccsOf(n)
	g.nodes[n].alive = false
	g.bump()
}

// Succs returns n's successors, in sorted (or insertion) order. The slice is
// owned by the graph; callers must not mutate it.
func (g *Ctx) Succs(n NodeID) []NodeID { return g.nodes[n].succ }

// Preds returns n's predecessors, same sharing rules as Succs.
func (g *Ctx) Preds(n NodeID) []NodeID { return g.nodes[n].pred }

// --- Markers ---------------------------------------------------------------

// Marker is a small integer scratch tag acquirable/releasable like a
// temporary colour, used for idempotent DFS.
type Marker int

// NewMarker allocates a marker from the pool (growing it if needed) with
// every node initially clear.
func (g *Ctx) NewMarker() Marker {
	for i, used := range g.markerUsed {
		if !used {
			g.markerUsed[i] = true
			for n := range g.markerBits[i] {
				g.markerBits[i][n] = false
			}
			return Marker(i)
		}
	}
	g.markerUsed = append(g.markerUsed, true)
	g.markerBits = append(g.markerBits, make([]bool, len(g.nodes)))
	return Marker(len(g.markerUsed) - 1)
}

// FreeMarker releases a marker back to the pool. Failing to call this
// exhausts the (small, but unbounded-growth) marker pool over a long pass
// sequence — callers should pair NewMarker/FreeMarker with defer.
func (g *Ctx) FreeMarker(m Marker) {
	g.markerUsed[m] = false
}

// SetMarker sets the marker on n and returns whether it was already set —
// this is what makes a marker-guided DFS idempotent: the caller skips
// re-visiting any node where SetMarker returns true.
func (g *Ctx) SetMarker(m Marker, n NodeID) bool {
	was := g.markerBits[m][n]
	g.markerBits[m][n] = true
	return was
}

// TestMarker reads the marker without setting it.
func (g *Ctx) TestMarker(m Marker, n NodeID) bool {
	return g.markerBits[m][n]
}

// ClearMarker clears the marker on a single node.
func (g *Ctx) ClearMarker(m Marker, n NodeID) {
	g.markerBits[m][n] = false
}
