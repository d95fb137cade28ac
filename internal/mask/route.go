package mask

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

// Route errors.
var (
	ErrCellBlocked = errors.New("mask: cell is blocked")
	ErrOutOfBounds = errors.New("mask: cell is out of bounds")
	ErrUnreachable = errors.New("mask: no route between cells")
)

// Cell addresses one grid position.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// neighbors8 is the 8-connected step set with diagonal moves costing
// sqrt(2).
var neighbors8 = []struct {
	dx, dy int
	cost   float64
}{
	{1, 0, 1}, {-1, 0, 1}, {0, 1, 1}, {0, -1, 1},
	{1, 1, math.Sqrt2}, {1, -1, math.Sqrt2}, {-1, 1, math.Sqrt2}, {-1, -1, math.Sqrt2},
}

// Route finds a shortest path between two free cells with A* over the
// 8-connected grid, using the Euclidean distance heuristic. The
// returned path includes both endpoints. ErrUnreachable is returned
// when the goal cannot be reached through free cells.
func Route(g *Grid, start, goal Cell) ([]Cell, error) {
	for _, c := range []Cell{start, goal} {
		if c.X < 0 || c.Y < 0 || c.X >= g.W || c.Y >= g.H {
			return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, c)
		}
		if !g.Free(c.X, c.Y) {
			return nil, fmt.Errorf("%w: %s", ErrCellBlocked, c)
		}
	}
	if start == goal {
		return []Cell{start}, nil
	}

	h := func(c Cell) float64 {
		return math.Hypot(float64(c.X-goal.X), float64(c.Y-goal.Y))
	}

	idx := func(c Cell) int { return c.Y*g.W + c.X }
	gScore := make(map[int]float64, 64)
	cameFrom := make(map[int]Cell, 64)
	closed := make(map[int]bool, 64)

	open := &cellHeap{}
	heap.Init(open)
	gScore[idx(start)] = 0
	heap.Push(open, cellEntry{cell: start, f: h(start)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(cellEntry).cell
		ci := idx(cur)
		if closed[ci] {
			continue
		}
		if cur == goal {
			return rebuildPath(cameFrom, idx, start, goal), nil
		}
		closed[ci] = true

		for _, n := range neighbors8 {
			next := Cell{X: cur.X + n.dx, Y: cur.Y + n.dy}
			if !g.Free(next.X, next.Y) {
				continue
			}
			ni := idx(next)
			if closed[ni] {
				continue
			}
			tentative := gScore[ci] + n.cost
			if prev, ok := gScore[ni]; ok && tentative >= prev {
				continue
			}
			gScore[ni] = tentative
			cameFrom[ni] = cur
			heap.Push(open, cellEntry{cell: next, f: tentative + h(next)})
		}
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrUnreachable, start, goal)
}

func rebuildPath(cameFrom map[int]Cell, idx func(Cell) int, start, goal Cell) []Cell {
	var rev []Cell
	for c := goal; ; {
		rev = append(rev, c)
		if c == start {
			break
		}
		c = cameFrom[idx(c)]
	}
	path := make([]Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}

// UnreachablePairs checks every pair of cells for mutual reachability
// and returns the pairs no free path connects. Cells that are blocked
// or out of bounds pair as unreachable with everything.
func UnreachablePairs(g *Grid, cells []Cell) [][2]Cell {
	var pairs [][2]Cell
	for i := 0; i < len(cells); i++ {
		for j := i + 1; j < len(cells); j++ {
			if _, err := Route(g, cells[i], cells[j]); err != nil {
				pairs = append(pairs, [2]Cell{cells[i], cells[j]})
			}
		}
	}
	return pairs
}

// cellEntry is one open-set node ordered by f score.
type cellEntry struct {
	cell Cell
	f    float64
}

type cellHeap []cellEntry

func (h cellHeap) Len() int           { return len(h) }
func (h cellHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h cellHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cellHeap) Push(x any)        { *h = append(*h, x.(cellEntry)) }
func (h *cellHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
