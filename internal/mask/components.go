package mask

// BlockedComponents returns one representative cell per 8-connected
// component of blocked cells, in row-major discovery order. The
// representative is the member cell nearest the component centroid, so
// it always lies on the component even for ring-shaped pads.
func BlockedComponents(g *Grid) []Cell {
	seen := make([]bool, len(g.Cells))
	var reps []Cell

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			i := y*g.W + x
			if seen[i] || g.Cells[i] != 0 {
				continue
			}

			members := collectComponent(g, seen, Cell{X: x, Y: y})
			reps = append(reps, nearestToCentroid(members))
		}
	}
	return reps
}

// collectComponent flood fills the blocked component containing start
// and marks every member in seen.
func collectComponent(g *Grid, seen []bool, start Cell) []Cell {
	queue := []Cell{start}
	seen[start.Y*g.W+start.X] = true
	var members []Cell

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		members = append(members, c)

		for _, n := range neighbors8 {
			nx, ny := c.X+n.dx, c.Y+n.dy
			if nx < 0 || ny < 0 || nx >= g.W || ny >= g.H {
				continue
			}
			j := ny*g.W + nx
			if seen[j] || g.Cells[j] != 0 {
				continue
			}
			seen[j] = true
			queue = append(queue, Cell{X: nx, Y: ny})
		}
	}
	return members
}

func nearestToCentroid(members []Cell) Cell {
	var sx, sy int
	for _, c := range members {
		sx += c.X
		sy += c.Y
	}
	cx := float64(sx) / float64(len(members))
	cy := float64(sy) / float64(len(members))

	best := members[0]
	bestD := -1.0
	for _, c := range members {
		dx := float64(c.X) - cx
		dy := float64(c.Y) - cy
		d := dx*dx + dy*dy
		if bestD < 0 || d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}
