package gridmap

// Raytrace enumerates every grid cell that a line segment from a to b
// passes through, using an integer-only supercover line algorithm (see
// https://playtechs.blogspot.com/2007/03/raytracing-on-grid.html). Grounded
// on path_finding/path_optimiser.py's raytrace function.
func Raytrace(a, b Location) []Location {
	dx := abs(b.X - a.X)
	dy := abs(b.Y - a.Y)

	x, y := a.X, a.Y

	xInc := 1
	if b.X <= a.X {
		xInc = -1
	}
	yInc := 1
	if b.Y <= a.Y {
		yInc = -1
	}

	err := dx - dy
	n := 1 + dx + dy
	dx *= 2
	dy *= 2

	out := make([]Location, 0, n)

	for i := 0; i < n; i++ {
		out = append(out, Location{X: x, Y: y})

		if err > 0 {
			x += xInc
			err -= dy
		} else {
			y += yInc
			err += dx
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PathOptimiser shortcuts a path by dropping waypoints whose neighbours have
// an unobstructed line of sight between them, grounded on
// path_finding/path_optimiser.py's PathOptimiser.
type PathOptimiser struct {
	grid *Grid
}

// NewPathOptimiser builds an optimiser over grid, where a nonzero cell
// blocks line of sight.
func NewPathOptimiser(grid *Grid) *PathOptimiser {
	return &PathOptimiser{grid: grid}
}

// Optimise returns a shortened copy of path with waypoints removed whenever
// the segment bypassing them stays clear of every obstacle. The input slice
// is not modified.
func (p *PathOptimiser) Optimise(path []Location) []Location {
	if len(path) <= 2 {
		return path
	}

	optimised := make([]Location, len(path))
	copy(optimised, path)

	i := 1
	for i != len(optimised)-1 {
		if p.FreePath(optimised[i-1], optimised[i+1]) {
			optimised = append(optimised[:i], optimised[i+1:]...)
			i = 1
		} else {
			i++
		}
	}
	return optimised
}

// FreePath reports whether every grid cell the segment a-b passes through is
// unoccupied.
func (p *PathOptimiser) FreePath(a, b Location) bool {
	for _, loc := range Raytrace(a, b) {
		if !p.grid.InBounds(loc.X, loc.Y) {
			continue
		}
		if p.grid.At(loc.X, loc.Y) != 0 {
			return false
		}
	}
	return true
}
