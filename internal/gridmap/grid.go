// Package gridmap holds the pure grid/graph primitives shared by the
// vision pipeline and the global planner: the occupancy Grid type, disk-
// kernel inflation, the 8-connected weighted graph, Dijkstra search, the
// raytrace-based path optimiser, and physical<->grid coordinate
// conversion. Grounded on original_source/app/path_finding/*.py and
// global_navigation.py's map-compilation helpers.
package gridmap

import "fmt"

// Location is a grid cell index (column x, row y).
type Location struct {
	X, Y int
}

// Grid is an N x N byte matrix; a nonzero cell is occupied/forbidden.
// Equality is entrywise (Equal), independent of how cells were inserted.
type Grid struct {
	N      int
	cells  []uint8
}

// NewGrid allocates a zeroed N x N grid.
func NewGrid(n int) *Grid {
	return &Grid{N: n, cells: make([]uint8, n*n)}
}

// NewGridFrom copies a flat row-major N*N slice into a new Grid.
func NewGridFrom(n int, data []uint8) (*Grid, error) {
	if len(data) != n*n {
		return nil, fmt.Errorf("gridmap: expected %d cells for %dx%d grid, got %d", n*n, n, n, len(data))
	}
	g := NewGrid(n)
	copy(g.cells, data)
	return g, nil
}

// At returns the cell value at (x, y).
func (g *Grid) At(x, y int) uint8 {
	return g.cells[y*g.N+x]
}

// Set assigns the cell value at (x, y).
func (g *Grid) Set(x, y int, v uint8) {
	g.cells[y*g.N+x] = v
}

// InBounds reports whether (x, y) is within the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.N && y >= 0 && y < g.N
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.N)
	copy(out.cells, g.cells)
	return out
}

// Equal reports whether two grids have the same shape and entrywise
// values.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.N != other.N {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// L1Distance returns the sum of absolute entrywise differences between two
// same-shaped grids, widened to a 64-bit accumulator (spec.md §9 flags
// that an int8 accumulator can silently overflow; this widens it).
func (g *Grid) L1Distance(other *Grid) int64 {
	var total int64
	n := len(g.cells)
	if len(other.cells) < n {
		n = len(other.cells)
	}
	for i := 0; i < n; i++ {
		d := int64(g.cells[i]) - int64(other.cells[i])
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total
}

// RasterizeRect sets every cell whose grid-space bounding box falls within
// [minX,maxX) x [minY,maxY) to 1, used to merge ExtraObstacles into the
// occupancy grid before inflation.
func (g *Grid) RasterizeRect(minX, minY, maxX, maxY int) {
	minX, minY = clamp(minX, 0, g.N), clamp(minY, 0, g.N)
	maxX, maxY = clamp(maxX, 0, g.N), clamp(maxY, 0, g.N)
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			g.Set(x, y, 1)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DiskKernelRadius converts a physical safety distance into a grid-cell
// radius, as global_navigation.py's _safety_margin_kernel does:
// subdivisions * safeDistanceCM / physicalSizeCM.
func DiskKernelRadius(subdivisions int, safeDistanceCM, physicalSizeCM float64) float64 {
	return float64(subdivisions) * safeDistanceCM / physicalSizeCM
}

// Inflate grows every occupied cell by a disk of the given radius (in grid
// cells), via 2D convolution with a disk-shaped structuring element,
// mirroring scipy.signal.convolve2d(map, disk_kernel, mode="same",
// boundary="fill"). Nonzero output cells are forbidden for planning.
func (g *Grid) Inflate(radius float64) *Grid {
	if radius <= 0 {
		return g.Clone()
	}

	r := int(radius)
	kernel := make([][2]int, 0, (2*r+1)*(2*r+1))
	for di := -r; di <= r; di++ {
		for dj := -r; dj <= r; dj++ {
			if float64(di*di+dj*dj) <= radius*radius {
				kernel = append(kernel, [2]int{di, dj})
			}
		}
	}

	out := NewGrid(g.N)
	for y := 0; y < g.N; y++ {
		for x := 0; x < g.N; x++ {
			if g.At(x, y) == 0 {
				continue
			}
			for _, off := range kernel {
				nx, ny := x+off[0], y+off[1]
				if out.InBounds(nx, ny) {
					out.Set(nx, ny, 1)
				}
			}
		}
	}
	return out
}

// Point is a physical-coordinate point in centimetres, kept independent of
// the state package's Vec2 to avoid a dependency cycle.
type Point struct {
	X, Y float64
}

// ToLocation converts a physical-coordinate point into a clamped grid
// location, mirroring global_navigation.py's _to_location.
func ToLocation(p Point, subdivisions int, physicalSizeCM float64) Location {
	factor := float64(subdivisions) / physicalSizeCM
	x := clamp(int(p.X*factor), 0, subdivisions-1)
	y := clamp(int(p.Y*factor), 0, subdivisions-1)
	return Location{X: x, Y: y}
}

// ToCoords converts a grid location back to a physical-coordinate point,
// optionally centred within the cell, mirroring _to_coords.
func ToCoords(loc Location, subdivisions int, physicalSizeCM float64, centre bool) (x, y float64) {
	offset := 0.0
	if centre {
		offset = 0.5
	}
	factor := physicalSizeCM / float64(subdivisions)
	return (float64(loc.X) + offset) * factor, (float64(loc.Y) + offset) * factor
}
