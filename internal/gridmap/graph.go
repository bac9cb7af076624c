package gridmap

import "math"

const (
	distAdjacent = 1.0
	distDiagonal = 1.41421356237
)

// WeightedGraph is the contract Dijkstra plans over, grounded on
// path_finding/types.py's WeightedGraph protocol.
type WeightedGraph interface {
	Neighbors(loc Location) []Location
	Cost(a, b Location) float64
}

// GridGraph splits a Grid into nodes connected to their 8 neighbours
// (horizontal, vertical, diagonal), weighted 1.0 for adjacent steps and
// sqrt(2) for diagonal ones, mirroring grid_graph.py's GridGraph.
type GridGraph struct {
	grid *Grid
}

// NewGridGraph wraps grid for graph search. Cells with a nonzero value are
// impassable.
func NewGridGraph(grid *Grid) *GridGraph {
	return &GridGraph{grid: grid}
}

var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Neighbors yields the in-bounds, unoccupied cells adjacent to loc.
func (gg *GridGraph) Neighbors(loc Location) []Location {
	out := make([]Location, 0, 8)
	for _, off := range neighborOffsets {
		nx, ny := loc.X+off[0], loc.Y+off[1]
		if gg.grid.InBounds(nx, ny) && gg.grid.At(nx, ny) == 0 {
			out = append(out, Location{X: nx, Y: ny})
		}
	}
	return out
}

// Cost returns the step cost between two adjacent locations: sqrt(2) for a
// diagonal step, 1.0 otherwise.
func (gg *GridGraph) Cost(a, b Location) float64 {
	if a.X != b.X && a.Y != b.Y {
		return distDiagonal
	}
	return distAdjacent
}

// Norm is the plain Euclidean distance between two grid locations, named
// norm in path_optimiser.py.
func Norm(a, b Location) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
