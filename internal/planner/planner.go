// Package planner is the global planner: it compiles State's obstacle grid
// and extra obstacles into an inflated boundary map, searches it for a
// shortest path with internal/gridmap, optionally shortcuts the result, and
// writes the path back onto State. Grounded on
// original_source/app/global_navigation.py, with the pure grid/graph
// algorithms themselves living in internal/gridmap.
package planner

import (
	"context"
	"time"

	"github.com/thymio-project/brain/internal/gridmap"
	"github.com/thymio-project/brain/internal/logging"
	"github.com/thymio-project/brain/internal/state"
	"github.com/thymio-project/brain/internal/workerpool"
)

// Planner recomputes State's path whenever scene_update fires.
type Planner struct {
	state          *state.State
	pool           *workerpool.Pool
	logger         logging.Logger
	safeDistanceCM float64
}

// New constructs a Planner wired to st and offloading search onto pool.
// safeDistanceCM is the disk-kernel inflation radius's physical basis
// (spec's SAFE_DISTANCE).
func New(st *state.State, pool *workerpool.Pool, logger logging.Logger, safeDistanceCM float64) *Planner {
	return &Planner{state: st, pool: pool, logger: logger, safeDistanceCM: safeDistanceCM}
}

// Run blocks, recomputing the path on every scene_update edge, until ctx is
// cancelled. Mirrors global_navigation.py's run loop
// (`await scene_update.wait(); await self._recompute_path()`).
func (p *Planner) Run(ctx context.Context) {
	stream := p.state.SceneUpdateSignal().Stream(ctx)
	for range stream {
		p.Recompute(ctx)
	}
}

// planResult is the value produced by the offloaded search, mirroring
// profile_algo's (path, elapsed) tuple.
type planResult struct {
	path    []gridmap.Location
	elapsed float64
}

// Recompute performs one planning cycle: compile the map, search it on the
// worker pool, and write the result back to State. No-op if pose or goal
// are unset.
func (p *Planner) Recompute(ctx context.Context) bool {
	pose, hasPose := p.state.Pose()
	end, hasEnd := p.state.End()
	if !hasPose || !hasEnd {
		return false
	}

	subdivisions := p.state.Subdivisions()
	physicalSize := p.state.PhysicalSize()

	boundaryMap := p.compileMap(subdivisions, physicalSize)
	p.state.SetBoundaryMap(boundaryMap)

	startLoc := gridmap.ToLocation(gridmap.Point{X: pose.X, Y: pose.Y}, subdivisions, physicalSize)
	endLoc := gridmap.ToLocation(gridmap.Point{X: end.X, Y: end.Y}, subdivisions, physicalSize)
	optimise := p.state.Optimise()

	result, err := workerpool.Run(ctx, p.pool, func() planResult {
		return profileAlgo(boundaryMap, startLoc, endLoc, optimise)
	})
	if err != nil {
		p.logger.Warnw("planner: search cancelled", "error", err)
		return false
	}

	var path []state.Vec2
	if result.path != nil {
		path = make([]state.Vec2, len(result.path))
		for i, loc := range result.path {
			x, y := gridmap.ToCoords(loc, subdivisions, physicalSize, true)
			path[i] = state.Vec2{X: x, Y: y}
		}
	}

	p.state.SetPath(path, result.elapsed)
	return true
}

// compileMap rasterises State's extra obstacles onto its obstacle grid and
// inflates the result by the safety-margin disk kernel, mirroring
// _generate_map/_with_safety_margin.
func (p *Planner) compileMap(subdivisions int, physicalSize float64) *gridmap.Grid {
	base := p.state.Obstacles()
	if base == nil {
		base = gridmap.NewGrid(subdivisions)
	}
	merged := base.Clone()

	for _, obstacle := range p.state.ExtraObstacles() {
		minLoc := gridmap.ToLocation(gridmap.Point{X: obstacle.Min.X, Y: obstacle.Min.Y}, subdivisions, physicalSize)
		maxLoc := gridmap.ToLocation(gridmap.Point{X: obstacle.Max.X, Y: obstacle.Max.Y}, subdivisions, physicalSize)
		merged.RasterizeRect(minLoc.X, minLoc.Y, maxLoc.X, maxLoc.Y)
	}

	radius := gridmap.DiskKernelRadius(subdivisions, p.safeDistanceCM, physicalSize)
	return merged.Inflate(radius)
}

// profileAlgo runs the search (and optional path optimisation), timing it,
// mirroring global_navigation.py's module-level profile_algo function.
func profileAlgo(boundaryMap *gridmap.Grid, start, end gridmap.Location, optimise bool) planResult {
	startTime := time.Now()
	graph := gridmap.NewGridGraph(boundaryMap)
	path := gridmap.FindPath(graph, start, end)

	if path != nil && optimise {
		path = gridmap.NewPathOptimiser(boundaryMap).Optimise(path)
	}

	return planResult{path: path, elapsed: time.Since(startTime).Seconds()}
}
