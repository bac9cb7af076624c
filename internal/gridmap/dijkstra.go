package gridmap

import "container/heap"

// FindPath runs Dijkstra's algorithm over graph from start to end, returning
// the sequence of locations from start to end inclusive, or nil if end is
// unreachable. Grounded on path_finding/dijkstra.py; uses container/heap for
// the priority queue since no example repo imports a third-party binary-heap
// library (see DESIGN.md).
func FindPath(graph WeightedGraph, start, end Location) []Location {
	type entry struct {
		parent Location
		cost   float64
		known  bool
	}

	costs := map[Location]entry{start: {cost: 0, known: true}}

	frontier := &locationHeap{{loc: start, priority: 0}}
	heap.Init(frontier)

	for frontier.Len() > 0 {
		current := heap.Pop(frontier).(locationItem).loc

		if current == end {
			break
		}

		currentCost := costs[current].cost

		for _, next := range graph.Neighbors(current) {
			newCost := currentCost + graph.Cost(current, next)

			old, ok := costs[next]
			if !ok || newCost < old.cost {
				costs[next] = entry{parent: current, cost: newCost, known: true}
				heap.Push(frontier, locationItem{loc: next, priority: newCost})
			}
		}
	}

	if _, ok := costs[end]; !ok {
		return nil
	}

	path := []Location{end}
	cur := end
	for {
		e := costs[cur]
		if cur == start {
			break
		}
		path = append(path, e.parent)
		cur = e.parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type locationItem struct {
	loc      Location
	priority float64
}

// locationHeap is a container/heap priority queue over locationItem,
// ordered by ascending priority (the analogue of heapq.heappush/heappop
// over (priority, item) tuples in path_finding/utils.py's PriorityQueue).
type locationHeap []locationItem

func (h locationHeap) Len() int            { return len(h) }
func (h locationHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h locationHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *locationHeap) Push(x interface{}) { *h = append(*h, x.(locationItem)) }
func (h *locationHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
