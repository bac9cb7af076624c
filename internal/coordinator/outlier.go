package coordinator

import "github.com/thymio-project/brain/internal/gridmap"

// OutlierRejecter filters a stream of values of type T, rejecting any value
// whose distance from the last accepted value exceeds threshold. After
// maxMisses consecutive rejections, the pending value is accepted anyway,
// preventing a single bad streak from permanently locking the stream onto a
// stale reading. Grounded on
// original_source/app/utils/outlier_rejecter.py's OutlierRejecter, generalised
// with Go generics over the distance function (Python's implementation
// special-cased tuples vs scalars; a caller-supplied distance func covers
// both uniformly). T has no constraints here: distance is evaluated
// entirely by the caller-supplied fn.
type OutlierRejecter[T any] struct {
	threshold float64
	maxMisses int
	distance  func(a, b T) float64

	hasLast bool
	last    T
	misses  int
}

// NewOutlierRejecter constructs a rejecter. maxMisses <= 0 disables the
// lockout-prevention accept (every out-of-threshold value is rejected
// forever), matching outlier_rejecter.py's max_misses=None.
func NewOutlierRejecter[T any](threshold float64, maxMisses int, distance func(a, b T) float64) *OutlierRejecter[T] {
	return &OutlierRejecter[T]{threshold: threshold, maxMisses: maxMisses, distance: distance}
}

// Next returns the value to use (the input value if accepted, the previous
// accepted value otherwise) and whether value itself was accepted.
func (r *OutlierRejecter[T]) Next(value T) (T, bool) {
	if !r.hasLast {
		r.last = value
		r.hasLast = true
		return value, true
	}

	if r.distance(value, r.last) <= r.threshold {
		r.last = value
		r.misses = 0
		return value, true
	}

	r.misses++
	if r.maxMisses > 0 && r.misses >= r.maxMisses {
		r.last = value
		r.misses = 0
		return value, true
	}

	return r.last, false
}

// Reset clears the rejecter's accumulated state, matching
// outlier_rejecter.py's reset().
func (r *OutlierRejecter[T]) Reset() {
	var zero T
	r.last = zero
	r.hasLast = false
	r.misses = 0
}

// Vec2Distance is the L-infinity distance between two points, matching
// outlier_rejecter.py's tuple branch (`max(abs(value[i] - reference[i])
// for i in range(len(value)))`).
func Vec2Distance(a, b gridmap.Point) float64 {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// FloatDistance is the scalar L-infinity distance, matching
// outlier_rejecter.py's non-tuple branch.
func FloatDistance(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
