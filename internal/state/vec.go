package state

import "math"

// Vec2 is a physical-coordinate point in centimetres.
type Vec2 struct {
	X, Y float64
}

// Pose is the robot pose in the arena frame: (x_cm, y_cm, theta_rad), with
// theta wrapped to (-pi, pi].
type Pose struct {
	X, Y, Theta float64
}

// WrapAngle normalises an angle in radians into (-pi, pi].
func WrapAngle(theta float64) float64 {
	wrapped := math.Mod(theta+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// Obstacle is an axis-aligned rectangle in physical coordinates.
type Obstacle struct {
	Min, Max Vec2
}

// NormalizeObstacle rearranges the rectangle's corners so Min holds the
// componentwise minimum and Max the componentwise maximum. Idempotent:
// NormalizeObstacle(NormalizeObstacle(r)) == NormalizeObstacle(r).
func NormalizeObstacle(o Obstacle) Obstacle {
	return Obstacle{
		Min: Vec2{X: math.Min(o.Min.X, o.Max.X), Y: math.Min(o.Min.Y, o.Max.Y)},
		Max: Vec2{X: math.Max(o.Min.X, o.Max.X), Y: math.Max(o.Min.Y, o.Max.Y)},
	}
}
