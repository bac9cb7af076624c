package ekf

import (
	"math"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/state"
)

func TestFirstPredictRecordsTimeWithoutMutating(t *testing.T) {
	mockClock := clk.NewMock()
	f := New(state.Pose{}, 9.5, mockClock)

	f.Predict(10, 10)

	pose := f.Pose()
	test.That(t, pose.X, test.ShouldEqual, 0.0)
	test.That(t, pose.Y, test.ShouldEqual, 0.0)
	test.That(t, pose.Theta, test.ShouldEqual, 0.0)
}

// TestDeadReckoningStraightLine mirrors spec.md 8's scenario 4: initial pose
// (0,0,0), v_L = v_R = 10 cm/s, dt = 1s, ten predicts, no updates. Expected
// x ~= 100, y ~= 0, theta ~= 0, and P's trace increases monotonically.
func TestDeadReckoningStraightLine(t *testing.T) {
	mockClock := clk.NewMock()
	f := New(state.Pose{}, 9.5, mockClock)

	f.Predict(10, 10) // primes lastPredict, no-op

	lastTrace := trace(f.Covariance())
	for i := 0; i < 10; i++ {
		mockClock.Add(time.Second)
		f.Predict(10, 10)

		tr := trace(f.Covariance())
		test.That(t, tr, test.ShouldBeGreaterThanOrEqualTo, lastTrace)
		lastTrace = tr
	}

	pose := f.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 100.0, 1e-6)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0.0, 1e-6)
	test.That(t, pose.Theta, test.ShouldAlmostEqual, 0.0, 1e-6)
}

func TestPureRotationChangesThetaOnly(t *testing.T) {
	mockClock := clk.NewMock()
	f := New(state.Pose{}, 10, mockClock)

	f.Predict(0, 0)
	mockClock.Add(time.Second)
	// vR - vL = 10, wheelbase 10 => omega = 1 rad/s.
	f.Predict(-5, 5)

	pose := f.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, pose.Theta, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestUpdateCorrectsTowardObservation(t *testing.T) {
	mockClock := clk.NewMock()
	f := New(state.Pose{X: 0, Y: 0, Theta: 0}, 9.5, mockClock)

	f.Predict(10, 10)
	mockClock.Add(time.Second)
	f.Predict(10, 10)

	before := f.Pose()
	f.Update(state.Pose{X: 9, Y: 0, Theta: 0})
	after := f.Pose()

	// The corrected estimate should move strictly toward the observation,
	// never past it and never away from it.
	test.That(t, after.X, test.ShouldBeLessThan, before.X)
	test.That(t, after.X, test.ShouldBeGreaterThanOrEqualTo, 9.0)
}

func TestUpdateWrapsTheta(t *testing.T) {
	mockClock := clk.NewMock()
	f := New(state.Pose{X: 0, Y: 0, Theta: 3.0}, 9.5, mockClock)
	f.Predict(0, 0)
	mockClock.Add(time.Second)
	f.Predict(0, 0)

	f.Update(state.Pose{X: 0, Y: 0, Theta: -3.1})

	pose := f.Pose()
	test.That(t, pose.Theta, test.ShouldBeLessThanOrEqualTo, math.Pi)
	test.That(t, pose.Theta, test.ShouldBeGreaterThan, -math.Pi)
}

func trace(m interface{ At(i, j int) float64 }) float64 {
	return m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
}
