package coordinator

import (
	"testing"

	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/gridmap"
)

func TestFirstValueAlwaysAccepted(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 5, FloatDistance)
	v, ok := r.Next(100)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 100.0)
}

func TestWithinThresholdAccepted(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 5, FloatDistance)
	r.Next(10)
	v, ok := r.Next(11.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 11.5)
}

func TestOutlierRejectedAndLastValueReturned(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 5, FloatDistance)
	r.Next(10)
	v, ok := r.Next(50)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, v, test.ShouldEqual, 10.0)
}

func TestLockoutPreventionAcceptsAfterMaxMisses(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 3, FloatDistance)
	r.Next(10)

	_, ok1 := r.Next(50)
	_, ok2 := r.Next(51)
	v3, ok3 := r.Next(52)

	test.That(t, ok1, test.ShouldBeFalse)
	test.That(t, ok2, test.ShouldBeFalse)
	test.That(t, ok3, test.ShouldBeTrue)
	test.That(t, v3, test.ShouldEqual, 52.0)
}

func TestAcceptResetsMissCounter(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 3, FloatDistance)
	r.Next(10)
	r.Next(50) // miss 1
	r.Next(10) // back within threshold, accepted, resets misses
	_, ok := r.Next(50)
	test.That(t, ok, test.ShouldBeFalse) // would be 2nd miss, not 3rd: not yet locked out
}

func TestVec2DistanceIsLInfinity(t *testing.T) {
	r := NewOutlierRejecter[gridmap.Point](2, 5, Vec2Distance)
	r.Next(gridmap.Point{X: 0, Y: 0})
	// dx=1 dy=3: L-infinity is max(1,3)=3 > threshold 2, rejected.
	_, ok := r.Next(gridmap.Point{X: 1, Y: 3})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestResetClearsState(t *testing.T) {
	r := NewOutlierRejecter[float64](2, 5, FloatDistance)
	r.Next(10)
	r.Reset()
	v, ok := r.Next(500)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 500.0)
}
