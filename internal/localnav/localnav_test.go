package localnav

import (
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/state"
)

func TestGetDistanceInterpolatesWithinRange(t *testing.T) {
	d := getDistance(4684, frontTable)
	test.That(t, d, test.ShouldAlmostEqual, 2.0, 1e-6)
}

func TestGetDistanceOutOfRangeReturnsNegativeOne(t *testing.T) {
	d := getDistance(100, frontTable)
	test.That(t, d, test.ShouldEqual, -1.0)
}

func TestDistanceArrayAppliesCorrectTablePerIndex(t *testing.T) {
	raw := []float64{4771, 4759, 4771, 4759, 4771, 4992, 4992}
	distances := DistanceArray(raw)
	test.That(t, len(distances), test.ShouldEqual, 7)
	for _, d := range distances {
		test.That(t, d, test.ShouldAlmostEqual, 1.0, 1e-6)
	}
}

func TestEntryBelowThresholdSetsReactiveControl(t *testing.T) {
	mockClock := clk.NewMock()
	c := New(mockClock)
	st := state.New(64, 110)

	st.SetProxReadings([]float64{0, 0, 0, 0, 0, 0, 0}, []float64{3, -1, -1, -1, -1, -1, -1})
	c.Evaluate(st)

	test.That(t, c.Active(), test.ShouldBeTrue)
	test.That(t, st.ReactiveControl(), test.ShouldBeTrue)
}

func TestNoEntryWhenAllFrontSensorsOutOfRange(t *testing.T) {
	mockClock := clk.NewMock()
	c := New(mockClock)
	st := state.New(64, 110)

	st.SetProxReadings(nil, []float64{-1, -1, -1, -1, -1, 1, 1})
	c.Evaluate(st)

	test.That(t, c.Active(), test.ShouldBeFalse)
}

func TestExitSequenceResumesAfterGracePeriod(t *testing.T) {
	mockClock := clk.NewMock()
	c := New(mockClock)
	st := state.New(64, 110)

	st.SetProxReadings(nil, []float64{3, -1, -1, -1, -1, -1, -1})
	c.Evaluate(st)
	test.That(t, c.Active(), test.ShouldBeTrue)

	// Clear of obstacles now, but still within the 7s grace period.
	st.SetProxReadings(nil, []float64{-1, -1, -1, -1, -1, -1, -1})
	mockClock.Add(6 * time.Second)
	c.Evaluate(st)
	test.That(t, c.Active(), test.ShouldBeTrue)
	test.That(t, st.ReactiveControl(), test.ShouldBeTrue)

	mockClock.Add(2 * time.Second) // total 8s elapsed
	c.Evaluate(st)

	test.That(t, c.Active(), test.ShouldBeFalse)
	test.That(t, st.ReactiveControl(), test.ShouldBeFalse)
}

func TestProcessEventTranslatesAndStoresReadings(t *testing.T) {
	mockClock := clk.NewMock()
	c := New(mockClock)
	st := state.New(64, 110)

	raw := []float64{4771, 4759, 4771, 4759, 4771, 4992, 4992}
	c.ProcessEvent(st, raw)

	got := st.RelativeDistances()
	test.That(t, len(got), test.ShouldEqual, 7)
	for _, d := range got {
		test.That(t, d, test.ShouldAlmostEqual, 1.0, 1e-6)
	}
}
