package vision

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/thymio-project/brain/internal/gridmap"
)

func testConfig() Config {
	return Config{
		PixelsPerCM:        5,
		TableLenCM:         58,
		Subdivisions:       64,
		FinalSize:          16,
		SafeDistanceCM:     15,
		PhysicalSizeCM:     110,
		LandmarkFrontCM:    2.7,
		LandmarkBackCM:     3.2,
		LandmarkDetectMin:  0.01,
		IsolateThreshold:   2,
		SceneThreshold:     10,
		ObstacleColor:      ColorRange{Min: color.RGBA{}, Max: color.RGBA{R: 70, G: 70, B: 70}},
		BackLandmarkColor:  ColorRange{Min: color.RGBA{R: 150, G: 140, B: 200}, Max: color.RGBA{R: 200, G: 160, B: 255}},
		FrontLandmarkColor: ColorRange{Min: color.RGBA{R: 100, G: 0, B: 0}, Max: color.RGBA{R: 255, G: 60, B: 50}},
	}
}

type fakeSource struct {
	frame image.Image
}

func (f *fakeSource) NextFrame() (image.Image, error) {
	return f.frame, nil
}

func blankGrid(n int) *gridmap.Grid {
	return gridmap.NewGrid(n)
}

func TestCalibrateProducesIdentityForAlignedCorners(t *testing.T) {
	corners := [4]image.Point{{0, 0}, {99, 0}, {99, 99}, {0, 99}}
	h, err := Calibrate(corners, 100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.At(0, 0), test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, h.At(1, 1), test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, h.At(2, 2), test.ShouldAlmostEqual, 1.0, 1e-6)
}

func TestExtractObstaclesFindsOccupiedCell(t *testing.T) {
	size := 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}

	cfg := testConfig()
	cfg.FinalSize = 8
	p := &Pipeline{cfg: cfg, tableLen: size}

	grid, err := p.extractObstacles(img)
	test.That(t, err, test.ShouldBeNil)

	occupied := false
	for y := 0; y < grid.N; y++ {
		for x := 0; x < grid.N; x++ {
			if grid.At(x, y) != 0 {
				occupied = true
			}
		}
	}
	test.That(t, occupied, test.ShouldBeTrue)
}

func TestDetectLandmarkBelowThresholdReturnsNotFound(t *testing.T) {
	size := 32
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	// No pixels match the front-landmark color range.
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	cfg := testConfig()
	cfg.LandmarkDetectMin = 0.5
	p := &Pipeline{cfg: cfg, tableLen: size}

	_, err := p.detectLandmark(img, cfg.FrontLandmarkColor, cfg.LandmarkFrontCM)
	test.That(t, err, test.ShouldEqual, ErrLandmarkNotFound)
}

func TestToPhysicalFlipsYAxis(t *testing.T) {
	pt := toPhysical(image.Point{X: 10, Y: 0}, 100, 1.1)
	test.That(t, pt.X, test.ShouldAlmostEqual, 11.0, 1e-9)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 110.0, 1e-9)
}

func TestRemoveIsolatedCellsDropsSingletons(t *testing.T) {
	grid := blankGrid(8)
	grid.Set(3, 3, 1)

	out := removeIsolatedCells(grid, 2)
	test.That(t, out.At(3, 3), test.ShouldEqual, uint8(0))
}

func TestRemoveIsolatedCellsKeepsDenseRegion(t *testing.T) {
	grid := blankGrid(8)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			grid.Set(x, y, 1)
		}
	}

	out := removeIsolatedCells(grid, 2)
	test.That(t, out.At(3, 3), test.ShouldEqual, uint8(1))
}
