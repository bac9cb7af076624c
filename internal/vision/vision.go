// Package vision implements the camera pipeline: homography calibration,
// per-frame obstacle extraction, and robot landmark detection. Grounded on
// original_source/app/vision.py, with OpenCV calls replaced by
// gonum.org/v1/gonum/mat (homography solve), github.com/disintegration/
// imaging (area resize) and stdlib image/image color arithmetic in the
// teacher's rimage style.
package vision

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"github.com/thymio-project/brain/internal/gridmap"
)

// ColorRange is an inclusive BGR range used to threshold a frame the way
// cv2.inRange does, grounded on vision.py's color_obstacles/color_back/
// color_front tuples.
type ColorRange struct {
	Min, Max color.RGBA
}

// Config holds the fixed pipeline parameters, named after spec.md 4.3 and
// original_source/app/config.py.
type Config struct {
	PixelsPerCM          float64
	TableLenCM           float64
	Subdivisions         int
	FinalSize            int
	SafeDistanceCM       float64
	PhysicalSizeCM       float64
	LandmarkFrontCM      float64
	LandmarkBackCM       float64
	LandmarkDetectMin    float64
	IsolateThreshold     int
	SceneThreshold       uint8
	ObstacleColor        ColorRange
	BackLandmarkColor    ColorRange
	FrontLandmarkColor   ColorRange
}

// Observation is one vision pipeline result: the obstacle grid and the two
// robot landmark positions in physical centimetres.
type Observation struct {
	Obstacles *gridmap.Grid
	Back      gridmap.Point
	Front     gridmap.Point
}

// ErrLandmarkNotFound is returned as is (not wrapped) when a landmark's detection
// strength falls below Config.LandmarkDetectMin.
var ErrLandmarkNotFound = errors.New("vision: landmark not found")

// ErrNoFrame is returned when the frame source yields no frame.
var ErrNoFrame = errors.New("vision: no frame available")

// FrameSource is the camera contract: produces successive BGRA frames.
// Calibration (the interactive corner/color-seed collection UI) is
// out-of-scope per spec.md 4.3; Pipeline only consumes the resulting
// homography and color seeds.
type FrameSource interface {
	NextFrame() (image.Image, error)
}

// Pipeline runs the per-frame processing step described in spec.md 4.3. It
// is stateful only over calibration (the homography and landmark/obstacle
// color ranges); Next is otherwise a pure function of the incoming frame.
type Pipeline struct {
	cfg      Config
	source   FrameSource
	homog    *mat.Dense // 3x3 image -> rectified arena
	tableLen int        // rectified square side, in pixels
}

// NewPipeline constructs a Pipeline from a previously computed homography.
// tableLenPX is PixelsPerCM * TableLenCM rounded to the nearest pixel.
func NewPipeline(cfg Config, source FrameSource, homography *mat.Dense, tableLenPX int) *Pipeline {
	return &Pipeline{cfg: cfg, source: source, homog: homography, tableLen: tableLenPX}
}

// Calibrate computes the homography mapping four image-space corner points
// (clockwise from top-left) to the rectified L x L arena square, where
// L = PixelsPerCM * TableLenCM. The interactive point/seed collection itself
// is out of scope (spec.md 4.3); this is the pure geometry step.
func Calibrate(corners [4]image.Point, tableLenPX int) (*mat.Dense, error) {
	dst := [4][2]float64{
		{0, 0},
		{float64(tableLenPX - 1), 0},
		{float64(tableLenPX - 1), float64(tableLenPX - 1)},
		{0, float64(tableLenPX - 1)},
	}
	return solveHomography(corners, dst)
}

// solveHomography finds the 3x3 projective transform H such that, for each
// correspondence, H * [x,y,1]^T is proportional to [x',y',1]^T. Built by
// solving the standard 8-unknown DLT linear system with gonum's mat.Solve,
// the style the teacher's rimage/calibrate package uses for its own
// homography fits.
func solveHomography(src [4]image.Point, dst [4][2]float64) (*mat.Dense, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := float64(src[i].X), float64(src[i].Y)
		xp, yp := dst[i][0], dst[i][1]

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -x * xp, -y * xp})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -x * yp, -y * yp})
		b.SetVec(2*i, xp)
		b.SetVec(2*i+1, yp)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, err
	}

	return mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}), nil
}
