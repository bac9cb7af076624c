package vision

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
)

// CalibrationFile is the on-disk record of the one-time interactive
// calibration step (corner picks and landmark/obstacle color seeds), the
// boundary spec.md 4.3 draws between in-scope pipeline math and
// out-of-scope interactive collection UI. cmd/brain loads this once at
// startup instead of running the collection UI itself.
type CalibrationFile struct {
	Corners       [4][2]int `json:"corners"`
	ObstacleColor rangeJSON `json:"obstacle_color"`
	BackColor     rangeJSON `json:"back_landmark_color"`
	FrontColor    rangeJSON `json:"front_landmark_color"`
}

type rangeJSON struct {
	Min [3]uint8 `json:"min"`
	Max [3]uint8 `json:"max"`
}

// ToColorRange converts the raw JSON min/max triples into a ColorRange.
func (r rangeJSON) ToColorRange() ColorRange {
	return ColorRange{
		Min: color.RGBA{R: r.Min[0], G: r.Min[1], B: r.Min[2], A: 0xff},
		Max: color.RGBA{R: r.Max[0], G: r.Max[1], B: r.Max[2], A: 0xff},
	}
}

// LoadCalibration reads a CalibrationFile from path.
func LoadCalibration(path string) (CalibrationFile, error) {
	var cal CalibrationFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return cal, fmt.Errorf("vision: reading calibration file %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &cal); err != nil {
		return cal, fmt.Errorf("vision: parsing calibration file %s: %w", path, err)
	}
	return cal, nil
}

// ImageCorners converts the stored corner points to image.Point, clockwise
// from top-left, the order Calibrate expects.
func (c CalibrationFile) ImageCorners() [4]image.Point {
	var pts [4]image.Point
	for i, xy := range c.Corners {
		pts[i] = image.Point{X: xy[0], Y: xy[1]}
	}
	return pts
}
