package vision

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/thymio-project/brain/internal/gridmap"
)

// Next runs one full pipeline pass: rectify, denoise, border-clear, threshold
// obstacles, downsample, detect landmarks, and convert to physical
// coordinates. Returns ErrNoFrame if the source yields nothing this cycle,
// or ErrLandmarkNotFound (unwrapped, for either landmark) if a landmark's
// detection strength falls below Config.LandmarkDetectMin.
func (p *Pipeline) Next() (Observation, error) {
	frame, err := p.source.NextFrame()
	if err != nil {
		return Observation{}, err
	}
	if frame == nil {
		return Observation{}, ErrNoFrame
	}

	rectified := warpPerspective(frame, p.homog, p.tableLen, p.tableLen)
	denoised := imaging.Blur(rectified, float64(p.cfg.PixelsPerCM)/3.0)
	clearBorder(denoised, int(p.cfg.PixelsPerCM))

	obstacles, err := p.extractObstacles(denoised)
	if err != nil {
		return Observation{}, err
	}

	back, err := p.detectLandmark(denoised, p.cfg.BackLandmarkColor, p.cfg.LandmarkBackCM)
	if err != nil {
		return Observation{}, err
	}
	front, err := p.detectLandmark(denoised, p.cfg.FrontLandmarkColor, p.cfg.LandmarkFrontCM)
	if err != nil {
		return Observation{}, err
	}

	scale := p.cfg.PhysicalSizeCM / float64(p.tableLen)
	return Observation{
		Obstacles: obstacles,
		Back:      toPhysical(back, p.tableLen, scale),
		Front:     toPhysical(front, p.tableLen, scale),
	}, nil
}

// warpPerspective resamples src into a dstW x dstH image using the inverse
// of h (image -> rectified arena), nearest-neighbour, mirroring
// cv2.warpPerspective(frame, h, (L, L)).
func warpPerspective(src image.Image, h interface {
	At(i, j int) float64
}, dstW, dstH int) *image.RGBA {
	var hinv [9]float64
	invertHomography(h, &hinv)

	out := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			sx, sy, w := hinv[0]*float64(x)+hinv[1]*float64(y)+hinv[2],
				hinv[3]*float64(x)+hinv[4]*float64(y)+hinv[5],
				hinv[6]*float64(x)+hinv[7]*float64(y)+hinv[8]
			if w == 0 {
				continue
			}
			sx, sy = sx/w, sy/w
			b := src.Bounds()
			ix, iy := int(sx)+b.Min.X, int(sy)+b.Min.Y
			if ix < b.Min.X || ix >= b.Max.X || iy < b.Min.Y || iy >= b.Max.Y {
				continue
			}
			out.Set(x, y, src.At(ix, iy))
		}
	}
	return out
}

// invertHomography computes the 3x3 inverse of h via the adjugate/cofactor
// method (closed-form, cheaper than a general solve for a fixed 3x3).
func invertHomography(h interface{ At(i, j int) float64 }, out *[9]float64) {
	a, b, c := h.At(0, 0), h.At(0, 1), h.At(0, 2)
	d, e, f := h.At(1, 0), h.At(1, 1), h.At(1, 2)
	g, i, j := h.At(2, 0), h.At(2, 1), h.At(2, 2)

	det := a*(e*j-f*i) - b*(d*j-f*g) + c*(d*i-e*g)
	if det == 0 {
		det = 1e-12
	}
	inv := 1 / det

	out[0] = (e*j - f*i) * inv
	out[1] = (c*i - b*j) * inv
	out[2] = (b*f - c*e) * inv
	out[3] = (f*g - d*j) * inv
	out[4] = (a*j - c*g) * inv
	out[5] = (c*d - a*f) * inv
	out[6] = (d*i - e*g) * inv
	out[7] = (b*g - a*i) * inv
	out[8] = (a*e - b*d) * inv
}

// clearBorder zeroes a fixed-width band around img's edges, suppressing
// perspective-rectification edge artifacts (vision.py's __erase_noisy_edges
// margin clear).
func clearBorder(img draw.Image, width int) {
	b := img.Bounds()
	black := color.RGBA{A: 255}
	for y := b.Min.Y; y < b.Min.Y+width && y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, black)
		}
	}
	for y := b.Max.Y - width; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, black)
		}
	}
	for x := b.Min.X; x < b.Min.X+width && x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.Set(x, y, black)
		}
	}
	for x := b.Max.X - width; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.Set(x, y, black)
		}
	}
}

// inRange reports whether c falls within the inclusive BGR band [rng.Min,
// rng.Max], mirroring cv2.inRange.
func inRange(c color.Color, rng ColorRange) bool {
	r, g, b, _ := c.RGBA()
	r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
	return r8 >= rng.Min.R && r8 <= rng.Max.R &&
		g8 >= rng.Min.G && g8 <= rng.Max.G &&
		b8 >= rng.Min.B && b8 <= rng.Max.B
}

// extractObstacles thresholds the obstacle color, downsamples to N x N via
// area resize, flips the y axis (image space -> arena space), binarises at
// SceneThreshold, and removes isolated cells (3x3 all-ones convolution,
// count <= IsolateThreshold is dropped), per spec.md 4.3 step 4.
func (p *Pipeline) extractObstacles(img image.Image) (*gridmap.Grid, error) {
	mask := thresholdMask(img, p.cfg.ObstacleColor)
	resized := imaging.Resize(mask, p.cfg.FinalSize, p.cfg.FinalSize, imaging.Box)
	flipped := imaging.FlipV(resized)

	n := p.cfg.FinalSize
	raw := gridmap.NewGrid(n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			r, _, _, _ := flipped.At(x, y).RGBA()
			if uint8(r>>8) >= p.cfg.SceneThreshold {
				raw.Set(x, y, 1)
			}
		}
	}

	return removeIsolatedCells(raw, p.cfg.IsolateThreshold), nil
}

// thresholdMask paints pixels inside rng white and everything else black,
// mirroring cv2.inRange's binary output image.
func thresholdMask(img image.Image, rng ColorRange) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if inRange(img.At(x, y), rng) {
				out.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				out.Set(x, y, color.RGBA{A: 255})
			}
		}
	}
	return out
}

// removeIsolatedCells convolves grid with a 3x3 all-ones kernel and zeroes
// any occupied cell whose neighbour count (including itself) is <= threshold,
// per spec.md 4.3 step 4's isolated-cell removal.
func removeIsolatedCells(grid *gridmap.Grid, threshold int) *gridmap.Grid {
	out := grid.Clone()
	n := grid.N
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if grid.At(x, y) == 0 {
				continue
			}
			count := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if grid.InBounds(nx, ny) && grid.At(nx, ny) != 0 {
						count++
					}
				}
			}
			if count <= threshold {
				out.Set(x, y, 0)
			}
		}
	}
	return out
}

// detectLandmark thresholds the seed color, convolves with a disk kernel of
// radius sizeCM*PixelsPerCM, and takes the argmax. Returns
// ErrLandmarkNotFound if the peak falls below LandmarkDetectMin.
func (p *Pipeline) detectLandmark(img image.Image, rng ColorRange, sizeCM float64) (image.Point, error) {
	mask := thresholdMask(img, rng)
	radius := sizeCM * p.cfg.PixelsPerCM

	b := mask.Bounds()
	best := image.Point{}
	bestVal := -1.0

	kernel := diskOffsets(radius)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sum float64
			for _, off := range kernel {
				nx, ny := x+off[0], y+off[1]
				if nx < b.Min.X || nx >= b.Max.X || ny < b.Min.Y || ny >= b.Max.Y {
					continue
				}
				r, _, _, _ := mask.At(nx, ny).RGBA()
				if r>>8 > 0 {
					sum++
				}
			}
			if sum > bestVal {
				bestVal = sum
				best = image.Point{X: x, Y: y}
			}
		}
	}

	normalized := bestVal / float64(len(kernel))
	if normalized < p.cfg.LandmarkDetectMin {
		return image.Point{}, ErrLandmarkNotFound
	}
	return best, nil
}

func diskOffsets(radius float64) [][2]int {
	r := int(radius)
	offsets := make([][2]int, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) <= radius*radius {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// toPhysical converts an image-space landmark location into arena-frame
// physical centimetres, flipping the y axis: (x_px*S, (L-y_px)*S).
func toPhysical(pt image.Point, tableLenPX int, scale float64) gridmap.Point {
	return gridmap.Point{
		X: float64(pt.X) * scale,
		Y: float64(tableLenPX-pt.Y) * scale,
	}
}
