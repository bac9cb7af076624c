package vision

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// FileSource is a FrameSource that re-reads a single still image file on
// every call, the fall-back camera path spec.md §6 names ("capture is
// opened with a device index (0 or 1). Fall-back path: a still image
// file") for development and demos without a camera attached.
type FileSource struct {
	path string
}

// NewFileSource constructs a FileSource reading from path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// NextFrame decodes the file fresh each call, so an external process
// rewriting it (e.g. a test harness) is picked up on the next frame.
func (f *FileSource) NextFrame() (image.Image, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("vision: opening fallback image %s: %w", f.path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("vision: decoding fallback image %s: %w", f.path, err)
	}
	return img, nil
}
