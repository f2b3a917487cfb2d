package facedetect

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// PigoDetector runs the pigo pixel-intensity cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     Params
}

// LoadPigoDetector reads and unpacks a pigo cascade file (e.g. "facefinder").
func LoadPigoDetector(path string, params Params) (*PigoDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read cascade %s: %v", ErrDetectionUnavailable, path, err)
	}
	return NewPigoDetector(data, params)
}

// NewPigoDetector unpacks cascade bytes.
func NewPigoDetector(cascade []byte, params Params) (*PigoDetector, error) {
	if len(cascade) == 0 {
		return nil, fmt.Errorf("%w: empty cascade", ErrDetectionUnavailable)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack cascade: %v", ErrDetectionUnavailable, err)
	}
	return &PigoDetector{classifier: classifier, params: params.withDefaults()}, nil
}

// Detect converts img to grayscale and returns grouped face regions in
// detector output order.
func (d *PigoDetector) Detect(img image.Image) ([]Region, error) {
	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	maxSize := min(cols, rows)
	if d.params.MaxSize > 0 && d.params.MaxSize < maxSize {
		maxSize = d.params.MaxSize
	}
	if maxSize < d.params.MinSize {
		return nil, nil
	}

	// RgbToGrayscale indexes pixels from (0,0).
	if bounds.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}
	pixels := pigo.RgbToGrayscale(img)
	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}, 0.0)

	raw := make([]Region, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.params.QualityThreshold {
			continue
		}
		raw = append(raw, fromDetection(det, bounds.Min))
	}
	return group(raw, d.params.IoUThreshold, d.params.MinNeighbors), nil
}

// fromDetection converts pigo's centre/scale form to a top-left box.
func fromDetection(det pigo.Detection, origin image.Point) Region {
	half := det.Scale / 2
	return Region{
		X:      origin.X + det.Col - half,
		Y:      origin.Y + det.Row - half,
		Width:  det.Scale,
		Height: det.Scale,
	}
}
