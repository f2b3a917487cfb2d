//go:build gocv

package facedetect

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// HaarDetector runs an OpenCV Haar cascade. Built only with -tags gocv.
type HaarDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	params     Params
}

// LoadHaarDetector loads a cascade XML such as haarcascade_frontalface_default.xml.
func LoadHaarDetector(path string, params Params) (*HaarDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: load cascade %s", ErrDetectionUnavailable, path)
	}
	return &HaarDetector{classifier: classifier, params: params.withDefaults()}, nil
}

// Detect converts to grayscale and runs detectMultiScale.
func (d *HaarDetector) Detect(img image.Image) ([]Region, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	// An empty max size leaves detectMultiScale unbounded.
	var maxSize image.Point
	if d.params.MaxSize > 0 {
		maxSize = image.Pt(d.params.MaxSize, d.params.MaxSize)
	}

	// CascadeClassifier is not safe for concurrent detectMultiScale calls.
	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.params.ScaleFactor,
		d.params.MinNeighbors,
		0,
		image.Pt(d.params.MinSize, d.params.MinSize),
		maxSize,
	)
	d.mu.Unlock()

	origin := img.Bounds().Min
	out := make([]Region, 0, len(rects))
	for _, r := range rects {
		out = append(out, Region{X: origin.X + r.Min.X, Y: origin.Y + r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}
	return out, nil
}

// Close releases the native classifier.
func (d *HaarDetector) Close() error {
	return d.classifier.Close()
}
