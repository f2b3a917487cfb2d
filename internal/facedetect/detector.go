package facedetect

import "image"

// Detector finds candidate faces in an image. Implementations are loaded once
// at startup and must be safe for concurrent use.
type Detector interface {
	Detect(img image.Image) ([]Region, error)
}

// Params tunes detection. Zero values are replaced by DefaultParams.
type Params struct {
	// ScaleFactor is the step between detection window sizes.
	ScaleFactor float64
	// MinNeighbors is the number of overlapping raw hits a face needs.
	MinNeighbors int
	MinSize      int
	// MaxSize caps the detection window. Zero means the smaller image side.
	MaxSize int
	// ShiftFactor is the sliding window stride relative to the window size.
	ShiftFactor float64
	// IoUThreshold decides when two raw hits belong to the same face.
	IoUThreshold float64
	// QualityThreshold drops low-confidence raw hits (pigo only).
	QualityThreshold float32
}

// DefaultParams returns scale factor 1.1 and four neighbours.
func DefaultParams() Params {
	return Params{
		ScaleFactor:      1.1,
		MinNeighbors:     4,
		MinSize:          20,
		ShiftFactor:      0.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.ScaleFactor <= 1 {
		p.ScaleFactor = d.ScaleFactor
	}
	if p.MinNeighbors < 0 {
		p.MinNeighbors = d.MinNeighbors
	}
	if p.MinSize <= 0 {
		p.MinSize = d.MinSize
	}
	if p.MaxSize < 0 {
		p.MaxSize = 0
	}
	if p.ShiftFactor <= 0 {
		p.ShiftFactor = d.ShiftFactor
	}
	if p.IoUThreshold <= 0 {
		p.IoUThreshold = d.IoUThreshold
	}
	return p
}
