// Package facedetect finds face bounding boxes in images and provides the
// box arithmetic used by the scorer.
package facedetect

import (
	"errors"
	"image"
)

// ErrDetectionUnavailable reports a detector whose model could not be loaded.
// It is a startup failure; a running service never returns it per request.
var ErrDetectionUnavailable = errors.New("face detection unavailable")

// Region is a face bounding box in image pixel coordinates.
type Region struct {
	X, Y, Width, Height int
}

// Area returns Width*Height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Largest returns the region with the greatest area. Ties keep the region that
// appears first in regions, so identical detector output always yields the same box.
func Largest(regions []Region) (Region, bool) {
	if len(regions) == 0 {
		return Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}
	return best, true
}

// Pad grows r by factor (1.2 adds 10% of the width on the left and on the
// right, and likewise vertically) and clamps the result to bounds.
func Pad(r Region, factor float64, bounds image.Rectangle) image.Rectangle {
	// factor-1 is inexact (1.2-1 < 0.2); nudge so whole-pixel margins are not lost.
	padW := int(float64(r.Width)*(factor-1)/2 + 1e-9)
	padH := int(float64(r.Height)*(factor-1)/2 + 1e-9)
	grown := image.Rect(r.X-padW, r.Y-padH, r.X+r.Width+padW, r.Y+r.Height+padH)
	return grown.Intersect(bounds)
}

// iou is the intersection-over-union of two regions.
func iou(a, b Region) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	interArea := inter.Dx() * inter.Dy()
	union := a.Area() + b.Area() - interArea
	if union <= 0 {
		return 0
	}
	return float64(interArea) / float64(union)
}

// group merges overlapping raw detections and keeps clusters backed by at
// least minNeighbors raw hits. Output order follows the first member of each
// cluster; merged boxes are the member average.
func group(raw []Region, threshold float64, minNeighbors int) []Region {
	type cluster struct {
		seed                   Region
		sumX, sumY, sumW, sumH int
		n                      int
	}
	var clusters []*cluster
	for _, r := range raw {
		var target *cluster
		for _, c := range clusters {
			if iou(c.seed, r) > threshold {
				target = c
				break
			}
		}
		if target == nil {
			target = &cluster{seed: r}
			clusters = append(clusters, target)
		}
		target.sumX += r.X
		target.sumY += r.Y
		target.sumW += r.Width
		target.sumH += r.Height
		target.n++
	}

	out := make([]Region, 0, len(clusters))
	for _, c := range clusters {
		if c.n < minNeighbors {
			continue
		}
		out = append(out, Region{
			X:      c.sumX / c.n,
			Y:      c.sumY / c.n,
			Width:  c.sumW / c.n,
			Height: c.sumH / c.n,
		})
	}
	return out
}
