//go:build !gocv

package facedetect

import "fmt"

func loadHaar(path string, _ Params) (Detector, error) {
	return nil, fmt.Errorf("%w: %s is a Haar cascade; rebuild with -tags gocv", ErrDetectionUnavailable, path)
}
