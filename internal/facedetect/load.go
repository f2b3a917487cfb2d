package facedetect

import (
	"path/filepath"
	"strings"
)

// Load picks a detector implementation from the model file name: ".xml"
// cascades need the gocv build, anything else is read as a pigo cascade.
func Load(path string, params Params) (Detector, error) {
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		return loadHaar(path, params)
	}
	return LoadPigoDetector(path, params)
}
