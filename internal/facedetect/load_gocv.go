//go:build gocv

package facedetect

func loadHaar(path string, params Params) (Detector, error) {
	return LoadHaarDetector(path, params)
}
