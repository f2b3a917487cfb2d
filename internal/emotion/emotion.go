// Package emotion talks to facial emotion classifiers.
package emotion

import (
	"context"
	"image"
	"math"
)

// Happy is the distribution key used for excitement scoring.
const Happy = "happy"

// Distribution maps emotion names to percentages in [0, 100].
type Distribution map[string]float64

// Percent returns the named emotion clamped to [0, 100]; missing keys and
// NaN are 0.
func (d Distribution) Percent(name string) float64 {
	v := d[name]
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Classifier returns the emotion distribution of a face crop. Implementations
// run in permissive mode: a crop in which the model cannot find a face still
// yields its best-effort distribution.
type Classifier interface {
	Analyze(ctx context.Context, face image.Image) (Distribution, error)
}
