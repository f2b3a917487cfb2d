// Package scoring turns a portrait into an excitement score in [70, 100].
package scoring

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/example/winner-card/internal/emotion"
	"github.com/example/winner-card/internal/facedetect"
	"github.com/example/winner-card/internal/imageio"
	"github.com/example/winner-card/internal/logging"
)

// Score range. BaseScore is also the fallback for both "no face" and
// "classifier failed".
const (
	BaseScore  = 70.0
	ScoreRange = 30.0
	MaxScore   = BaseScore + ScoreRange
)

// Outcome says which path produced a Result.
type Outcome int

const (
	OutcomeScored Outcome = iota
	OutcomeNoFace
	OutcomeClassifierFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScored:
		return "scored"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeClassifierFailed:
		return "classifier_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the score of one submission.
type Result struct {
	Score   float64
	Outcome Outcome
	// Face is the selected face box; zero for OutcomeNoFace.
	Face facedetect.Region
	// Crop is the padded region handed to the classifier.
	Crop  image.Rectangle
	Happy float64
	// Cause holds the classifier error for OutcomeClassifierFailed.
	Cause error
}

// Normalize maps a happy percentage onto the score range.
func Normalize(happy float64) float64 {
	return BaseScore + (happy/100)*ScoreRange
}

// Options tunes the scorer.
type Options struct {
	// Padding multiplies the face box before cropping (1.2 = 20%).
	Padding float64
}

// Scorer runs face detection and emotion classification.
type Scorer struct {
	detector   facedetect.Detector
	classifier emotion.Classifier
	padding    float64
	logger     *zap.Logger
}

// NewScorer builds a scorer. The detector is shared, read-only state loaded at startup.
func NewScorer(detector facedetect.Detector, classifier emotion.Classifier, opts Options, logger *zap.Logger) *Scorer {
	if opts.Padding < 1 {
		opts.Padding = 1.2
	}
	return &Scorer{
		detector:   detector,
		classifier: classifier,
		padding:    opts.Padding,
		logger:     logger.Named("scorer"),
	}
}

// ScoreImage scores the image stored at path.
func (s *Scorer) ScoreImage(ctx context.Context, path string) (Result, error) {
	img, err := imageio.Open(path)
	if err != nil {
		return Result{}, err
	}
	return s.Score(ctx, img)
}

// Score scores a decoded image. Only detector errors are returned; a missing
// face or a failing classifier fall back to BaseScore.
func (s *Scorer) Score(ctx context.Context, img image.Image) (Result, error) {
	faces, err := s.detector.Detect(img)
	if err != nil {
		return Result{}, logging.NewOperationError("scoring.detect_faces", "", err)
	}
	face, ok := facedetect.Largest(faces)
	if !ok {
		return Result{Score: BaseScore, Outcome: OutcomeNoFace}, nil
	}

	crop := facedetect.Pad(face, s.padding, img.Bounds())
	dist, err := s.classifier.Analyze(ctx, imaging.Crop(img, crop))
	if err != nil {
		s.logger.Warn("emotion analysis failed, using base score",
			zap.Error(err),
			zap.Int("face_width", face.Width),
			zap.Int("face_height", face.Height),
		)
		return Result{Score: BaseScore, Outcome: OutcomeClassifierFailed, Face: face, Crop: crop, Cause: err}, nil
	}

	happy := dist.Percent(emotion.Happy)
	return Result{
		Score:   Normalize(happy),
		Outcome: OutcomeScored,
		Face:    face,
		Crop:    crop,
		Happy:   happy,
	}, nil
}
