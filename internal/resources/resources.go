// Package resources holds the state loaded once at startup and shared by
// every request: the canvas templates and the face detector.
package resources

import (
	"go.uber.org/zap"

	"github.com/example/winner-card/internal/facedetect"
)

// Resources is immutable after Load and safe for concurrent reads.
type Resources struct {
	Templates *TemplatePool
	Detector  facedetect.Detector
}

// Config names the files Load reads.
type Config struct {
	TemplatesDir    string
	TemplatePattern string
	TemplateCount   int
	CascadePath     string
	Detection       facedetect.Params
}

// Load reads templates and the detector model. Either failing is fatal for
// the process: callers must not start serving without Resources.
func Load(cfg Config, logger *zap.Logger) (*Resources, error) {
	templates, err := LoadTemplates(cfg.TemplatesDir, cfg.TemplatePattern, cfg.TemplateCount)
	if err != nil {
		return nil, err
	}
	detector, err := facedetect.Load(cfg.CascadePath, cfg.Detection)
	if err != nil {
		return nil, err
	}
	logger.Info("resources loaded",
		zap.Int("templates", templates.Len()),
		zap.String("templates_dir", cfg.TemplatesDir),
		zap.String("cascade", cfg.CascadePath),
	)
	return &Resources{Templates: templates, Detector: detector}, nil
}
