// Package compositor renders winner cards: the subject is cut out, given a
// glow and placed on a randomly chosen canvas template.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/winner-card/internal/bgremoval"
	"github.com/example/winner-card/internal/cardstore"
	"github.com/example/winner-card/internal/imageio"
	"github.com/example/winner-card/internal/logging"
	"github.com/example/winner-card/internal/resources"
)

// ErrComposition is returned when a card cannot be rendered or stored.
var ErrComposition = errors.New("card composition failed")

// Defaults used when Config leaves a field zero.
const (
	DefaultFeatherRadius = 10
	DefaultGlowRadius    = 35
	DefaultHeightRatio   = 0.8
	DefaultUpwardShift   = 0.1
)

// DefaultGlowColor is yellow.
var DefaultGlowColor = color.NRGBA{R: 255, G: 255, A: 255}

// Config holds the rendering constants.
type Config struct {
	FeatherRadius float64
	GlowRadius    float64
	HeightRatio   float64
	UpwardShift   float64
	GlowColor     color.NRGBA
}

func (c Config) withDefaults() Config {
	if c.FeatherRadius == 0 {
		c.FeatherRadius = DefaultFeatherRadius
	}
	if c.GlowRadius == 0 {
		c.GlowRadius = DefaultGlowRadius
	}
	if c.HeightRatio == 0 {
		c.HeightRatio = DefaultHeightRatio
	}
	if c.GlowColor == (color.NRGBA{}) {
		c.GlowColor = DefaultGlowColor
	}
	return c
}

// Chooser returns an index in [0, n).
type Chooser func(n int) int

// Option configures a Compositor.
type Option func(*Compositor)

// WithChooser replaces the uniform random template choice.
func WithChooser(choose Chooser) Option {
	return func(c *Compositor) { c.choose = choose }
}

// WithIDFunc replaces the uuid used for card file names.
func WithIDFunc(id func() string) Option {
	return func(c *Compositor) { c.newID = id }
}

// CardOption adjusts a single card.
type CardOption func(*cardSettings)

type cardSettings struct {
	shift float64
	glow  color.NRGBA
}

// WithUpwardShift lifts the subject by ratio of the canvas height.
func WithUpwardShift(ratio float64) CardOption {
	return func(s *cardSettings) { s.shift = ratio }
}

// WithGlowColor sets the glow colour.
func WithGlowColor(r, g, b uint8) CardOption {
	return func(s *cardSettings) { s.glow = color.NRGBA{R: r, G: g, B: b, A: 255} }
}

// Compositor is safe for concurrent use.
type Compositor struct {
	templates *resources.TemplatePool
	remover   bgremoval.Remover
	store     cardstore.Store
	cfg       Config
	choose    Chooser
	newID     func() string
	logger    *zap.Logger
}

// New builds a Compositor over the shared template pool.
func New(templates *resources.TemplatePool, remover bgremoval.Remover, store cardstore.Store, cfg Config, logger *zap.Logger, opts ...Option) *Compositor {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Compositor{
		templates: templates,
		remover:   remover,
		store:     store,
		cfg:       cfg.withDefaults(),
		choose:    rand.IntN,
		newID:     uuid.NewString,
		logger:    logger.Named("compositor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Composite is a rendered card before encoding.
type Composite struct {
	Image     *image.NRGBA
	Template  int
	Placement Placement
}

// Compose renders img onto a template. The template itself is not modified.
func (c *Compositor) Compose(ctx context.Context, img image.Image, opts ...CardOption) (*Composite, error) {
	settings := cardSettings{shift: c.cfg.UpwardShift, glow: c.cfg.GlowColor}
	for _, opt := range opts {
		opt(&settings)
	}

	subject, err := c.remover.Remove(ctx, img)
	if err != nil {
		if errors.Is(err, bgremoval.ErrBackgroundRemoval) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", bgremoval.ErrBackgroundRemoval, err)
	}
	sb := subject.Bounds()
	if sb.Empty() {
		return nil, fmt.Errorf("%w: empty subject", ErrComposition)
	}

	tpl, err := c.templates.Choose(c.choose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	canvas := tpl.Image.Bounds()

	glow := buildGlow(subject, c.cfg.FeatherRadius, c.cfg.GlowRadius, settings.glow)

	p := Place(canvas.Dx(), canvas.Dy(), sb.Dx(), sb.Dy(), c.cfg.HeightRatio, settings.shift)
	resizedSubject := imaging.Resize(subject, p.W, p.H, imaging.Lanczos)
	resizedGlow := imaging.Resize(glow, p.W, p.H, imaging.Lanczos)

	out := imaging.Overlay(tpl.Image, resizedGlow, image.Pt(p.X, p.Y), 1.0)
	out = imaging.Overlay(out, resizedSubject, image.Pt(p.X, p.Y), 1.0)

	return &Composite{Image: out, Template: tpl.Index, Placement: p}, nil
}

// MakeCard renders the image at path and stores it as "<id>.png", returning
// the store's reference for the card.
func (c *Compositor) MakeCard(ctx context.Context, path string, opts ...CardOption) (string, error) {
	img, err := imageio.Open(path)
	if err != nil {
		return "", err
	}
	comp, err := c.Compose(ctx, img, opts...)
	if err != nil {
		return "", err
	}
	data, err := imageio.EncodePNG(comp.Image)
	if err != nil {
		return "", fmt.Errorf("%w: encode png: %v", ErrComposition, err)
	}
	name := c.newID() + ".png"
	ref, err := c.store.Save(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrComposition, logging.NewOperationError("compositor.save_card", "", err))
	}
	c.logger.Debug("card generated",
		zap.String("card", ref),
		zap.Int("template", comp.Template),
		zap.Int("x", comp.Placement.X),
		zap.Int("y", comp.Placement.Y),
	)
	return ref, nil
}

// RemoveCard deletes a card previously returned by MakeCard.
func (c *Compositor) RemoveCard(ctx context.Context, ref string) error {
	return c.store.Remove(ctx, ref)
}
