package resources

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/example/winner-card/internal/imageio"
)

// ErrTemplateMissing reports a canvas template that could not be loaded.
var ErrTemplateMissing = errors.New("canvas template missing")

// Template is one decoded canvas. Image must be treated as read-only.
type Template struct {
	Index int
	Path  string
	Image *image.NRGBA
}

// TemplatePool is the fixed set of canvases cards are drawn on.
type TemplatePool struct {
	templates []Template
}

// LoadTemplates decodes count templates named by pattern (1-based, e.g.
// "canvas%d.jpg") under dir. Any missing or unreadable file fails the load.
func LoadTemplates(dir, pattern string, count int) (*TemplatePool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: template count must be positive, got %d", ErrTemplateMissing, count)
	}
	pool := &TemplatePool{templates: make([]Template, 0, count)}
	for i := 1; i <= count; i++ {
		path := filepath.Join(dir, fmt.Sprintf(pattern, i))
		img, err := imageio.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateMissing, path, err)
		}
		pool.templates = append(pool.templates, Template{Index: i - 1, Path: path, Image: imaging.Clone(img)})
	}
	return pool, nil
}

// NewTemplatePool wraps already decoded canvases.
func NewTemplatePool(images ...image.Image) *TemplatePool {
	pool := &TemplatePool{templates: make([]Template, 0, len(images))}
	for i, img := range images {
		pool.templates = append(pool.templates, Template{Index: i, Image: imaging.Clone(img)})
	}
	return pool
}

// Len returns the number of templates.
func (p *TemplatePool) Len() int {
	return len(p.templates)
}

// Get returns template i. It panics when i is out of range, like a slice index.
func (p *TemplatePool) Get(i int) Template {
	return p.templates[i]
}

// Choose returns the template selected by choose, which must return a value in [0, n).
func (p *TemplatePool) Choose(choose func(n int) int) (Template, error) {
	if len(p.templates) == 0 {
		return Template{}, fmt.Errorf("%w: pool is empty", ErrTemplateMissing)
	}
	i := choose(len(p.templates))
	if i < 0 || i >= len(p.templates) {
		return Template{}, fmt.Errorf("template index %d out of range [0,%d)", i, len(p.templates))
	}
	return p.templates[i], nil
}
