package compositor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// buildGlow returns a layer the size of subject, filled with c, whose alpha
// is the subject mask feathered by feather and then spread by radius.
func buildGlow(subject *image.NRGBA, feather, radius float64, c color.NRGBA) *image.NRGBA {
	b := subject.Bounds()
	mask := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := subject.Pix[y*subject.Stride : y*subject.Stride+b.Dx()*4]
		dst := mask.Pix[y*mask.Stride : y*mask.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			a := src[x*4+3]
			dst[x*4+0] = a
			dst[x*4+1] = a
			dst[x*4+2] = a
			dst[x*4+3] = 0xff
		}
	}
	feathered := imaging.Blur(mask, feather)

	glow := image.NewNRGBA(mask.Bounds())
	for i := 0; i < len(glow.Pix); i += 4 {
		glow.Pix[i+0] = c.R
		glow.Pix[i+1] = c.G
		glow.Pix[i+2] = c.B
		glow.Pix[i+3] = uint8(uint32(feathered.Pix[i]) * uint32(c.A) / 0xff)
	}
	return imaging.Blur(glow, radius)
}
