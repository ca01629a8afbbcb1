// Package normalize turns arbitrary headshot images into the canonical
// portrait used by generated sites.
package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"

	"github.com/disintegration/imaging"
	// Register WebP with image.Decode so imaging.Decode accepts it.
	_ "golang.org/x/image/webp"

	"github.com/zdub15/agent-website-generator/internal/profile"
)

// Defaults for the canonical headshot.
const (
	DefaultWidth    = 800
	DefaultHeight   = 1000
	DefaultQuality  = 95
	DefaultHeadroom = 1.2
	DefaultSharpen  = 1.0
)

// ErrEmptyImage is returned when the input buffer is empty.
var ErrEmptyImage = fmt.Errorf("%w: empty image", profile.ErrInvalidImage)

// Normalizer resizes, crops, sharpens and re-encodes headshots.
type Normalizer struct {
	Width    int
	Height   int
	Quality  int
	Headroom float64
	Sharpen  float64
}

// NewNormalizer returns a Normalizer with the canonical defaults.
func NewNormalizer() Normalizer {
	return Normalizer{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		Quality:  DefaultQuality,
		Headroom: DefaultHeadroom,
		Sharpen:  DefaultSharpen,
	}
}

// Normalize decodes buf and returns a JPEG of exactly Width x Height.
func (n Normalizer) Normalize(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(buf), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", profile.ErrInvalidImage, err)
	}
	out := n.Transform(img)

	var dst bytes.Buffer
	if err := n.encode(&dst, out); err != nil {
		return nil, err
	}
	return dst.Bytes(), nil
}

// Transform applies the upscale, top-anchored cover crop and sharpen steps.
func (n Normalizer) Transform(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < n.Width || h < n.Height {
		scale := math.Max(math.Max(float64(n.Width)/float64(w), float64(n.Height)/float64(h)), 1) * n.headroom()
		img = imaging.Resize(img,
			int(math.Round(float64(w)*scale)),
			int(math.Round(float64(h)*scale)),
			imaging.Lanczos)
	}
	filled := imaging.Fill(img, n.Width, n.Height, imaging.Top, imaging.Lanczos)
	if n.Sharpen > 0 {
		return imaging.Sharpen(filled, n.Sharpen)
	}
	return filled
}

func (n Normalizer) encode(w io.Writer, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: n.Quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

func (n Normalizer) headroom() float64 {
	if n.Headroom < 1 {
		return 1
	}
	return n.Headroom
}
