// Package imaging renders challenge text onto a distorted raster.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging/blur"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	xdraw "golang.org/x/image/draw"
)

const MimeType = "image/png"

// Layout constants for the distortion grid and glyph placement.
const (
	lineCount         = 8
	verticalSpacing   = 25
	horizontalSpacing = 10
	textSpacing       = 30
	glyphOffset       = -5
	maxAngleDegrees   = 30
)

var (
	ErrInvalidDimensions = errors.New("imaging: width and height must be positive")
	ErrBadFont           = errors.New("imaging: can't load font")
)

// Options configures a Canvas. Zero values are replaced by defaults in
// NewCanvas.
type Options struct {
	Width     int
	Height    int
	Font      *opentype.Font
	FontSize  float64 // points
	DPI       float64
	LineWidth float64 // pixels
	BlurSigma float64 // zero disables blurring
}

// Canvas draws challenge text with randomized distortion lines and rotated
// glyphs. A Canvas is safe for concurrent use; all per-render state lives on
// the stack of Render.
type Canvas struct {
	opts   Options
	kernel *blur.Kernel
}

// DefaultFont returns the embedded Go Regular typeface.
func DefaultFont() *opentype.Font {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic(fmt.Sprintf("[unexpected] embedded font does not parse: %v", err))
	}
	return f
}

// LoadFont parses a TrueType or OpenType font from disk.
func LoadFont(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrBadFont, path, err)
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrBadFont, path, err)
	}

	return f, nil
}

func NewCanvas(opts Options) (*Canvas, error) {
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if opts.Width == 0 {
		opts.Width = captcha.DefaultImageWidth
	}
	if opts.Height == 0 {
		opts.Height = captcha.DefaultImageHeight
	}
	if opts.Font == nil {
		opts.Font = DefaultFont()
	}
	if opts.FontSize == 0 {
		opts.FontSize = 24
	}
	if opts.DPI == 0 {
		opts.DPI = 96
	}
	if opts.LineWidth == 0 {
		opts.LineWidth = 3
	}

	result := &Canvas{opts: opts}

	if opts.BlurSigma != 0 {
		k, err := blur.ComputeKernel(opts.BlurSigma)
		if err != nil {
			return nil, err
		}
		result.kernel = &k
	}

	return result, nil
}

// Options returns the effective options after defaults were applied.
func (c *Canvas) Options() Options { return c.opts }

// Render draws text and, when configured, blurs the result. rng must be
// owned by the caller for the duration of the call.
func (c *Canvas) Render(ctx context.Context, rng *rand.Rand, text string) (*image.RGBA, error) {
	face, err := opentype.NewFace(c.opts.Font, &opentype.FaceOptions{
		Size:    c.opts.FontSize,
		DPI:     c.opts.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFont, err)
	}
	defer face.Close()

	w, h := c.opts.Width, c.opts.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(img, img.Bounds(), image.White, image.Point{}, xdraw.Src)

	slide := 7 + rng.IntN(6)

	for i := range lineCount {
		x := float32(i * verticalSpacing)
		c.line(img, lineColor(rng), x+float32(slide), 0, x, float32(h))
	}

	for i := range lineCount {
		y := float32(i * horizontalSpacing)
		c.line(img, lineColor(rng), 0, y, float32(w), y+float32(slide))
	}

	for i, r := range []rune(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fill := color.RGBA{
			R: uint8(rng.IntN(199)),
			G: uint8(rng.IntN(199)),
			B: uint8(rng.IntN(199)),
			A: 0xff,
		}
		angle := float64(rng.IntN(2*maxAngleDegrees) - maxAngleDegrees)
		origin := f64.Vec2{float64(slide + i*textSpacing), float64(h / 2)}

		c.glyph(img, face, r, fill, origin, angle)
	}

	if c.kernel == nil {
		return img, nil
	}

	return blur.Apply(ctx, img, *c.kernel)
}

func lineColor(rng *rand.Rand) color.RGBA {
	return color.RGBA{
		R: uint8(180 + rng.IntN(75)),
		G: uint8(180 + rng.IntN(75)),
		B: uint8(180 + rng.IntN(75)),
		A: 0xff,
	}
}

// line strokes a segment of the configured width as a filled quad.
func (c *Canvas) line(dst *image.RGBA, col color.RGBA, x0, y0, x1, y1 float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}

	half := float32(c.opts.LineWidth) / 2
	nx, ny := -dy/length*half, dx/length*half

	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

// glyph draws r translated to origin and rotated by angle degrees, with the
// glyph's top-left corner at (glyphOffset, glyphOffset) in the rotated frame.
func (c *Canvas) glyph(dst *image.RGBA, face font.Face, r rune, fill color.RGBA, origin f64.Vec2, angle float64) {
	// The glyph is drawn upright onto a scratch image whose center is the
	// rotation origin, then composited with an affine transform.
	pad := int(math.Ceil(c.opts.FontSize*c.opts.DPI/72)) * 2
	scratch := image.NewRGBA(image.Rect(0, 0, pad*2, pad*2))

	ascent := face.Metrics().Ascent
	d := font.Drawer{
		Dst:  scratch,
		Src:  image.NewUniform(fill),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(pad + glyphOffset), Y: fixed.I(pad+glyphOffset) + ascent},
	}
	d.DrawString(string(r))

	sin, cos := math.Sincos(angle * math.Pi / 180)
	p := float64(pad)
	s2d := f64.Aff3{
		cos, -sin, origin[0] - cos*p + sin*p,
		sin, cos, origin[1] - sin*p - cos*p,
	}

	xdraw.BiLinear.Transform(dst, s2d, scratch, scratch.Bounds(), xdraw.Over, nil)
}

// EncodePNG encodes img as a PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: can't encode png: %w", err)
	}
	return buf.Bytes(), nil
}
