// Package blur implements an integer-quantized Gaussian convolution used to
// soften rendered challenges against character segmentation.
package blur

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

var ErrInvalidSigma = errors.New("blur: sigma must produce a kernel of at least one cell")

// Kernel is a square matrix of integer weights with an odd side length.
type Kernel struct {
	Size    int   `json:"size"`
	Weights []int `json:"weights"` // row-major, Size*Size entries
}

// Radius is the distance from the center cell to an edge of the kernel.
func (k Kernel) Radius() int { return k.Size / 2 }

// At returns the weight at row i, column j.
func (k Kernel) At(i, j int) int { return k.Weights[i*k.Size+j] }

// Sum returns the total of all weights, the divisor used by Apply.
func (k Kernel) Sum() int {
	var result int
	for _, w := range k.Weights {
		result += w
	}
	return result
}

func (k Kernel) String() string {
	var sb strings.Builder
	width := len(fmt.Sprint(k.At(k.Radius(), k.Radius())))
	for i := range k.Size {
		for j := range k.Size {
			if j != 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%*d", width, k.At(i, j))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ComputeKernel builds a Gaussian kernel whose side is round(6*sigma), made
// odd by subtracting one when even. Weights are exp(-(i²+j²)/(2σ²)) divided
// by the corner weight and rounded, so corners are 1 and the center holds the
// maximum.
func ComputeKernel(sigma float64) (Kernel, error) {
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= 0 {
		return Kernel{}, fmt.Errorf("%w: got %v", ErrInvalidSigma, sigma)
	}

	size := int(math.Round(sigma * 6))
	if size%2 == 0 {
		size--
	}
	if size < 1 {
		return Kernel{}, fmt.Errorf("%w: got %v", ErrInvalidSigma, sigma)
	}

	radius := size / 2
	gaussian := func(i, j int) float64 {
		return math.Exp(-float64(i*i+j*j) / (2 * sigma * sigma))
	}
	scale := 1 / gaussian(-radius, -radius)

	result := Kernel{
		Size:    size,
		Weights: make([]int, size*size),
	}

	for i := -radius; i <= radius; i++ {
		for j := -radius; j <= radius; j++ {
			result.Weights[(i+radius)*size+(j+radius)] = int(math.Round(scale * gaussian(i, j)))
		}
	}

	return result, nil
}

// Apply convolves src with k and returns a new image. Only pixels at least
// k.Radius() away from every edge are convolved; the border is copied from
// src unchanged. Rows are processed concurrently.
func Apply(ctx context.Context, src *image.RGBA, k Kernel) (*image.RGBA, error) {
	if k.Size < 1 || k.Size%2 == 0 || len(k.Weights) != k.Size*k.Size {
		return nil, fmt.Errorf("blur: malformed kernel of size %d with %d weights", k.Size, len(k.Weights))
	}

	sum := k.Sum()
	if sum <= 0 {
		return nil, fmt.Errorf("blur: kernel weights sum to %d", sum)
	}

	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	copy(dst.Pix, src.Pix)

	radius := k.Radius()
	minX, maxX := bounds.Min.X+radius, bounds.Max.X-radius
	minY, maxY := bounds.Min.Y+radius, bounds.Max.Y-radius

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for y := minY; y < maxY; y++ {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			for x := minX; x < maxX; x++ {
				var acc [4]int
				for i := range k.Size {
					row := src.PixOffset(x-radius, y+i-radius)
					for j := range k.Size {
						w := k.Weights[i*k.Size+j]
						p := src.Pix[row+j*4 : row+j*4+4 : row+j*4+4]
						acc[0] += int(p[0]) * w
						acc[1] += int(p[1]) * w
						acc[2] += int(p[2]) * w
						acc[3] += int(p[3]) * w
					}
				}

				o := dst.PixOffset(x, y)
				dst.Pix[o+0] = uint8(acc[0] / sum)
				dst.Pix[o+1] = uint8(acc[1] / sum)
				dst.Pix[o+2] = uint8(acc[2] / sum)
				dst.Pix[o+3] = uint8(acc[3] / sum)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dst, nil
}
