package blur

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
)

func TestComputeKernel(t *testing.T) {
	for _, tt := range []struct {
		name  string
		sigma float64
		size  int
		err   error
	}{
		{name: "default", sigma: 1.5, size: 9},
		{name: "odd rounding", sigma: 1.0, size: 5},
		{name: "even rounding", sigma: 2.0, size: 11},
		{name: "tiny", sigma: 0.1, size: 1},
		{name: "too small", sigma: 0.05, err: ErrInvalidSigma},
		{name: "zero", sigma: 0, err: ErrInvalidSigma},
		{name: "negative", sigma: -1.5, err: ErrInvalidSigma},
	} {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ComputeKernel(tt.sigma)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted error %v, got %v", tt.err, err)
			}
			if tt.err != nil {
				return
			}

			if k.Size != tt.size {
				t.Fatalf("wanted size %d, got %d", tt.size, k.Size)
			}

			if k.Size%2 != 1 {
				t.Errorf("kernel size %d is not odd", k.Size)
			}

			if len(k.Weights) != k.Size*k.Size {
				t.Fatalf("kernel is not square: %d weights for size %d", len(k.Weights), k.Size)
			}

			center := k.At(k.Radius(), k.Radius())
			for i := range k.Size {
				for j := range k.Size {
					w := k.At(i, j)
					if w > center {
						t.Errorf("weight (%d,%d)=%d exceeds center %d", i, j, w, center)
					}
					if w < 1 {
						t.Errorf("weight (%d,%d)=%d is not positive", i, j, w)
					}
					if mirror := k.At(k.Size-1-i, k.Size-1-j); mirror != w {
						t.Errorf("weight (%d,%d)=%d differs from its 180 degree rotation %d", i, j, w, mirror)
					}
					if transposed := k.At(j, i); transposed != w {
						t.Errorf("weight (%d,%d)=%d differs from its transpose %d", i, j, w, transposed)
					}
				}
			}

			if corner := k.At(0, 0); corner != 1 {
				t.Errorf("wanted corner weight 1, got %d", corner)
			}
		})
	}
}

func TestComputeKernelFalloff(t *testing.T) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		t.Fatal(err)
	}

	r := k.Radius()
	for j := 0; j < r; j++ {
		if k.At(r, j) > k.At(r, j+1) {
			t.Errorf("weights along the middle row must rise toward the center: %d > %d at column %d", k.At(r, j), k.At(r, j+1), j)
		}
	}
}

func noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = uint8(rng.IntN(256))
		img.Pix[i+1] = uint8(rng.IntN(256))
		img.Pix[i+2] = uint8(rng.IntN(256))
		img.Pix[i+3] = 0xff
	}
	return img
}

func TestApplyBorderUnchanged(t *testing.T) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		t.Fatal(err)
	}

	src := noise(40, 30)
	dst, err := Apply(t.Context(), src, k)
	if err != nil {
		t.Fatal(err)
	}

	r := k.Radius()
	b := src.Bounds()
	changed := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			border := x < r || y < r || x >= b.Max.X-r || y >= b.Max.Y-r
			if border {
				if src.RGBAAt(x, y) != dst.RGBAAt(x, y) {
					t.Fatalf("border pixel (%d,%d) changed: %v -> %v", x, y, src.RGBAAt(x, y), dst.RGBAAt(x, y))
				}
				continue
			}
			if src.RGBAAt(x, y) != dst.RGBAAt(x, y) {
				changed++
			}
		}
	}

	if changed == 0 {
		t.Error("no interior pixel changed after blurring noise")
	}
}

func TestApplyUniformIsStable(t *testing.T) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		t.Fatal(err)
	}

	want := color.RGBA{R: 200, G: 120, B: 40, A: 0xff}
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			src.SetRGBA(x, y, want)
		}
	}

	dst, err := Apply(t.Context(), src, k)
	if err != nil {
		t.Fatal(err)
	}

	for y := range 32 {
		for x := range 32 {
			if got := dst.RGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d): wanted %v, got %v", x, y, want, got)
			}
		}
	}
}

func TestApplyDoesNotMutateSource(t *testing.T) {
	k, err := ComputeKernel(1.0)
	if err != nil {
		t.Fatal(err)
	}

	src := noise(16, 16)
	before := append([]uint8(nil), src.Pix...)

	if _, err := Apply(t.Context(), src, k); err != nil {
		t.Fatal(err)
	}

	for i := range before {
		if before[i] != src.Pix[i] {
			t.Fatalf("source byte %d changed", i)
		}
	}
}

func TestApplySmallerThanKernel(t *testing.T) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		t.Fatal(err)
	}

	src := noise(5, 5)
	dst, err := Apply(t.Context(), src, k)
	if err != nil {
		t.Fatal(err)
	}

	for i := range src.Pix {
		if src.Pix[i] != dst.Pix[i] {
			t.Fatal("an image smaller than the kernel must be returned unchanged")
		}
	}
}

func TestApplyMalformedKernel(t *testing.T) {
	for _, k := range []Kernel{
		{},
		{Size: 2, Weights: []int{1, 1, 1, 1}},
		{Size: 3, Weights: []int{1, 1}},
		{Size: 1, Weights: []int{0}},
	} {
		if _, err := Apply(t.Context(), noise(8, 8), k); err == nil {
			t.Errorf("kernel %+v: wanted an error", k)
		}
	}
}

func TestApplyCanceled(t *testing.T) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := Apply(ctx, noise(64, 64), k); !errors.Is(err, context.Canceled) {
		t.Errorf("wanted context.Canceled, got %v", err)
	}
}

func BenchmarkApply(b *testing.B) {
	k, err := ComputeKernel(1.5)
	if err != nil {
		b.Fatal(err)
	}
	src := noise(200, 100)

	for b.Loop() {
		if _, err := Apply(b.Context(), src, k); err != nil {
			b.Fatal(err)
		}
	}
}
