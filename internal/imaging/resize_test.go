package imaging

import (
	"math"
	"testing"
)

func TestFitWithinNeverUpscales(t *testing.T) {
	src := testImage(100, 80)
	out := FitWithin(src, 1024, 1024)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 80 {
		t.Fatalf("image inside the bound must keep its size, got %dx%d",
			out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestFitWithinShrinksAndKeepsAspect(t *testing.T) {
	cases := []struct {
		w, h   int
		maxW   int
		maxH   int
		wantW  int
		wantH  int
	}{
		{1000, 500, 300, 300, 300, 150},
		{500, 1000, 300, 300, 150, 300},
		{2048, 2048, 1024, 1024, 1024, 1024},
	}

	for _, c := range cases {
		out := FitWithin(testImage(c.w, c.h), c.maxW, c.maxH)
		gotW, gotH := out.Bounds().Dx(), out.Bounds().Dy()
		if gotW != c.wantW || gotH != c.wantH {
			t.Fatalf("FitWithin(%dx%d, %d, %d) = %dx%d, want %dx%d",
				c.w, c.h, c.maxW, c.maxH, gotW, gotH, c.wantW, c.wantH)
		}

		srcRatio := float64(c.w) / float64(c.h)
		gotRatio := float64(gotW) / float64(gotH)
		if math.Abs(gotRatio-srcRatio)/srcRatio > 0.01 {
			t.Fatalf("aspect ratio drifted: source %.4f, result %.4f", srcRatio, gotRatio)
		}
	}
}

func TestResizeExact(t *testing.T) {
	out := ResizeExact(testImage(100, 100), 40, 70)
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 70 {
		t.Fatalf("got %dx%d, want 40x70", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestCropCenter(t *testing.T) {
	out := CropCenter(testImage(100, 100), 40, 60)
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 60 {
		t.Fatalf("got %dx%d, want 40x60", out.Bounds().Dx(), out.Bounds().Dy())
	}
}
