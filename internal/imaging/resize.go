package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// FitWithin downscales img so it fits inside maxWidth x maxHeight. The
// aspect ratio is preserved and images already within the bounds are
// returned unchanged; this function never upscales.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return img
	}

	scale := minFloat(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	if scale >= 1 {
		return img
	}

	return scaleTo(img, int(float64(w)*scale), int(float64(h)*scale))
}

// ResizeExact resizes img to exactly width x height, ignoring aspect.
func ResizeExact(img image.Image, width, height int) image.Image {
	return scaleTo(img, width, height)
}

// CropCenter cuts a width x height window out of the middle of img.
func CropCenter(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	left := bounds.Min.X + (bounds.Dx()-width)/2
	top := bounds.Min.Y + (bounds.Dy()-height)/2
	rect := image.Rect(0, 0, width, height)

	dst := image.NewNRGBA(rect)
	draw.Copy(dst, image.Point{}, img, image.Rect(left, top, left+width, top+height), draw.Src, nil)
	return dst
}

func scaleTo(img image.Image, width, height int) image.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
