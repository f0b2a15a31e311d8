package imaging

import (
	"image"
	"math"
)

// Enhance adjusts brightness, contrast, sharpness, and color saturation,
// in that fixed order. The operations do not commute in their rounding
// behavior, so the order is part of the contract. A factor of 1.0 is a
// no-op for its channel and is skipped rather than applied; if every
// factor is 1.0 the input is returned untouched.
func Enhance(img *image.NRGBA, brightness, contrast, sharpness, color float64) *image.NRGBA {
	if brightness != 1.0 {
		img = AdjustBrightness(img, brightness)
	}
	if contrast != 1.0 {
		img = AdjustContrast(img, contrast)
	}
	if sharpness != 1.0 {
		img = AdjustSharpness(img, sharpness)
	}
	if color != 1.0 {
		img = AdjustColor(img, color)
	}
	return img
}

// AdjustBrightness interpolates between a black image and the input.
// Factor 0.0 yields black, 1.0 the original, >1.0 a brighter image.
func AdjustBrightness(img *image.NRGBA, factor float64) *image.NRGBA {
	return blendChannels(img, factor, func(x, y int, c int, v uint8) float64 {
		return 0
	})
}

// AdjustContrast interpolates between a solid mid-gray image (the mean
// luminance of the input) and the input.
func AdjustContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	mean := meanLuminance(img)
	return blendChannels(img, factor, func(x, y int, c int, v uint8) float64 {
		return mean
	})
}

// AdjustColor interpolates between the grayscale rendition of the input
// and the input, scaling color saturation.
func AdjustColor(img *image.NRGBA, factor float64) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			gray := luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = blendValue(gray, img.Pix[i+c], factor)
			}
			dst.Pix[i+3] = img.Pix[i+3]
		}
	}
	return dst
}

// AdjustSharpness interpolates between a smoothed rendition of the input
// and the input. Factor <1.0 softens, >1.0 sharpens.
func AdjustSharpness(img *image.NRGBA, factor float64) *image.NRGBA {
	smoothed := smooth(img)
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = blendValue(float64(smoothed.Pix[i+c]), img.Pix[i+c], factor)
			}
			dst.Pix[i+3] = img.Pix[i+3]
		}
	}
	return dst
}

// blendChannels interpolates each color channel between a degenerate
// value and the source value; alpha passes through.
func blendChannels(img *image.NRGBA, factor float64, degenerate func(x, y, c int, v uint8) float64) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := img.Pix[i+c]
				dst.Pix[i+c] = blendValue(degenerate(x, y, c, v), v, factor)
			}
			dst.Pix[i+3] = img.Pix[i+3]
		}
	}
	return dst
}

// blendValue computes degenerate + factor*(value-degenerate), rounded
// and clamped to the 8-bit range.
func blendValue(degenerate float64, value uint8, factor float64) uint8 {
	out := degenerate + factor*(float64(value)-degenerate)
	return clampU8(math.Round(out))
}

func clampU8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// luminance is the ITU-R 601-2 weighting used for grayscale conversion.
func luminance(r, g, b uint8) float64 {
	return (299*float64(r) + 587*float64(g) + 114*float64(b)) / 1000
}

func meanLuminance(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			sum += luminance(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Floor(sum/float64(count) + 0.5)
}

// smoothKernel is the 3x3 smoothing kernel the sharpness degenerate
// image is built from.
var smoothKernel = [3][3]float64{
	{1.0 / 13, 1.0 / 13, 1.0 / 13},
	{1.0 / 13, 5.0 / 13, 1.0 / 13},
	{1.0 / 13, 1.0 / 13, 1.0 / 13},
}

// smooth convolves the interior with smoothKernel; the one-pixel border
// is copied from the source so border pixels are unaffected.
func smooth(img *image.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(bounds)
	copy(dst.Pix, img.Pix)

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var sum [3]float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					i := img.PixOffset(x+kx, y+ky)
					k := smoothKernel[ky+1][kx+1]
					sum[0] += float64(img.Pix[i]) * k
					sum[1] += float64(img.Pix[i+1]) * k
					sum[2] += float64(img.Pix[i+2]) * k
				}
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i] = clampU8(math.Round(sum[0]))
			dst.Pix[i+1] = clampU8(math.Round(sum[1]))
			dst.Pix[i+2] = clampU8(math.Round(sum[2]))
		}
	}
	return dst
}
