// Package imaging provides the in-process image work of the transfer
// pipeline: input validation, color-mode normalization, optional
// enhancement, and bounded resizing. The heavy transforms (alignment,
// compositing) are performed by external tools and are out of scope here.
package imaging

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Decode reads a PNG or JPEG image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load reads an image from the specified path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes an image to path. Format is determined by file extension
// (png, jpg/jpeg); anything else is written as PNG.
func Save(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		return png.Encode(f, img)
	}
}

// Normalize converts any image to an opaque NRGBA representation, the
// 3-channel form the staging step writes to disk. Alpha is dropped, not
// composited. An already-opaque NRGBA image is returned unchanged.
func Normalize(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Opaque() {
		return n
	}

	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			i := dst.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			dst.Pix[i] = uint8(r >> 8)
			dst.Pix[i+1] = uint8(g >> 8)
			dst.Pix[i+2] = uint8(b >> 8)
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// Stats summarizes pixel intensities across all color channels.
type Stats struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Mode   string  `json:"mode"`
	Mean   float64 `json:"mean_intensity"`
	StdDev float64 `json:"std_intensity"`
	Min    uint8   `json:"min_intensity"`
	Max    uint8   `json:"max_intensity"`
}

// Summarize computes channel statistics for img.
func Summarize(img image.Image) Stats {
	n := Normalize(img)
	bounds := n.Bounds()

	st := Stats{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Mode:   colorMode(img),
		Min:    0xff,
	}

	var sum, sumSq float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := n.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := n.Pix[i+c]
				sum += float64(v)
				sumSq += float64(v) * float64(v)
				if v < st.Min {
					st.Min = v
				}
				if v > st.Max {
					st.Max = v
				}
				count++
			}
		}
	}
	if count > 0 {
		st.Mean = sum / float64(count)
		variance := sumSq/float64(count) - st.Mean*st.Mean
		if variance > 0 {
			st.StdDev = math.Sqrt(variance)
		}
	}
	return st
}
