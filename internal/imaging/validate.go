package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"hairshop/internal/config"
)

// Constraints enumerates the checks an input image must pass before any
// disk or process work begins.
type Constraints struct {
	MinWidth          int
	MinHeight         int
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// DefaultConstraints returns the pipeline's stock constraints.
func DefaultConstraints() Constraints {
	return Constraints{
		MinWidth:          256,
		MinHeight:         256,
		MaxFileSizeBytes:  10 * 1024 * 1024,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
	}
}

// ConstraintsFromConfig builds constraints from the validation config
// section, filling gaps from the defaults.
func ConstraintsFromConfig(v config.Validation) Constraints {
	c := DefaultConstraints()
	if v.MinWidth > 0 {
		c.MinWidth = v.MinWidth
	}
	if v.MinHeight > 0 {
		c.MinHeight = v.MinHeight
	}
	if v.MaxFileSizeBytes > 0 {
		c.MaxFileSizeBytes = v.MaxFileSizeBytes
	}
	if len(v.AllowedExtensions) > 0 {
		c.AllowedExtensions = v.AllowedExtensions
	}
	return c
}

// Validator checks input images against a set of constraints. It never
// mutates the image and has no side effects; the first violated
// constraint wins.
type Validator struct {
	constraints Constraints
}

// NewValidator creates a validator with the given constraints.
func NewValidator(c Constraints) *Validator {
	return &Validator{constraints: c}
}

// ValidateImage checks an in-memory image's dimensions and color mode.
// A nil error means the image passed every check.
func (v *Validator) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("image is required")
	}

	bounds := img.Bounds()
	if bounds.Dx() < v.constraints.MinWidth {
		return fmt.Errorf("image width must be at least %dpx", v.constraints.MinWidth)
	}
	if bounds.Dy() < v.constraints.MinHeight {
		return fmt.Errorf("image height must be at least %dpx", v.constraints.MinHeight)
	}

	if mode := colorMode(img); !colorModeAllowed(img) {
		return fmt.Errorf("invalid image mode: %s. Expected RGB or RGBA", mode)
	}

	return nil
}

// ValidateFile checks a file's extension and size, then decodes it and
// validates the content. The decoded image is returned on success so the
// caller does not decode twice.
func (v *Validator) ValidateFile(path string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !v.extensionAllowed(ext) {
		return nil, fmt.Errorf("invalid file type %q. Allowed: %s",
			ext, strings.Join(v.constraints.AllowedExtensions, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error checking file size: %w", err)
	}
	if info.Size() > v.constraints.MaxFileSizeBytes {
		maxMB := float64(v.constraints.MaxFileSizeBytes) / (1024 * 1024)
		return nil, fmt.Errorf("file size exceeds %.1fMB limit", maxMB)
	}

	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := v.ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

func (v *Validator) extensionAllowed(ext string) bool {
	for _, allowed := range v.constraints.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// colorModeAllowed accepts the Go representations of RGB and RGBA
// content: direct-color images and JPEG's YCbCr encoding of RGB.
// Grayscale, paletted, and CMYK sources are rejected.
func colorModeAllowed(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.YCbCr:
		return true
	default:
		return false
	}
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return "RGBA"
	case *image.YCbCr:
		return "RGB"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	default:
		return fmt.Sprintf("%T", img)
	}
}
