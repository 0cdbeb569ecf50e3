// Package codec wraps the image libraries used to decode sources and
// encode outputs.
//
// Decoding goes through the image registry. imaging registers JPEG, PNG,
// GIF, TIFF and BMP, and this package adds WebP. Encoding is split between
// imaging (PNG, GIF, TIFF, BMP), go-libjpeg (progressive, optimized JPEG)
// and go-webp (lossy and lossless WebP).
package codec

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Format identifies an image container format.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatTIFF    Format = "tiff"
	FormatBMP     Format = "bmp"
	FormatWebP    Format = "webp"
)

// Formats lists every format this package can decode and encode.
var Formats = []Format{FormatJPEG, FormatPNG, FormatGIF, FormatTIFF, FormatBMP, FormatWebP}

// String returns the upper-case name of the format.
func (f Format) String() string {
	if f == FormatUnknown {
		return "UNKNOWN"
	}
	return strings.ToUpper(string(f))
}

// FormatFromName maps a decoder name as returned by image.DecodeConfig.
func FormatFromName(name string) Format {
	switch strings.ToLower(name) {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "tiff":
		return FormatTIFF
	case "bmp":
		return FormatBMP
	case "webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// IsJPEGExt reports whether ext (with leading dot) is a JPEG extension.
func IsJPEGExt(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".jpg" || ext == ".jpeg"
}

// Probe is the result of checking whether a file is a decodable image.
// A file that is not an image yields OK == false with a Reason; that is an
// expected outcome, not an error.
type Probe struct {
	OK         bool
	Reason     string
	Format     Format
	Width      int
	Height     int
	ColorModel string
}

// Inspect reads the image header of path. The returned error is reserved
// for I/O failures such as a missing or unreadable file.
func Inspect(path string) (Probe, error) {
	f, err := os.Open(path)
	if err != nil {
		return Probe{}, err
	}
	defer f.Close()

	cfg, name, err := image.DecodeConfig(f)
	if err != nil {
		return Probe{OK: false, Reason: err.Error()}, nil
	}
	return Probe{
		OK:         true,
		Format:     FormatFromName(name),
		Width:      cfg.Width,
		Height:     cfg.Height,
		ColorModel: colorModelName(cfg.ColorModel),
	}, nil
}

// Decode reads the full image at path.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// HasAlpha reports whether img carries transparency. Paletted images count
// when any palette entry is not fully opaque. Other images count when they
// contain at least one non-opaque pixel.
func HasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	}

	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// Normalize converts img to 8-bit NRGBA. Sources without transparency end up
// fully opaque, so encoders can treat them as plain RGB. The second result
// reports whether the alpha channel carries information.
func Normalize(img image.Image) (*image.NRGBA, bool) {
	return imaging.Clone(img), HasAlpha(img)
}

// Flatten composites img over an opaque white background.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func colorModelName(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "Paletted"
	}
	switch m {
	case color.RGBAModel:
		return "RGBA"
	case color.RGBA64Model:
		return "RGBA64"
	case color.NRGBAModel:
		return "NRGBA"
	case color.NRGBA64Model:
		return "NRGBA64"
	case color.AlphaModel, color.Alpha16Model:
		return "Alpha"
	case color.GrayModel:
		return "Gray"
	case color.Gray16Model:
		return "Gray16"
	case color.YCbCrModel:
		return "YCbCr"
	case color.NYCbCrAModel:
		return "NYCbCrA"
	case color.CMYKModel:
		return "CMYK"
	}
	return "Unknown"
}
