package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/pixiv/go-libjpeg/jpeg"
)

// webpLosslessLevel trades encode time for size, 0 (fast) to 9 (small).
const webpLosslessLevel = 6

// Options controls a single encode.
type Options struct {
	Format      Format
	Quality     int
	Lossless    bool
	Progressive bool
	Optimize    bool
}

// Encoder writes img to w in the requested format.
type Encoder interface {
	Encode(w io.Writer, img image.Image, opts Options) error
}

// DefaultEncoder is the default implementation of the Encoder interface.
type DefaultEncoder struct{}

// NewDefaultEncoder creates a new DefaultEncoder instance.
func NewDefaultEncoder() *DefaultEncoder {
	return &DefaultEncoder{}
}

// Encode encodes img according to opts.
func (e *DefaultEncoder) Encode(w io.Writer, img image.Image, opts Options) error {
	switch opts.Format {
	case FormatWebP:
		return encodeWebP(w, img, opts)
	case FormatJPEG:
		return encodeJPEG(w, img, opts)
	case FormatPNG:
		level := png.DefaultCompression
		if opts.Optimize {
			level = png.BestCompression
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	case FormatGIF:
		return imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(256))
	case FormatTIFF:
		return imaging.Encode(w, img, imaging.TIFF)
	case FormatBMP:
		return imaging.Encode(w, img, imaging.BMP)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func encodeWebP(w io.Writer, img image.Image, opts Options) error {
	var (
		options *encoder.Options
		err     error
	)
	if opts.Lossless {
		options, err = encoder.NewLosslessEncoderOptions(encoder.PresetDefault, webpLosslessLevel)
	} else {
		options, err = encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(clampQuality(opts.Quality)))
	}
	if err != nil {
		return fmt.Errorf("webp options: %w", err)
	}
	if opts.Lossless {
		// Keep RGB under fully transparent pixels; libwebp rewrites it otherwise.
		options.Exact = 1
	}
	return webp.Encode(w, img, options)
}

func encodeJPEG(w io.Writer, img image.Image, opts Options) error {
	// JPEG has no alpha channel.
	if HasAlpha(img) {
		img = Flatten(img)
	}
	return jpeg.Encode(w, toRGBA(img), &jpeg.EncoderOptions{
		Quality:         clampQuality(opts.Quality),
		OptimizeCoding:  opts.Optimize,
		ProgressiveMode: opts.Progressive,
	})
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// FormatSupport reports the result of a round-trip self test for one format.
type FormatSupport struct {
	Format Format
	Encode bool
	Decode bool
	Err    error
}

// Supported encodes and decodes a small sample in every format so that
// missing codec support shows up before the first real file.
func Supported(enc Encoder) []FormatSupport {
	sample := imaging.New(4, 4, image.White.C)

	results := make([]FormatSupport, 0, len(Formats))
	for _, f := range Formats {
		res := FormatSupport{Format: f}

		var buf bytes.Buffer
		if err := enc.Encode(&buf, sample, Options{Format: f, Quality: 90}); err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		res.Encode = true

		_, name, err := image.Decode(&buf)
		if err != nil {
			res.Err = err
		} else {
			res.Decode = FormatFromName(name) == f
		}
		results = append(results, res)
	}
	return results
}
