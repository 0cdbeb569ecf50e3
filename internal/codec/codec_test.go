package codec

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient returns a w×h image with varying colors and the given alpha.
func gradient(w, h int, alpha uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8(x + y), A: alpha})
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image, format imaging.Format) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, imaging.Encode(f, img, format))
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "icon.png")
	writeImage(t, pngPath, gradient(16, 8, 128), imaging.PNG)

	probe, err := Inspect(pngPath)
	require.NoError(t, err)
	assert.True(t, probe.OK)
	assert.Equal(t, FormatPNG, probe.Format)
	assert.Equal(t, 16, probe.Width)
	assert.Equal(t, 8, probe.Height)
	assert.Equal(t, "NRGBA", probe.ColorModel)

	textPath := filepath.Join(dir, "notes.jpg")
	require.NoError(t, os.WriteFile(textPath, []byte("definitely not a jpeg"), 0644))

	probe, err = Inspect(textPath)
	require.NoError(t, err, "a non-image is a result, not an error")
	assert.False(t, probe.OK)
	assert.NotEmpty(t, probe.Reason)

	_, err = Inspect(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestHasAlpha(t *testing.T) {
	assert.True(t, HasAlpha(gradient(4, 4, 100)))
	assert.False(t, HasAlpha(gradient(4, 4, 255)), "fully opaque NRGBA is treated as RGB")
	assert.False(t, HasAlpha(image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)))
	assert.False(t, HasAlpha(image.NewGray(image.Rect(0, 0, 4, 4))))

	opaque := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.White})
	assert.False(t, HasAlpha(opaque))

	transparent := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.Transparent})
	assert.True(t, HasAlpha(transparent), "a transparent palette entry counts even if unused")
}

func TestNormalize(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	src.SetGray(1, 1, color.Gray{Y: 200})

	out, hasAlpha := Normalize(src)
	assert.False(t, hasAlpha)
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, out.NRGBAAt(1, 1))

	out, hasAlpha = Normalize(gradient(3, 3, 64))
	assert.True(t, hasAlpha)
	assert.Equal(t, uint8(64), out.NRGBAAt(2, 2).A)
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 0})

	out := Flatten(img)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(0, 0))
}

func TestEncodeWebPLosslessPreservesPixels(t *testing.T) {
	src := gradient(32, 16, 180)

	var buf bytes.Buffer
	err := NewDefaultEncoder().Encode(&buf, src, Options{Format: FormatWebP, Lossless: true})
	require.NoError(t, err)

	decoded, name, err := image.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "webp", name)

	got := imaging.Clone(decoded)
	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.Pix, got.Pix)
}

func TestEncodeWebPLosslessKeepsTransparentPixels(t *testing.T) {
	src := gradient(32, 16, 255)
	// Transparent background with colored RGB underneath, as in exported icons.
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 200, G: uint8(x * 20), B: uint8(y * 10), A: 0})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, NewDefaultEncoder().Encode(&buf, src, Options{Format: FormatWebP, Lossless: true}))

	decoded, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, src.Pix, imaging.Clone(decoded).Pix)
}

func TestEncodeWebPLossyIsDeterministic(t *testing.T) {
	src := gradient(64, 64, 255)
	opts := Options{Format: FormatWebP, Quality: 80}

	var a, b bytes.Buffer
	require.NoError(t, NewDefaultEncoder().Encode(&a, src, opts))
	require.NoError(t, NewDefaultEncoder().Encode(&b, src, opts))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestEncodeJPEGProgressive(t *testing.T) {
	src := gradient(64, 64, 255)

	var buf bytes.Buffer
	err := NewDefaultEncoder().Encode(&buf, src, Options{Format: FormatJPEG, Quality: 85, Progressive: true, Optimize: true})
	require.NoError(t, err)

	// SOF2 marks a progressive DCT frame.
	assert.True(t, bytes.Contains(buf.Bytes(), []byte{0xFF, 0xC2}))

	_, name, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", name)
}

func TestEncodeJPEGFlattensAlpha(t *testing.T) {
	var buf bytes.Buffer
	err := NewDefaultEncoder().Encode(&buf, gradient(8, 8, 0), Options{Format: FormatJPEG, Quality: 90})
	require.NoError(t, err)

	decoded, err := imaging.Decode(&buf)
	require.NoError(t, err)
	r, g, b, _ := decoded.At(4, 4).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestEncodeUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := NewDefaultEncoder().Encode(&buf, gradient(2, 2, 255), Options{Format: FormatUnknown})
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	results := Supported(NewDefaultEncoder())
	require.Len(t, results, len(Formats))
	for _, res := range results {
		assert.True(t, res.Encode, "%s encode: %v", res.Format, res.Err)
		assert.True(t, res.Decode, "%s decode: %v", res.Format, res.Err)
	}
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, FormatJPEG, FormatFromName("jpeg"))
	assert.Equal(t, FormatWebP, FormatFromName("WEBP"))
	assert.Equal(t, FormatUnknown, FormatFromName("heic"))
	assert.True(t, IsJPEGExt(".JPG"))
	assert.True(t, IsJPEGExt(".jpeg"))
	assert.False(t, IsJPEGExt(".png"))
}
