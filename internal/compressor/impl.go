package compressor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhaochunqi/image-compress/internal/codec"
	"github.com/zhaochunqi/image-compress/internal/config"
	"github.com/zhaochunqi/image-compress/internal/extractor"
	"github.com/zhaochunqi/image-compress/internal/logger"
)

const (
	// Large JPEG sources are capped at this quality when kept as JPEG.
	largeJPEGThreshold  = 1024 * 1024
	largeJPEGQualityCap = 85
)

// Option configures a DefaultCompressor.
type Option func(*DefaultCompressor)

// WithEncoder replaces the codec encoder.
func WithEncoder(enc codec.Encoder) Option {
	return func(c *DefaultCompressor) { c.encoder = enc }
}

// WithOrientationReader replaces the EXIF orientation reader. nil disables auto-orientation.
func WithOrientationReader(r extractor.OrientationReader) Option {
	return func(c *DefaultCompressor) { c.orientation = r }
}

// WithMetadataCopier replaces the metadata copier. nil disables metadata preservation.
func WithMetadataCopier(m extractor.MetadataCopier) Option {
	return func(c *DefaultCompressor) { c.metadata = m }
}

// DefaultCompressor is the default implementation of the Compressor interface.
// It is not safe for concurrent use on the same output directory; the
// service feeds it one file at a time.
type DefaultCompressor struct {
	cfg         *config.Config
	log         logrus.FieldLogger
	encoder     codec.Encoder
	orientation extractor.OrientationReader
	metadata    extractor.MetadataCopier
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(cfg *config.Config, log logrus.FieldLogger, opts ...Option) *DefaultCompressor {
	c := &DefaultCompressor{
		cfg:     cfg,
		log:     log,
		encoder: codec.NewDefaultEncoder(),
	}
	if cfg.AutoOrient {
		c.orientation = extractor.NewEXIFExtractor(log)
	}
	if cfg.PreserveMetadata {
		copier, err := extractor.NewExiftoolCopier(!cfg.AutoOrient)
		if err != nil {
			log.Warnf("Metadata preservation disabled: %v", err)
		} else {
			c.metadata = copier
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the metadata copier, if any.
func (c *DefaultCompressor) Close() error {
	if c.metadata != nil {
		return c.metadata.Close()
	}
	return nil
}

// OrientationCacheStats reports the orientation reader's cache usage. It
// returns false when auto-orientation is off or the reader keeps no cache.
func (c *DefaultCompressor) OrientationCacheStats() (extractor.CacheStats, bool) {
	reporter, ok := c.orientation.(extractor.CacheReporter)
	if !ok {
		return extractor.CacheStats{}, false
	}
	return reporter.GetCacheStats(), true
}

// OutputPath returns the output file for sourcePath: the source base name
// with the configured output extension, inside the compressed directory.
func OutputPath(cfg *config.Config, sourcePath string) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(cfg.CompressedDir, name+cfg.OutputExt(ext))
}

// tempPath returns a hidden file beside outputPath that keeps its extension.
func tempPath(outputPath string) string {
	dir, base := filepath.Split(outputPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".tmp"+ext)
}

// EncodeOptions selects the output format and settings for one source.
func EncodeOptions(cfg *config.Config, sourceExt string, detected codec.Format, originalSize int64) codec.Options {
	if cfg.ConvertToWebP {
		return codec.Options{
			Format:   codec.FormatWebP,
			Quality:  cfg.Quality,
			Lossless: cfg.Lossless,
		}
	}

	if codec.IsJPEGExt(sourceExt) {
		quality := cfg.Quality
		if originalSize > largeJPEGThreshold && quality > largeJPEGQualityCap {
			quality = largeJPEGQualityCap
		}
		return codec.Options{
			Format:      codec.FormatJPEG,
			Quality:     quality,
			Optimize:    true,
			Progressive: true,
		}
	}

	format := detected
	if format == codec.FormatUnknown {
		format = codec.FormatPNG
	}
	quality := cfg.Quality
	if cfg.Lossless {
		quality = 100
	}
	return codec.Options{
		Format:   format,
		Quality:  quality,
		Lossless: cfg.Lossless,
		Optimize: true,
	}
}

// Process runs the pipeline for a single file.
func (c *DefaultCompressor) Process(ctx context.Context, sourcePath string) (res Result) {
	res = Result{
		SourcePath: sourcePath,
		StartedAt:  time.Now(),
	}
	log := logger.WithFile(c.log, sourcePath)

	defer func() {
		if r := recover(); r != nil {
			res.fail(fmt.Errorf("panic: %v", r))
			log.WithFields(logrus.Fields{
				"error_kind": res.ErrorKind().String(),
				"stack":      string(debug.Stack()),
			}).Errorf("Error processing image %s: %v", sourcePath, r)
		}
		res.FinishedAt = time.Now()
	}()

	if err := ctx.Err(); err != nil {
		res.fail(err)
		return res
	}

	if err := c.process(sourcePath, log, &res); err != nil {
		res.fail(err)
		log.WithFields(logrus.Fields{
			"error_kind": res.ErrorKind().String(),
			"error_type": fmt.Sprintf("%T", rootCause(err)),
			"stack":      string(debug.Stack()),
		}).Errorf("Error processing image %s: %v", sourcePath, err)
	}
	return res
}

func (c *DefaultCompressor) process(sourcePath string, log *logrus.Entry, res *Result) error {
	log.Info("Checking if file is an image")
	probe, err := codec.Inspect(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", ErrIO, err)
	}
	if !probe.OK {
		log.Infof("File is not an image, skipping: %s", probe.Reason)
		res.Action = ActionSkipped
		res.Error = fmt.Errorf("%w: %s", ErrNotAnImage, probe.Reason)
		res.Message = "Not an image"
		return nil
	}
	res.SourceFormat = probe.Format

	outputPath := OutputPath(c.cfg, sourcePath)
	res.OutputPath = outputPath
	log.Infof("Output path: %s", outputPath)

	info, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: stat source: %v", ErrIO, err)
	}
	res.OriginalSize = info.Size()

	log.Infof("Opening image (original size: %d bytes)", res.OriginalSize)
	img, err := codec.Decode(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	log.Infof("Image info - Mode: %s, Size: %dx%d, Format: %s",
		probe.ColorModel, probe.Width, probe.Height, probe.Format)

	if c.orientation != nil {
		if o, err := c.orientation.Orientation(sourcePath); err == nil && o.NeedsTransform() {
			log.Infof("Applying EXIF orientation: %s", o)
			img = extractor.ApplyOrientation(img, o)
		}
	}

	normalized, hasAlpha := codec.Normalize(img)
	if hasAlpha {
		log.Infof("Converting image mode from %s to RGBA", probe.ColorModel)
	} else {
		log.Infof("Converting image mode from %s to RGB", probe.ColorModel)
	}

	opts := EncodeOptions(c.cfg, filepath.Ext(sourcePath), probe.Format, res.OriginalSize)
	res.OutputFormat = opts.Format
	logEncodeChoice(log, opts)

	var buf bytes.Buffer
	if err := c.encoder.Encode(&buf, normalized, opts); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncode, opts.Format, err)
	}

	tmpPath := tempPath(outputPath)
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: write temp file: %v", ErrIO, err)
	}
	if c.metadata != nil {
		if err := c.metadata.Copy(sourcePath, tmpPath); err != nil {
			log.Warnf("Metadata not copied: %v", err)
		}
	}

	if err := c.finalize(sourcePath, tmpPath, outputPath, log, res); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	c.report(outputPath, log, res)
	return nil
}

// finalize keeps the smaller of the re-encoded temp file and the source.
func (c *DefaultCompressor) finalize(sourcePath, tmpPath, outputPath string, log *logrus.Entry, res *Result) error {
	tmpInfo, err := os.Stat(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: stat temp file: %v", ErrIO, err)
	}

	if tmpInfo.Size() >= res.OriginalSize {
		log.Info("Compressed file is larger than original, keeping original file")
		if err := os.Remove(tmpPath); err != nil {
			return fmt.Errorf("%w: remove temp file: %v", ErrIO, err)
		}
		if err := copyFile(sourcePath, outputPath); err != nil {
			return fmt.Errorf("%w: copy original: %v", ErrIO, err)
		}
		res.Action = ActionOriginal
		res.Message = "Compressed file not smaller than original, saved original"
		return nil
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrIO, err)
	}
	res.Action = ActionCompressed
	res.Message = "Image compressed"
	return nil
}

func (c *DefaultCompressor) report(outputPath string, log *logrus.Entry, res *Result) {
	log.Infof("Image processing completed: %s -> %s", res.SourcePath, outputPath)

	info, err := os.Stat(outputPath)
	if err != nil {
		log.Warn("Warning: Output file was not created successfully")
		return
	}
	res.Success = true
	res.CompressedSize = info.Size()
	reduction := res.OriginalSize - res.CompressedSize
	if res.OriginalSize > 0 {
		res.PercentageSaved = float64(reduction) * 100 / float64(res.OriginalSize)
	}

	log.WithFields(logrus.Fields{
		"original_size":   res.OriginalSize,
		"compressed_size": res.CompressedSize,
		"action":          res.Action,
	}).Infof("Compression results: %d -> %d bytes, reduced by %d bytes (%.1f%%)",
		res.OriginalSize, res.CompressedSize, reduction, res.PercentageSaved)
}

func logEncodeChoice(log *logrus.Entry, opts codec.Options) {
	switch {
	case opts.Format == codec.FormatWebP && opts.Lossless:
		log.Info("Saving in WebP format, using lossless compression mode")
	case opts.Format == codec.FormatWebP:
		log.Infof("Saving in WebP format, using lossy compression mode, quality: %d", opts.Quality)
	case opts.Format == codec.FormatJPEG && opts.Progressive:
		log.Infof("Using optimized progressive JPEG compression, quality: %d", opts.Quality)
	case opts.Lossless:
		log.Infof("Saving in original format (%s), using lossless compression mode", opts.Format)
	default:
		log.Infof("Saving in original format (%s), quality: %d", opts.Format, opts.Quality)
	}
}

func (r *Result) fail(err error) {
	r.Action = ActionError
	r.Message = err.Error()
	r.Error = err
	r.Success = false
}

// copyFile copies src to dst through a temp file, keeping the source's
// permission bits and modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp := tempPath(dst)
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
