package extractor

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// EXIFExtractor reads orientation tags using EXIF metadata.
// Results are cached by path, size and modification time, since a file is
// usually reported several times while it is being written.
type EXIFExtractor struct {
	logger logrus.FieldLogger
	cache  *sync.Map
	stats  CacheStats
	mutex  sync.RWMutex
}

// NewEXIFExtractor returns a new EXIFExtractor.
func NewEXIFExtractor(logger logrus.FieldLogger) *EXIFExtractor {
	return &EXIFExtractor{
		logger: logger,
		cache:  &sync.Map{},
	}
}

// Orientation returns the EXIF orientation of filePath. Files without EXIF
// data (PNG, GIF, most WebP) report OrientationNormal and no error.
func (e *EXIFExtractor) Orientation(filePath string) (Orientation, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("failed to stat file: %w", err)
	}

	key := e.getCacheKey(filePath, fileInfo)
	if value, ok := e.cache.Load(key); ok {
		e.incrementCacheHits()
		return value.(Orientation), nil
	}
	e.incrementCacheMisses()

	o, err := e.extractWithGoExif(filePath)
	if err != nil {
		e.logger.Debugf("No EXIF orientation for %s: %v", filePath, err)
		o = OrientationNormal
	}
	e.cache.Store(key, o)
	return o, nil
}

// GetCacheStats returns cache statistics for this extractor.
func (e *EXIFExtractor) GetCacheStats() CacheStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := e.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

// extractWithGoExif reads the orientation tag using the rwcarlsen/goexif library.
func (e *EXIFExtractor) extractWithGoExif(filePath string) (Orientation, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationUnknown, err
	}
	v, err := tag.Int(0)
	if err != nil {
		return OrientationUnknown, fmt.Errorf("invalid orientation tag: %w", err)
	}

	o := Orientation(v)
	if o < OrientationNormal || o > OrientationRotate90 {
		return OrientationUnknown, fmt.Errorf("orientation out of range: %d", v)
	}
	return o, nil
}

// getCacheKey returns a cache key for the given file path and file info.
func (e *EXIFExtractor) getCacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (e *EXIFExtractor) incrementCacheHits() {
	e.mutex.Lock()
	e.stats.Hits++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

func (e *EXIFExtractor) incrementCacheMisses() {
	e.mutex.Lock()
	e.stats.Misses++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

// ApplyOrientation transforms img so that it displays upright.
func ApplyOrientation(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate270:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate90:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
