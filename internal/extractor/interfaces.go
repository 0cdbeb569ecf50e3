package extractor

// Orientation is the EXIF orientation tag value, 1 through 8.
type Orientation int

const (
	OrientationUnknown    Orientation = 0
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate270  Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotate90   Orientation = 8
)

// String returns a human-readable description of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationNormal:
		return "normal"
	case OrientationFlipH:
		return "flip horizontal"
	case OrientationRotate180:
		return "rotate 180"
	case OrientationFlipV:
		return "flip vertical"
	case OrientationTranspose:
		return "transpose"
	case OrientationRotate270:
		return "rotate 90 cw"
	case OrientationTransverse:
		return "transverse"
	case OrientationRotate90:
		return "rotate 90 ccw"
	default:
		return "unknown"
	}
}

// NeedsTransform reports whether pixels must be transformed to display upright.
func (o Orientation) NeedsTransform() bool {
	return o > OrientationNormal && o <= OrientationRotate90
}

// OrientationReader reads the EXIF orientation of an image file.
type OrientationReader interface {
	Orientation(filePath string) (Orientation, error)
}

// MetadataCopier copies descriptive metadata from one image file to another.
type MetadataCopier interface {
	Copy(src, dst string) error
	Close() error
}

// CacheReporter is implemented by readers that cache lookups.
type CacheReporter interface {
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	TotalQueries int64
}
