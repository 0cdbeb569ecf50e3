package extractor

import (
	"fmt"
	"sync"

	"github.com/barasher/go-exiftool"
)

// Software is written into the Software tag of outputs that carry copied metadata.
const Software = "image-compress"

// preservedTags are copied from source to output. Orientation is only added
// when pixels are encoded as stored rather than rotated upright.
var preservedTags = []string{
	"Make",
	"Model",
	"LensModel",
	"DateTimeOriginal",
	"CreateDate",
	"ModifyDate",
	"OffsetTimeOriginal",
	"Artist",
	"Copyright",
	"ImageDescription",
	"GPSLatitude",
	"GPSLatitudeRef",
	"GPSLongitude",
	"GPSLongitudeRef",
	"GPSAltitude",
	"GPSAltitudeRef",
}

// ExiftoolCopier copies a whitelist of tags using a long-running exiftool process.
type ExiftoolCopier struct {
	mu   sync.Mutex
	et   *exiftool.Exiftool
	tags []string
}

// NewExiftoolCopier starts exiftool. It fails when the exiftool binary is not installed.
func NewExiftoolCopier(keepOrientation bool) (*ExiftoolCopier, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	tags := append([]string(nil), preservedTags...)
	if keepOrientation {
		tags = append(tags, "Orientation")
	}
	return &ExiftoolCopier{et: et, tags: tags}, nil
}

// Copy writes the preserved tags found in src into dst and stamps Software.
func (c *ExiftoolCopier) Copy(src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	srcMeta := c.et.ExtractMetadata(src)
	if len(srcMeta) == 0 {
		return fmt.Errorf("no metadata returned for %s", src)
	}
	if srcMeta[0].Err != nil {
		return fmt.Errorf("read metadata: %w", srcMeta[0].Err)
	}

	dstMeta := exiftool.EmptyFileMetadata()
	dstMeta.File = dst
	for _, tag := range c.tags {
		if v, ok := srcMeta[0].Fields[tag]; ok {
			dstMeta.SetString(tag, fmt.Sprint(v))
		}
	}
	dstMeta.SetString("Software", Software)

	batch := []exiftool.FileMetadata{dstMeta}
	c.et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("write metadata: %w", batch[0].Err)
	}
	return nil
}

// Close stops the exiftool process.
func (c *ExiftoolCopier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.et.Close()
}
