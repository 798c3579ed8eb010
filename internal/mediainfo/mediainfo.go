package mediainfo

import (
	"bytes"
	"fmt"
	"image"

	// decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info describes an uploaded image.
type Info struct {
	Format string
	Width  int
	Height int
}

func (i Info) String() string {
	return fmt.Sprintf("%s %dx%d", i.Format, i.Width, i.Height)
}

// Probe decodes only the image header of content. ok is false for anything
// that is not a supported image.
func Probe(content []byte) (Info, bool) {
	if len(content) == 0 {
		return Info{}, false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, false
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, true
}
