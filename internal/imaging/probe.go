package imaging

import (
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo describes an image file header.
type ImageInfo struct {
	Width  int
	Height int
	Format string
	Size   int64
}

// Probe reads just enough of the file at path to report its pixel
// dimensions and container format. AVIF and HEIC carry no registered
// decoder and return an error.
func Probe(path string) (ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return ImageInfo{}, err
	}

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("decode image header: %w", err)
	}
	return ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Size:   stat.Size(),
	}, nil
}
