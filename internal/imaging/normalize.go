package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Normalized is an image re-encoded from its decoded pixels.
type Normalized struct {
	Data     []byte
	MIMEType string
	// Format is the encoder used, which is the source format when one exists.
	Format string
	Width  int
	Height int
}

// NormalizeFile opens the image at path and re-encodes it.
func NormalizeFile(path string) (*Normalized, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image failed: %w", err)
	}
	defer f.Close()
	return Normalize(f)
}

// Normalize decodes r and encodes it again in its original format, or as JPEG
// when that format has no encoder. Dimensions and quality defaults are kept.
func Normalize(r io.Reader) (*Normalized, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image failed: %w", err)
	}

	var buf bytes.Buffer
	mimeType := ""
	switch format {
	case "png":
		err = png.Encode(&buf, img)
		mimeType = "image/png"
	case "gif":
		err = gif.Encode(&buf, img, nil)
		mimeType = "image/gif"
	case "bmp":
		err = bmp.Encode(&buf, img)
		mimeType = "image/bmp"
	case "tiff":
		err = tiff.Encode(&buf, img, nil)
		mimeType = "image/tiff"
	default:
		format = "jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
		mimeType = "image/jpeg"
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s failed: %w", format, err)
	}

	bounds := img.Bounds()
	return &Normalized{
		Data:     buf.Bytes(),
		MIMEType: mimeType,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}
