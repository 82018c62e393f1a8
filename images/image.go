// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	// Register the decoders accepted in Image.Data.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Image represents an image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`

	pixels image.Image
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatRaw marks an image built from already decoded pixels.
	FormatRaw ImageFormat = "raw"
)

// FromImage wraps already decoded pixels so they can travel through a batch without
// re-encoding.
func FromImage(img image.Image) Image {
	b := img.Bounds()
	return Image{
		Format: FormatRaw,
		Width:  b.Dx(),
		Height: b.Dy(),
		pixels: img,
	}
}

// Decode returns the pixels of the image, decoding Data on first use.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if Data is empty or cannot be decoded.
func (i *Image) Decode() (image.Image, error) {
	if i.pixels != nil {
		return i.pixels, nil
	}
	if len(i.Data) == 0 {
		return nil, errors.New("image has no data")
	}

	img, format, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s image", i.Format)
	}

	b := img.Bounds()
	i.pixels = img
	i.Width, i.Height = b.Dx(), b.Dy()
	if i.Format == "" {
		i.Format = ImageFormat(format)
	}
	return img, nil
}
