package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResizeImage decodes an image and resizes it to the given width and height.
//
// Arguments:
//   - img: The image to resize. Its pixels are decoded on first use.
//   - width: The width to resize the image to.
//   - height: The height to resize the image to.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the dimensions are invalid or the image fails to decode.
func ResizeImage(img *Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	src, err := img.Decode()
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return src, nil
	}
	return resize.Resize(uint(width), uint(height), src, resize.Bilinear), nil
}

// PlanarRGB writes a size x size image into dst as three planes (red, green, blue) of
// values in [0, 1].
//
// Arguments:
//   - img: The image, already resized to size x size.
//   - size: The side of the square input.
//   - dst: The destination buffer. Must hold at least 3*size*size floats.
//
// Returns:
//   - error: An error if dst is too small.
func PlanarRGB(img image.Image, size int, dst []float32) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
