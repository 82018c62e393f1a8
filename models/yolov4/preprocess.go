package yolov4

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-eval/images"
)

func imageFloats(size int) int {
	return 3 * size * size
}

// PreProcess packs the images into dst as consecutive planar RGB blocks in [0, 1].
//
// Slots past len(input) are zeroed so a short chunk runs on a full size batch.
//
// Arguments:
//   - input: The images to pack. Each is resized to the model input size.
//   - dst: The runner input buffer.
//
// Returns:
//   - error: An error if an image fails to decode or dst cannot hold the images.
func (m *YOLOv4) PreProcess(input []images.Image, dst []float32) error {
	size := m.options.InputSize
	block := imageFloats(size)
	if len(dst) < len(input)*block {
		return errors.Errorf("destination holds %d floats, %d images need %d", len(dst), len(input), len(input)*block)
	}

	for i := range input {
		// Decode a copy so the caller's batch is left untouched.
		src := input[i]
		img, err := images.ResizeImage(&src, size, size)
		if err != nil {
			return errors.Wrapf(err, "image %d", i)
		}
		if err := images.PlanarRGB(img, size, dst[i*block:(i+1)*block]); err != nil {
			return err
		}
	}
	clear(dst[len(input)*block:])
	return nil
}
