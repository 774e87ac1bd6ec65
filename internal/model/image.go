package model

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// decodeImage decodes JPEG or PNG bytes.
func decodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: unsupported image (JPEG, PNG): %v", ErrInvalidInput, err)
	}
	return img, format, nil
}

// preprocessImage converts an image to the planar CHW layout the graph
// expects: resized to size x size, scaled to [0, 1], then normalised by
// mean and std when given.
func preprocessImage(img image.Image, size, channels int, mean, std []float32) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	inputData := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rNorm := float32(r) / 65535.0
			gNorm := float32(g) / 65535.0
			bNorm := float32(b) / 65535.0

			pixelIndex := y*width + x
			if channels == 1 {
				inputData[pixelIndex] = 0.299*rNorm + 0.587*gNorm + 0.114*bNorm
				continue
			}
			inputData[pixelIndex] = rNorm
			inputData[plane+pixelIndex] = gNorm
			inputData[2*plane+pixelIndex] = bNorm
		}
	}

	if len(mean) == channels || len(std) == channels {
		for c := 0; c < channels; c++ {
			m, s := float32(0), float32(1)
			if len(mean) == channels {
				m = mean[c]
			}
			if len(std) == channels {
				s = std[c]
			}
			p := inputData[c*plane : (c+1)*plane]
			for i := range p {
				p[i] = (p[i] - m) / s
			}
		}
	}
	return inputData
}
