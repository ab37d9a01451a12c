package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// PreviewSize is the edge length of the diagnostic magnified copy.
const PreviewSize = 140

// Resample renders the drawing surface into a size x size buffer. Nearest
// keeps hard pixels; Linear blends neighbouring samples.
func Resample(src image.Image, size int, smoothing Smoothing) *image.NRGBA {
	filter := imaging.Linear
	if smoothing == Nearest {
		filter = imaging.NearestNeighbor
	}
	return imaging.Resize(src, size, size, filter)
}

// Preview magnifies a resampled image without interpolation so individual
// model pixels stay visible. It has no effect on inference.
func Preview(resampled image.Image, size int) image.Image {
	if size <= 0 {
		size = PreviewSize
	}
	return resize.Resize(uint(size), uint(size), resampled, resize.NearestNeighbor)
}
