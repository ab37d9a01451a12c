package pipeline

import (
	"image"
	"image/color"
	"image/draw"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// disc draws a filled, non-antialiased white disc on black.
func disc(size int, cx, cy, r float64) *image.NRGBA {
	img := solid(size, size, color.Black)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func bitmapFrom(size int, ones ...[2]int) Bitmap {
	b := make(Bitmap, size*size)
	for _, p := range ones {
		b[p[1]*size+p[0]] = 1
	}
	return b
}
