package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
)

// Bitmap is a row-major R*R grid, index y*R+x.
type Bitmap []float32

// Ones counts the pixels equal to 1.
func (b Bitmap) Ones() int {
	n := 0
	for _, v := range b {
		if v == 1 {
			n++
		}
	}
	return n
}

// Binarize averages red, green and blue of every pixel (alpha ignored) and
// encodes the result according to polarity.
func Binarize(img image.Image, polarity Polarity) Bitmap {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := make(Bitmap, w*h)

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			avg := (float64(px[0]) + float64(px[1]) + float64(px[2])) / 3
			out[y*w+x] = encode(avg, polarity)
		}
	}
	return out
}

func encode(avg float64, polarity Polarity) float32 {
	if polarity == DarkInk {
		return float32((255 - avg) / 255)
	}
	if avg/255 > 0.5 {
		return 1
	}
	return 0
}

// toNRGBA returns a zero-origin non-premultiplied view of img, matching the
// byte layout a canvas hands back from getImageData.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
