package pipeline

import "fmt"

// Close applies one dilation followed by one erosion over the 8-neighbourhood.
//
// Neighbours outside the image are skipped in both passes. For dilation this
// means they never contribute ink; for erosion it means they never veto it, so
// border pixels survive on the strength of the neighbours that exist.
func Close(b Bitmap, size int) (Bitmap, error) {
	if len(b) != size*size {
		return nil, fmt.Errorf("%w: bitmap has %d values, want %d", ErrShapeMismatch, len(b), size*size)
	}
	return erode(dilate(b, size), size), nil
}

func dilate(b Bitmap, size int) Bitmap {
	out := make(Bitmap, len(b))
	for i := range b {
		if b[i] == 1 || anyNeighbour(b, size, i, 1) {
			out[i] = 1
		}
	}
	return out
}

func erode(b Bitmap, size int) Bitmap {
	out := make(Bitmap, len(b))
	for i := range b {
		if b[i] == 0 {
			continue
		}
		if !anyNeighbour(b, size, i, 0) {
			out[i] = 1
		}
	}
	return out
}

// anyNeighbour reports whether any in-bounds pixel of the 3x3 window centred
// on i (centre included) equals v.
func anyNeighbour(b Bitmap, size, i int, v float32) bool {
	x, y := i%size, i/size
	for dy := -1; dy <= 1; dy++ {
		yy := y + dy
		if yy < 0 || yy >= size {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			xx := x + dx
			if xx < 0 || xx >= size {
				continue
			}
			if b[yy*size+xx] == v {
				return true
			}
		}
	}
	return false
}
