package pipeline

import "fmt"

// Tensor is a float32 buffer with logical shape [1, 1, R, R].
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Shape returns the [1, 1, size, size] input shape.
func Shape(size int) []int64 {
	return []int64{1, 1, int64(size), int64(size)}
}

// BuildTensor copies b unchanged into a fresh tensor.
func BuildTensor(b []float32, size int) (Tensor, error) {
	if size <= 0 || len(b) != size*size {
		return Tensor{}, fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(b), size*size)
	}
	data := make([]float32, len(b))
	copy(data, b)
	return Tensor{Shape: Shape(size), Data: data}, nil
}
