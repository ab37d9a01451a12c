package pipeline

import (
	"fmt"
	"image"
	"time"
)

// Pipeline turns a drawing into the tensor a shape classifier expects:
// resample, binarize, optionally close, pack.
type Pipeline struct {
	cfg Config
}

// Result keeps every intermediate so callers can inspect what the model saw.
type Result struct {
	Resampled *image.NRGBA
	Bitmap    Bitmap
	Tensor    Tensor

	ResampleTime   time.Duration
	PreprocessTime time.Duration
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg}, nil
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Process(img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty drawing surface", ErrShapeMismatch)
	}
	size := p.cfg.Resolution

	resampleStart := time.Now()
	resampled := Resample(img, size, p.cfg.Smoothing)
	resampleTime := time.Since(resampleStart)

	prepStart := time.Now()
	bitmap := Binarize(resampled, p.cfg.Polarity)
	if p.cfg.Closing {
		closed, err := Close(bitmap, size)
		if err != nil {
			return nil, fmt.Errorf("close bitmap: %w", err)
		}
		bitmap = closed
	}

	tensor, err := BuildTensor(bitmap, size)
	if err != nil {
		return nil, fmt.Errorf("build tensor: %w", err)
	}

	return &Result{
		Resampled:      resampled,
		Bitmap:         bitmap,
		Tensor:         tensor,
		ResampleTime:   resampleTime,
		PreprocessTime: time.Since(prepStart),
	}, nil
}
