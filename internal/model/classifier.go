package model

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Brownie44l1/shape-sketch/internal/pipeline"
)

var (
	ErrModelNotReady = errors.New("model not ready")
	ErrModelLoad     = errors.New("failed to load model")
)

// Runner executes the loaded model on one flat input tensor.
type Runner interface {
	Run(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// Loader opens a model file for the given metadata.
type Loader func(modelPath string, metadata Metadata) (Runner, error)

// State is the lifecycle of a classifier handle.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Classifier wraps the inference runtime. The runner is assigned at most once,
// by the load goroutine; Infer never waits for it.
type Classifier struct {
	metadata Metadata
	loader   Loader

	once    sync.Once
	done    chan struct{}
	ready   atomic.Bool
	runner  Runner
	loadErr error
}

func NewClassifier(metadata Metadata, loader Loader) *Classifier {
	return &Classifier{
		metadata: metadata,
		loader:   loader,
		done:     make(chan struct{}),
	}
}

// Load starts loading modelPath in the background and returns a channel that
// is closed when loading finishes. Only the first call has any effect. A
// failed load is logged and never retried.
func (c *Classifier) Load(modelPath string) <-chan struct{} {
	c.once.Do(func() {
		go func() {
			defer close(c.done)

			runner, err := c.loader(modelPath, c.metadata)
			if err != nil {
				c.loadErr = fmt.Errorf("%w: %v", ErrModelLoad, err)
				log.Printf("Failed to load ONNX model: %v", err)
				return
			}
			c.runner = runner
			c.ready.Store(true)
			log.Printf("Model loaded: %s", modelPath)
		}()
	})
	return c.done
}

// Wait blocks until the load finishes or ctx is done.
func (c *Classifier) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Classifier) Ready() bool {
	return c.ready.Load()
}

func (c *Classifier) State() State {
	if c.ready.Load() {
		return StateReady
	}
	select {
	case <-c.done:
		return StateFailed
	default:
		return StateLoading
	}
}

// Infer runs the model on t. It fails fast with ErrModelNotReady while the
// model is loading and forever after a failed load.
func (c *Classifier) Infer(ctx context.Context, t pipeline.Tensor) (ScoreVector, error) {
	if !c.ready.Load() {
		return nil, ErrModelNotReady
	}
	if len(t.Data) != c.metadata.InputSize() || !sameShape(t.Shape, c.metadata.InputShape) {
		return nil, fmt.Errorf("%w: tensor %v with %d values, model wants %v",
			pipeline.ErrShapeMismatch, t.Shape, len(t.Data), c.metadata.InputShape)
	}

	out, err := c.runner.Run(ctx, t.Data)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(out) != NumClasses {
		return nil, fmt.Errorf("%w: model returned %d scores, want %d", ErrScoreLength, len(out), NumClasses)
	}
	return ScoreVector(out), nil
}

func (c *Classifier) Runner() Runner {
	if !c.ready.Load() {
		return nil
	}
	return c.runner
}

func (c *Classifier) Close() error {
	if !c.ready.Load() {
		return nil
	}
	return c.runner.Close()
}

func sameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
