package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

type fakeRunner struct {
	scores []float32
	err    error

	mu     sync.Mutex
	inputs [][]float32
	closed bool
}

func (f *fakeRunner) Run(_ context.Context, input []float32) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, append([]float32(nil), input...))
	if f.err != nil {
		return nil, f.err
	}
	return append([]float32(nil), f.scores...), nil
}

func (f *fakeRunner) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// gatedLoader blocks the load until release is closed.
func gatedLoader(runner Runner, err error, release <-chan struct{}, calls *atomic.Int32) Loader {
	return func(string, Metadata) (Runner, error) {
		if calls != nil {
			calls.Add(1)
		}
		if release != nil {
			<-release
		}
		if err != nil {
			return nil, err
		}
		return runner, nil
	}
}

var errMissingModel = errors.New("open models/missing.onnx: no such file or directory")

type fakeSession struct {
	out       []float32
	err       error
	destroyed atomic.Bool
}

func (s *fakeSession) Run(input []float32) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]float32(nil), s.out...), nil
}

func (s *fakeSession) Destroy() {
	s.destroyed.Store(true)
}
