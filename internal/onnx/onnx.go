// Package onnx binds the classifier to onnxruntime. Each pooled session owns
// pre-allocated input and output tensors.
package onnx

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/Brownie44l1/shape-sketch/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

var initMu sync.Mutex

// InitializeEnvironment loads the onnxruntime shared library once per process.
func InitializeEnvironment(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

func DestroyEnvironment() {
	initMu.Lock()
	defer initMu.Unlock()

	if !ort.IsInitialized() {
		return
	}
	if err := ort.DestroyEnvironment(); err != nil {
		log.Printf("Failed to destroy ONNX environment: %v", err)
	}
}

// Loader returns a model.Loader backed by a pool of poolSize sessions.
func Loader(libPath string, poolSize int) model.Loader {
	return func(modelPath string, metadata model.Metadata) (model.Runner, error) {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, fmt.Errorf("model file not found: %w", err)
		}
		if err := InitializeEnvironment(libPath); err != nil {
			return nil, err
		}

		threads := runtime.NumCPU() / max(poolSize, 1)
		return model.NewSessionPool(func() (model.Session, error) {
			return newSession(modelPath, metadata, max(threads, 1))
		}, poolSize)
	}
}

type session struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newSession(modelPath string, metadata model.Metadata, threads int) (*session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("error setting inter-op threads: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	s, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &session{
		session:      s,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Run copies input into the session tensor and returns a copy of the scores.
func (s *session) Run(input []float32) ([]float32, error) {
	data := s.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("input has %d values, tensor holds %d", len(input), len(data))
	}
	copy(data, input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := s.outputTensor.GetData()
	return append([]float32(nil), out...), nil
}

func (s *session) Destroy() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}
