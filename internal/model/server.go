package model

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/Brownie44l1/shape-sketch/internal/pipeline"
	"github.com/google/uuid"
)

// Server ties preprocessing, the classifier and the decision rule together.
type Server struct {
	Metadata Metadata

	classifier *Classifier
	pipeline   *pipeline.Pipeline
	debug      bool
}

func NewServer(metadata Metadata, loader Loader, debug bool) (*Server, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	p, err := pipeline.New(metadata.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &Server{
		Metadata:   metadata,
		classifier: NewClassifier(metadata, loader),
		pipeline:   p,
		debug:      debug,
	}, nil
}

// Load starts the one-time background model load.
func (s *Server) Load(modelPath string) <-chan struct{} {
	return s.classifier.Load(modelPath)
}

func (s *Server) Wait(ctx context.Context) error {
	return s.classifier.Wait(ctx)
}

func (s *Server) State() State {
	return s.classifier.State()
}

// Pool returns the session pool backing the model, if there is one.
func (s *Server) Pool() *SessionPool {
	pool, _ := s.classifier.Runner().(*SessionPool)
	return pool
}

// Predict classifies an already preprocessed R*R input.
func (s *Server) Predict(ctx context.Context, inputData []float32) (*PredictionResponse, error) {
	tensor, err := pipeline.BuildTensor(inputData, s.Metadata.Resolution)
	if err != nil {
		return nil, err
	}
	timings := &ProcessingTimings{RequestID: uuid.New().String()}
	return s.classify(ctx, tensor, timings, time.Now())
}

// PredictImage runs the full preprocessing pipeline on a drawing and
// classifies the result.
func (s *Server) PredictImage(ctx context.Context, img image.Image) (*PredictionResponse, error) {
	start := time.Now()
	timings := &ProcessingTimings{RequestID: uuid.New().String()}

	// Reject before spending time on preprocessing.
	if !s.classifier.Ready() {
		return nil, ErrModelNotReady
	}

	result, err := s.pipeline.Process(img)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	timings.Resize = result.ResampleTime
	timings.Preprocess = result.PreprocessTime

	return s.classify(ctx, result.Tensor, timings, start)
}

// Preview returns the magnified image the model would see for img.
func (s *Server) Preview(img image.Image) image.Image {
	resampled := pipeline.Resample(img, s.Metadata.Resolution, s.Metadata.Smoothing)
	return pipeline.Preview(resampled, pipeline.PreviewSize)
}

func (s *Server) classify(ctx context.Context, tensor pipeline.Tensor, timings *ProcessingTimings, start time.Time) (*PredictionResponse, error) {
	inferStart := time.Now()
	scores, err := s.classifier.Infer(ctx, tensor)
	if err != nil {
		return nil, err
	}
	timings.Inference = time.Since(inferStart)

	if s.debug {
		log.Printf("[DEBUG] RequestID: %s - Raw model scores: %v", timings.RequestID, scores)
	}

	postStart := time.Now()
	result, err := Decide(scores, s.Metadata.Classes)
	if err != nil {
		return nil, err
	}
	timings.Postprocess = time.Since(postStart)
	timings.Total = time.Since(start)
	s.logTimings(timings)

	return result, nil
}

func (s *Server) logTimings(t *ProcessingTimings) {
	if s.debug {
		log.Printf("[DEBUG] RequestID: %s - Processing times:\n"+
			"\tResize:      %v\n"+
			"\tPreprocess:  %v\n"+
			"\tInference:   %v\n"+
			"\tPostprocess: %v\n"+
			"\tTotal:       %v",
			t.RequestID,
			t.Resize,
			t.Preprocess,
			t.Inference,
			t.Postprocess,
			t.Total)
	}
}

func (s *Server) Close() {
	if err := s.classifier.Close(); err != nil {
		log.Printf("Failed to close model: %v", err)
	}
}
