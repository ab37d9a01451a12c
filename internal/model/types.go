package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/Brownie44l1/shape-sketch/internal/pipeline"
)

// DefaultLabels is the class order the shape classifier was trained with.
var DefaultLabels = []string{"circle", "square", "triangle", "star"}

// NumClasses is the fixed length of every score vector.
const NumClasses = 4

var ErrInvalidMetadata = errors.New("invalid model metadata")

// Metadata is the sidecar JSON shipped next to the model file. It pins the
// preprocessing the model was trained with.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Classes     []string `json:"classes"`

	pipeline.Config
}

// DefaultMetadata describes the 64x64 closed, hard-pixel model.
func DefaultMetadata() Metadata {
	cfg := pipeline.DefaultConfig()
	return Metadata{
		InputShape:  pipeline.Shape(cfg.Resolution),
		OutputShape: []int64{1, NumClasses},
		InputName:   "input",
		OutputName:  "output",
		Classes:     append([]string(nil), DefaultLabels...),
		Config:      cfg,
	}
}

// LoadMetadata reads a metadata file, filling unset fields from the defaults.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	metadata := DefaultMetadata()
	metadata.InputShape = nil
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.InputShape == nil {
		metadata.InputShape = pipeline.Shape(metadata.Resolution)
	}
	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func (m Metadata) Validate() error {
	if err := m.Config.Validate(); err != nil {
		return err
	}
	if want := pipeline.Shape(m.Resolution); !reflect.DeepEqual(m.InputShape, want) {
		return fmt.Errorf("%w: input_shape %v does not match image_size %d", ErrInvalidMetadata, m.InputShape, m.Resolution)
	}
	if len(m.Classes) != NumClasses {
		return fmt.Errorf("%w: %d classes, want %d", ErrInvalidMetadata, len(m.Classes), NumClasses)
	}
	if size := shapeSize(m.OutputShape); size != NumClasses {
		return fmt.Errorf("%w: output_shape %v holds %d scores, want %d", ErrInvalidMetadata, m.OutputShape, size, NumClasses)
	}
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("%w: input_name and output_name are required", ErrInvalidMetadata)
	}
	return nil
}

// InputSize is the number of float32 values in one input tensor.
func (m Metadata) InputSize() int {
	return shapeSize(m.InputShape)
}

func shapeSize(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, dim := range shape {
		n *= int(dim)
	}
	return n
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
	Scores      []float32          `json:"scores"`
}

type ProcessingTimings struct {
	RequestID   string
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}
