package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var ErrScoreLength = errors.New("score vector length mismatch")

// ScoreVector holds raw model outputs in label order. No softmax is applied.
type ScoreVector []float32

// Decide picks the label at the highest score. On ties the first index wins.
func Decide(scores ScoreVector, labels []string) (*PredictionResponse, error) {
	if len(scores) == 0 || len(scores) != len(labels) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", ErrScoreLength, len(scores), len(labels))
	}

	wide := make([]float64, len(scores))
	predictions := make(map[string]float32, len(scores))
	for i, s := range scores {
		wide[i] = float64(s)
		predictions[labels[i]] = s
	}
	maxIdx := floats.MaxIdx(wide)

	return &PredictionResponse{
		Class:       labels[maxIdx],
		Confidence:  scores[maxIdx],
		Predictions: predictions,
		Scores:      append([]float32(nil), scores...),
	}, nil
}

// Sentence formats a prediction for the display sink.
func Sentence(label string) string {
	return fmt.Sprintf("I’m pretty sure that’s a: %s", label)
}
