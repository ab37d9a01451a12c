package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid pipeline config")
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Polarity selects how averaged pixel intensity is encoded.
type Polarity string

const (
	// BrightInk thresholds at half intensity: white strokes on black become 1.
	BrightInk Polarity = "bright_ink"
	// DarkInk emits the continuous complement (255-avg)/255 with no threshold.
	DarkInk Polarity = "dark_ink"
)

// Smoothing selects the resampling filter used to reach the model resolution.
type Smoothing string

const (
	Nearest Smoothing = "nearest"
	Linear  Smoothing = "linear"
)

// Supported model resolutions.
const (
	Resolution28 = 28
	Resolution64 = 64
)

// Config describes one canonical preprocessing setup. It must match what the
// paired model was trained on; nothing detects a mismatch at runtime.
type Config struct {
	Resolution int       `json:"image_size"`
	Polarity   Polarity  `json:"polarity"`
	Smoothing  Smoothing `json:"smoothing"`
	Closing    bool      `json:"closing"`
}

// DefaultConfig is the 64x64 hard-pixel, bright-ink, closed variant.
func DefaultConfig() Config {
	return Config{
		Resolution: Resolution64,
		Polarity:   BrightInk,
		Smoothing:  Nearest,
		Closing:    true,
	}
}

func (c Config) Validate() error {
	if c.Resolution != Resolution28 && c.Resolution != Resolution64 {
		return fmt.Errorf("%w: resolution %d not in {28, 64}", ErrInvalidConfig, c.Resolution)
	}
	switch c.Polarity {
	case BrightInk, DarkInk:
	default:
		return fmt.Errorf("%w: unknown polarity %q", ErrInvalidConfig, c.Polarity)
	}
	switch c.Smoothing {
	case Nearest, Linear:
	default:
		return fmt.Errorf("%w: unknown smoothing %q", ErrInvalidConfig, c.Smoothing)
	}
	if c.Closing && c.Polarity != BrightInk {
		return fmt.Errorf("%w: closing needs a binary bitmap, polarity is %q", ErrInvalidConfig, c.Polarity)
	}
	return nil
}
