package sketch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Brownie44l1/shape-sketch/internal/model"
)

// Status and failure messages shown to the user.
const (
	MsgLoading      = "Loading model…"
	MsgReady        = "Model loaded! Draw and click Predict."
	MsgCleared      = "Canvas cleared."
	MsgStillLoading = "Model still loading…"
	MsgUnavailable  = "Model failed to load."
	MsgBusy         = "Still thinking about the last drawing…"
	MsgPredictError = "Prediction failed."
)

var (
	ErrPredictInFlight = errors.New("prediction already in flight")
	ErrUnknownTrigger  = errors.New("unknown trigger")
)

// Trigger names a discrete user action.
type Trigger string

const (
	StrokeStart      Trigger = "stroke_start"
	StrokeMove       Trigger = "stroke_move"
	StrokeEnd        Trigger = "stroke_end"
	ClearRequested   Trigger = "clear"
	PredictRequested Trigger = "predict"
)

type Event struct {
	Trigger Trigger `json:"type"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
}

// Predictor classifies a captured drawing.
type Predictor interface {
	PredictImage(ctx context.Context, img image.Image) (*model.PredictionResponse, error)
}

// Sink displays status text and user-visible failures.
type Sink interface {
	Status(msg string)
	Failure(msg string)
}

// Dispatcher routes triggers to the surface and the predictor.
type Dispatcher struct {
	surface   *Surface
	predictor Predictor
	sink      Sink

	inFlight atomic.Bool
	mu       sync.Mutex
	last     *model.PredictionResponse
}

func NewDispatcher(surface *Surface, predictor Predictor, sink Sink) *Dispatcher {
	return &Dispatcher{
		surface:   surface,
		predictor: predictor,
		sink:      sink,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Trigger {
	case StrokeStart:
		d.surface.Begin()
		d.surface.Move(ev.X, ev.Y)
	case StrokeMove:
		d.surface.Move(ev.X, ev.Y)
	case StrokeEnd:
		d.surface.End()
	case ClearRequested:
		d.surface.Clear()
		d.sink.Status(MsgCleared)
	case PredictRequested:
		return d.predict(ctx)
	default:
		return fmt.Errorf("%w %q", ErrUnknownTrigger, ev.Trigger)
	}
	return nil
}

// predict captures the surface and classifies it. A predict that arrives
// while another one is still waiting on the model is rejected.
func (d *Dispatcher) predict(ctx context.Context) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.sink.Failure(MsgBusy)
		return ErrPredictInFlight
	}
	defer d.inFlight.Store(false)

	snapshot := d.surface.Snapshot()
	result, err := d.predictor.PredictImage(ctx, snapshot)
	switch {
	case errors.Is(err, model.ErrModelNotReady):
		d.sink.Failure(MsgStillLoading)
		return err
	case err != nil:
		log.Printf("Prediction error: %v", err)
		d.sink.Failure(MsgPredictError)
		return err
	}

	d.mu.Lock()
	d.last = result
	d.mu.Unlock()
	d.sink.Status(model.Sentence(result.Class))
	return nil
}

// Last returns the most recent successful prediction, or nil.
func (d *Dispatcher) Last() *model.PredictionResponse {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// AnnounceModel reports the model lifecycle to the sink once the load
// settles. It returns immediately after posting the loading status.
func AnnounceModel(sink Sink, state func() model.State, done <-chan struct{}) {
	sink.Status(MsgLoading)
	go func() {
		<-done
		if state() == model.StateReady {
			sink.Status(MsgReady)
			return
		}
		sink.Failure(MsgUnavailable)
	}()
}

// Recorder is a Sink that keeps every message in order.
type Recorder struct {
	mu       sync.Mutex
	Messages []string
	Failures []string
}

func (r *Recorder) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, msg)
}

func (r *Recorder) Failure(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, msg)
}

// LogSink writes status to the process log.
type LogSink struct{}

func (LogSink) Status(msg string)  { log.Printf("status: %s", msg) }
func (LogSink) Failure(msg string) { log.Printf("failure: %s", msg) }
