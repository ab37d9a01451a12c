package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Brownie44l1/shape-sketch/internal/model"
	"github.com/Brownie44l1/shape-sketch/internal/sketch"
)

type staticRunner struct {
	scores []float32
}

func (s staticRunner) Run(context.Context, []float32) ([]float32, error) {
	return append([]float32(nil), s.scores...), nil
}

func (staticRunner) Close() error { return nil }

func newTestHandler(t *testing.T, loadErr error, block bool) *Handler {
	t.Helper()
	release := make(chan struct{})
	loader := func(string, model.Metadata) (model.Runner, error) {
		if block {
			<-release
		}
		if loadErr != nil {
			return nil, loadErr
		}
		return staticRunner{scores: []float32{0.1, 0.9, 0.2, 0.05}}, nil
	}

	server, err := model.NewServer(model.DefaultMetadata(), loader, false)
	if err != nil {
		t.Fatal(err)
	}
	done := server.Load("models/shape_classifier.onnx")
	if !block {
		<-done
	}
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return NewHandler(server)
}

func do(t *testing.T, h *Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func uploadRequest(t *testing.T, path string, img image.Image) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "drawing.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, img); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func drawing() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 280, 280))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 60, 220, 220), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		block   bool
		code    int
		status  string
	}{
		{"ready", nil, false, http.StatusOK, "healthy"},
		{"loading", nil, true, http.StatusServiceUnavailable, "loading"},
		{"failed", errors.New("corrupt model"), false, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.loadErr, tt.block)
			rec := do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["status"] != tt.status {
				t.Errorf("status = %q, want %q", body["status"], tt.status)
			}
		})
	}
}

func TestPredictRaw(t *testing.T) {
	h := newTestHandler(t, nil, false)

	payload, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 64*64)})
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var got model.PredictionResponse
	decode(t, rec, &got)
	if got.Class != "square" || len(got.Predictions) != model.NumClasses {
		t.Errorf("got %+v", got)
	}
}

func TestPredictRawShapeMismatch(t *testing.T) {
	h := newTestHandler(t, nil, false)

	payload, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 28*28)})
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
	var got ErrorResponse
	decode(t, rec, &got)
	if got.Code != "shape_mismatch" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestPredictRawInvalidJSON(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte("{"))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestPredictImage(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, uploadRequest(t, "/predict/image", drawing()))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var got model.PredictionResponse
	decode(t, rec, &got)
	if got.Class != "square" {
		t.Errorf("class = %q", got.Class)
	}
}

func TestPredictImageModelNotReady(t *testing.T) {
	h := newTestHandler(t, nil, true)
	rec := do(t, h, uploadRequest(t, "/predict/image", drawing()))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}
	var got ErrorResponse
	decode(t, rec, &got)
	if got.Code != "model_not_ready" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestPredictImageMissingField(t *testing.T) {
	h := newTestHandler(t, nil, false)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no image here")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/predict/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if rec := do(t, h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, uploadRequest(t, "/preview", drawing()))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 140 || img.Bounds().Dy() != 140 {
		t.Fatalf("preview bounds = %v", img.Bounds())
	}
}

func sketchRequest(t *testing.T, req SketchRequest) *http.Request {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return httptest.NewRequest(http.MethodPost, "/sketch", bytes.NewReader(payload))
}

func TestSketch(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, sketchRequest(t, SketchRequest{
		Width:  280,
		Height: 280,
		Events: []sketch.Event{
			{Trigger: sketch.StrokeStart, X: 60, Y: 60},
			{Trigger: sketch.StrokeMove, X: 220, Y: 60},
			{Trigger: sketch.StrokeMove, X: 220, Y: 220},
			{Trigger: sketch.StrokeMove, X: 60, Y: 220},
			{Trigger: sketch.StrokeMove, X: 60, Y: 60},
			{Trigger: sketch.StrokeEnd},
			{Trigger: sketch.PredictRequested},
		},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}

	var got SketchResponse
	decode(t, rec, &got)
	if got.Prediction == nil || got.Prediction.Class != "square" {
		t.Fatalf("prediction = %+v", got.Prediction)
	}
	if len(got.Messages) != 1 || got.Messages[0] != model.Sentence("square") {
		t.Errorf("messages = %q", got.Messages)
	}
}

func TestSketchModelNotReady(t *testing.T) {
	h := newTestHandler(t, nil, true)
	rec := do(t, h, sketchRequest(t, SketchRequest{
		Events: []sketch.Event{
			{Trigger: sketch.ClearRequested},
			{Trigger: sketch.PredictRequested},
		},
	}))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d", rec.Code)
	}

	var got SketchResponse
	decode(t, rec, &got)
	if len(got.Failures) != 1 || got.Failures[0] != sketch.MsgStillLoading {
		t.Errorf("failures = %q", got.Failures)
	}
	if len(got.Messages) != 1 || got.Messages[0] != sketch.MsgCleared {
		t.Errorf("messages = %q", got.Messages)
	}
}

func TestSketchRejectsBadInput(t *testing.T) {
	h := newTestHandler(t, nil, false)

	rec := do(t, h, sketchRequest(t, SketchRequest{Width: 100000, Height: 10}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized surface: code = %d", rec.Code)
	}

	rec = do(t, h, sketchRequest(t, SketchRequest{Events: []sketch.Event{{Trigger: "wiggle"}}}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown trigger: code = %d", rec.Code)
	}
}

func TestMetricsWithoutPool(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var got model.PoolMetrics
	decode(t, rec, &got)
	if got.Size != 0 {
		t.Errorf("size = %d", got.Size)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, nil, false)
	rec := do(t, h, httptest.NewRequest(http.MethodOptions, "/predict", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
