package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"

	"github.com/Brownie44l1/shape-sketch/internal/model"
	"github.com/Brownie44l1/shape-sketch/internal/pipeline"
	"github.com/Brownie44l1/shape-sketch/internal/sketch"
	"github.com/gorilla/mux"
)

const (
	maxUploadSize = 10 << 20
	maxSketchSide = 2048
	maxEvents     = 20000
)

type Handler struct {
	modelServer *model.Server
}

func NewHandler(modelServer *model.Server) *Handler {
	return &Handler{
		modelServer: modelServer,
	}
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SketchRequest struct {
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Events []sketch.Event `json:"events"`
}

type SketchResponse struct {
	Messages   []string                  `json:"messages"`
	Failures   []string                  `json:"failures"`
	Prediction *model.PredictionResponse `json:"prediction,omitempty"`
}

// Router registers every endpoint.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(enableCORS)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/predict", h.Predict).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/predict/image", h.PredictFromImage).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/preview", h.Preview).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/sketch", h.Sketch).Methods(http.MethodPost, http.MethodOptions)
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.modelServer.State()
	status := "healthy"
	code := http.StatusOK
	switch state {
	case model.StateLoading:
		status = "loading"
		code = http.StatusServiceUnavailable
	case model.StateFailed:
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{"status": status, "model": string(state)})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	pool := h.modelServer.Pool()
	if pool == nil {
		writeJSON(w, http.StatusOK, model.PoolMetrics{})
		return
	}
	writeJSON(w, http.StatusOK, pool.GetMetrics())
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		sendError(w, "invalid_request", "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		sendError(w, "invalid_request", "Invalid JSON", http.StatusBadRequest)
		return
	}

	expectedSize := h.modelServer.Metadata.InputSize()
	if len(req.Image) != expectedSize {
		sendError(w, "shape_mismatch", fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	result, err := h.modelServer.Predict(r.Context(), req.Image)
	if err != nil {
		sendPredictError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	img, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := h.modelServer.PredictImage(r.Context(), img)
	if err != nil {
		sendPredictError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Preview returns the magnified image the model sees, for debugging drawings.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	img, ok := readUpload(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, h.modelServer.Preview(img)); err != nil {
		log.Printf("Preview encode error: %v", err)
	}
}

// Sketch replays pointer and button events on a fresh surface.
func (h *Handler) Sketch(w http.ResponseWriter, r *http.Request) {
	var req SketchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		sendError(w, "invalid_request", "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Width < 0 || req.Height < 0 || req.Width > maxSketchSide || req.Height > maxSketchSide {
		sendError(w, "invalid_request", fmt.Sprintf("Surface must be at most %dx%d", maxSketchSide, maxSketchSide), http.StatusBadRequest)
		return
	}
	if len(req.Events) > maxEvents {
		sendError(w, "invalid_request", fmt.Sprintf("At most %d events per sketch", maxEvents), http.StatusBadRequest)
		return
	}

	recorder := &sketch.Recorder{}
	d := sketch.NewDispatcher(sketch.NewSurface(req.Width, req.Height), h.modelServer, recorder)
	status := http.StatusOK
	for _, ev := range req.Events {
		if err := h.dispatch(r.Context(), d, ev); err != nil {
			status = statusFor(err)
			if status == http.StatusBadRequest {
				sendError(w, "invalid_request", err.Error(), status)
				return
			}
		}
	}

	writeJSON(w, status, SketchResponse{
		Messages:   recorder.Messages,
		Failures:   recorder.Failures,
		Prediction: d.Last(),
	})
}

func (h *Handler) dispatch(ctx context.Context, d *sketch.Dispatcher, ev sketch.Event) error {
	err := d.Dispatch(ctx, ev)
	if err != nil && !errors.Is(err, model.ErrModelNotReady) {
		log.Printf("Sketch event %s: %v", ev.Trigger, err)
	}
	return err
}

func readUpload(w http.ResponseWriter, r *http.Request) (image.Image, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		sendError(w, "invalid_request", "Failed to parse form", http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		sendError(w, "invalid_request", "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := image.Decode(file)
	if err != nil {
		sendError(w, "invalid_image", "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return nil, false
	}

	log.Printf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrShapeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, sketch.ErrPredictInFlight):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, sketch.ErrUnknownTrigger):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sendPredictError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch {
	case errors.Is(err, model.ErrModelNotReady):
		sendError(w, "model_not_ready", "Model still loading", status)
	case errors.Is(err, pipeline.ErrShapeMismatch):
		sendError(w, "shape_mismatch", err.Error(), status)
	case status == http.StatusServiceUnavailable:
		sendError(w, "request_cancelled", err.Error(), status)
	default:
		log.Printf("Prediction error: %v", err)
		sendError(w, "prediction_failed", "Prediction failed", status)
	}
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Response encode error: %v", err)
	}
}
