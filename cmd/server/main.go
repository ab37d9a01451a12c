package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/shape-sketch/internal/config"
	"github.com/Brownie44l1/shape-sketch/internal/handlers"
	"github.com/Brownie44l1/shape-sketch/internal/model"
	"github.com/Brownie44l1/shape-sketch/internal/onnx"
	"github.com/Brownie44l1/shape-sketch/internal/sketch"
	"golang.org/x/sys/cpu"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		log.Fatalf("Failed to load model metadata: %v", err)
	}

	modelServer, err := model.NewServer(metadata, onnx.Loader(cfg.LibPath, cfg.PoolSize), cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize model server: %v", err)
	}
	defer onnx.DestroyEnvironment()
	defer modelServer.Close()

	if cfg.Debug {
		log.Printf("[DEBUG] CPU features: avx2=%v avx512f=%v sse41=%v",
			cpu.X86.HasAVX2, cpu.X86.HasAVX512F, cpu.X86.HasSSE41)
	}

	log.Printf("Loading model from: %s", cfg.ModelPath)
	sketch.AnnounceModel(sketch.LogSink{}, modelServer.State, modelServer.Load(cfg.ModelPath))

	handler := handlers.NewHandler(modelServer)
	srv := &http.Server{
		Handler:      handler.Router(),
		Addr:         cfg.Addr(),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("Input: %dx%d, polarity=%s, smoothing=%s, closing=%v",
		metadata.Resolution, metadata.Resolution, metadata.Polarity, metadata.Smoothing, metadata.Closing)
	log.Printf("Classes: %v", metadata.Classes)
	log.Println("Endpoints:")
	log.Println("  GET  /health        - Health check")
	log.Println("  GET  /metrics       - Session pool metrics")
	log.Println("  POST /predict       - Raw array prediction")
	log.Println("  POST /predict/image - Predict from image upload")
	log.Println("  POST /preview       - Magnified view of what the model sees")
	log.Println("  POST /sketch        - Replay drawing events and predict")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("Server failed: %v", err)
	case sig := <-stop:
		log.Printf("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
