// Command batch classifies every PNG and JPEG drawing in a directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Brownie44l1/shape-sketch/internal/model"
	"github.com/Brownie44l1/shape-sketch/internal/onnx"
	"github.com/cheggaaa/pb/v3"
	"github.com/disintegration/imaging"
)

func main() {
	modelPath := flag.String("model", "models/shape_classifier.onnx", "onnx model file")
	metadataPath := flag.String("metadata", "models/model_metadata.json", "model metadata json")
	libPath := flag.String("lib", os.Getenv("ONNXRUNTIME_LIB"), "onnxruntime shared library")
	dir := flag.String("dir", ".", "directory of drawings")
	previewDir := flag.String("preview", "", "write magnified previews to this directory")
	timeout := flag.Duration("load-timeout", time.Minute, "how long to wait for the model")
	flag.Parse()

	files, err := drawings(*dir)
	if err != nil {
		log.Fatalf("Failed to list %s: %v", *dir, err)
	}
	if len(files) == 0 {
		log.Fatalf("No PNG or JPEG files in %s", *dir)
	}

	metadata, err := model.LoadMetadata(*metadataPath)
	if err != nil {
		log.Fatalf("Failed to load model metadata: %v", err)
	}
	server, err := model.NewServer(metadata, onnx.Loader(*libPath, 1), false)
	if err != nil {
		log.Fatalf("Failed to initialize model server: %v", err)
	}
	defer onnx.DestroyEnvironment()
	defer server.Close()

	server.Load(*modelPath)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err = server.Wait(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Model unavailable: %v", err)
	}

	results := make([]string, 0, len(files))
	bar := pb.StartNew(len(files))
	for _, path := range files {
		results = append(results, classify(server, path, *previewDir))
		bar.Increment()
	}
	bar.Finish()

	for _, line := range results {
		fmt.Println(line)
	}
}

func classify(server *model.Server, path, previewDir string) string {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Sprintf("%s\terror: %v", path, err)
	}

	if previewDir != "" {
		out := filepath.Join(previewDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+".preview.png")
		if err := imaging.Save(server.Preview(img), out); err != nil {
			log.Printf("Failed to save preview %s: %v", out, err)
		}
	}

	result, err := server.PredictImage(context.Background(), img)
	if err != nil {
		return fmt.Sprintf("%s\terror: %v", path, err)
	}
	return fmt.Sprintf("%s\t%s\t%.4f", path, result.Class, result.Confidence)
}

func drawings(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
