package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Port         string
	ModelPath    string
	MetadataPath string
	LibPath      string
	PoolSize     int
	Debug        bool
}

// Load reads the environment. Relative model and metadata paths resolve
// against the project root, so the server also runs from cmd/server.
func Load() (*Config, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		ModelPath:    resolve(root, getEnv("MODEL_PATH", filepath.Join("models", "shape_classifier.onnx"))),
		MetadataPath: resolve(root, getEnv("METADATA_PATH", filepath.Join("models", "model_metadata.json"))),
		LibPath:      os.Getenv("ONNXRUNTIME_LIB"),
		Debug:        os.Getenv("DEBUG") == "true",
	}

	cfg.PoolSize, err = strconv.Atoi(getEnv("POOL_SIZE", "4"))
	if err != nil || cfg.PoolSize <= 0 {
		return nil, fmt.Errorf("POOL_SIZE must be a positive integer, got %q", os.Getenv("POOL_SIZE"))
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func projectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	// If running from cmd/server, go up two levels
	if filepath.Base(wd) == "server" && filepath.Base(filepath.Dir(wd)) == "cmd" {
		wd = filepath.Join(wd, "../..")
	}
	return wd, nil
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
