// Package config loads obvix runtime settings from a .env file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/obvix/internal/logger"
)

// DefaultStorageQuota mirrors the 5 MB local-storage budget.
const DefaultStorageQuota = 5 * 1024 * 1024

// Config holds every tunable used by the commands.
type Config struct {
	// DBPath is the SQLite file that backs the session store.
	DBPath string

	LogLevel logger.Level
	LogColor bool

	// StorageQuota is the soft cap, in bytes, on the stored session list.
	StorageQuota int64

	// ModelsDir holds DNN weights and cascade files for the camera detectors.
	ModelsDir string

	// TessdataPrefix points Tesseract at its language data. Empty uses the
	// system default.
	TessdataPrefix string
	OCRLanguage    string

	Camera        int
	HTTPAddr      string
	FrameInterval time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	dir := ".obvix"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".obvix")
	}
	return Config{
		DBPath:        filepath.Join(dir, "obvix.db"),
		LogLevel:      logger.INFO,
		StorageQuota:  DefaultStorageQuota,
		ModelsDir:     filepath.Join(dir, "models"),
		OCRLanguage:   "eng",
		HTTPAddr:      ":8080",
		FrameInterval: 16 * time.Millisecond,
	}
}

// Load reads .env (if present) and then OBVIX_* environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("OBVIX_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OBVIX_LOG_LEVEL"); v != "" {
		level, err := logger.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("OBVIX_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv("OBVIX_LOG_COLOR"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("OBVIX_LOG_COLOR: %w", err)
		}
		cfg.LogColor = b
	}
	if v := os.Getenv("OBVIX_STORAGE_QUOTA"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("OBVIX_STORAGE_QUOTA: invalid byte count %q", v)
		}
		cfg.StorageQuota = n
	}
	if v := os.Getenv("OBVIX_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("OBVIX_TESSDATA"); v != "" {
		cfg.TessdataPrefix = v
	}
	if v := os.Getenv("OBVIX_OCR_LANG"); v != "" {
		cfg.OCRLanguage = v
	}
	if v := os.Getenv("OBVIX_CAMERA"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("OBVIX_CAMERA: invalid device index %q", v)
		}
		cfg.Camera = n
	}
	if v := os.Getenv("OBVIX_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("OBVIX_FRAME_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("OBVIX_FRAME_INTERVAL: invalid duration %q", v)
		}
		cfg.FrameInterval = d
	}

	return &cfg, nil
}

// EnsureDataDir creates the directory that holds DBPath.
func (c *Config) EnsureDataDir() error {
	dir := filepath.Dir(c.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
