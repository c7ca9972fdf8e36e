package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/config"
	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/ocr"
	"github.com/ironsheep/obvix/internal/store"
	"github.com/ironsheep/obvix/internal/vision/cv"
)

var (
	cfg *config.Config

	flagLogLevel string
	flagDB       string
	flagModels   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error, silent (default from OBVIX_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "session database path (default from OBVIX_DB or ~/.obvix/obvix.db)")
	rootCmd.PersistentFlags().StringVar(&flagModels, "models", "", "model directory (default from OBVIX_MODELS_DIR or ~/.obvix/models)")
}

var rootCmd = &cobra.Command{
	Use:   "obvix",
	Short: "Camera vision sessions: detect, log and review",
	Long: `obvix runs vision features on a camera or on image files, logs what it
sees into sessions stored in a local SQLite database, and lets you review
those sessions from the terminal, a browser or an MCP client.

Live features:   object_detection, face_detection, hand_tracking,
                 pose_detection (plus every upload feature)
Upload features: face_landmark, image_classification, text_detection`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			level, err := logger.ParseLevel(flagLogLevel)
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			c.LogLevel = level
		}
		if flagDB != "" {
			c.DBPath = flagDB
		}
		if flagModels != "" {
			c.ModelsDir = flagModels
		}

		// stdout is reserved for command output and the MCP transport.
		logger.Init(c.LogLevel, os.Stderr, c.LogColor)
		cfg = c
		return nil
	},
}

// openRepo opens the session database. The returned func closes it.
func openRepo() (*store.Repository, func(), error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, err
	}
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Store", "opened %s", cfg.DBPath)
	return store.NewRepository(db, cfg.StorageQuota), func() { _ = db.Close() }, nil
}

// newController wires the model loader and camera into a controller. The
// returned func releases the loaded models.
func newController(repo *store.Repository) (*capture.Controller, func()) {
	models := capture.NewModels(cfg.ModelsDir, ocr.Options{
		Language:       cfg.OCRLanguage,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	ctrl := capture.NewController(capture.Options{
		Loader:   models,
		Open:     cv.OpenCamera,
		Saver:    repo,
		Interval: cfg.FrameInterval,
	})
	return ctrl, func() {
		if err := models.Close(); err != nil {
			logger.Warn("Models", "close: %v", err)
		}
	}
}
