package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/ocr"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/store"
	"github.com/ironsheep/obvix/internal/vision/cv"
)

func init() {
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(modelsCmd)
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show how much of the snapshot storage quota is used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()

		u, err := repo.Usage(cmd.Context())
		if err != nil {
			return err
		}
		printUsage(cmd.OutOrStdout(), u)
		return nil
	},
}

func printUsage(w io.Writer, u store.Usage) {
	const width = 30
	filled := min(width, int(u.Percent*width/100))
	fmt.Fprintf(w, "Storage: %s / %s (%.1f%%)\n", dashboard.Bytes(u.Used), dashboard.Bytes(u.Total), u.Percent)
	fmt.Fprintf(w, "[%s%s]\n", strings.Repeat("█", filled), strings.Repeat("░", width-filled))
	if u.Percent >= dashboard.UsageWarnPercent {
		fmt.Fprintln(w, "Warning: storage is nearly full. Delete old sessions to make room for new snapshots.")
	}
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Check which features have their model files installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Models directory: %s\n\n", cfg.ModelsDir)
		for _, f := range session.Features {
			fmt.Fprintf(out, "%-22s %s\n", f, modelState(f))
		}
		return nil
	},
}

func modelState(f session.Feature) string {
	if f == session.TextDetection {
		return fmt.Sprintf("tesseract (%s)", ocrLanguage())
	}
	if _, err := cv.CheckFiles(cfg.ModelsDir, f); err != nil {
		return "missing: " + strings.Join(cv.Files(f), ", ")
	}
	return "ok"
}

func ocrLanguage() string {
	if cfg.OCRLanguage != "" {
		return cfg.OCRLanguage
	}
	return ocr.DefaultLanguage
}
