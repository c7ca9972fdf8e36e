package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/capture"
	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/session"
)

var (
	captureFeature  string
	captureCamera   int
	captureDuration time.Duration

	analyzeFeature string
)

func init() {
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(analyzeCmd)

	captureCmd.Flags().StringVarP(&captureFeature, "feature", "f", string(session.ObjectDetection), "vision feature to run")
	captureCmd.Flags().IntVar(&captureCamera, "camera", 0, "camera device index (default from OBVIX_CAMERA)")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "stop automatically after this long (0 = until Ctrl-C)")

	analyzeCmd.Flags().StringVarP(&analyzeFeature, "feature", "f", "", "upload feature: face_landmark, image_classification or text_detection")
	_ = analyzeCmd.MarkFlagRequired("feature")
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run a live vision feature on the camera and log a session",
	Long: `Run a vision feature on camera frames until Ctrl-C (or --duration),
logging detection events into a new session. The session is saved when the
capture stops, unless nothing was logged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := session.ParseFeature(captureFeature)
		if err != nil {
			return err
		}
		camera := cfg.Camera
		if cmd.Flags().Changed("camera") {
			camera = captureCamera
		}

		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()
		ctrl, closeModels := newController(repo)
		defer closeModels()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if captureDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, captureDuration)
			defer cancel()
		}

		if err := ctrl.Start(ctx, f, camera); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Capturing %s on camera %d. Press Ctrl-C to stop.\n", f, camera)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				printStatus(out, ctrl.Status())
			}
		}
		fmt.Fprintln(out)

		res, err := ctrl.Stop(context.Background())
		if res != nil {
			printCaptureResult(out, res)
		}
		return err
	},
}

func printStatus(w io.Writer, st capture.Status) {
	fmt.Fprintf(w, "\r%-18s %5.1f fps  %3d in view  %4d events", st.Feature, st.FPS, st.Entities, st.Events)
}

func printCaptureResult(w io.Writer, res *capture.Result) {
	if !res.Saved {
		fmt.Fprintln(w, "Nothing detected; session not saved.")
		return
	}
	s := res.Session
	fmt.Fprintf(w, "Saved session %s: %d events in %s\n", s.ID, s.DetectionCount, dashboard.FormatDuration(s))
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze IMAGE...",
	Short: "Analyze image files with an upload feature",
	Long: `Run each image through an upload feature. All images of one run are
recorded into the same session, which is written after every image.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := session.ParseFeature(analyzeFeature)
		if err != nil {
			return err
		}

		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()
		ctrl, closeModels := newController(repo)
		defer closeModels()

		out := cmd.OutOrStdout()
		var analyzed int
		for _, path := range args {
			img, _, err := imaging.DecodeFile(path)
			if err != nil {
				return err
			}
			res, err := ctrl.Analyze(cmd.Context(), f, img)
			if errors.Is(err, capture.ErrNothingFound) {
				fmt.Fprintf(out, "%s: nothing detected\n", path)
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			printAnalysis(out, path, res.Detection)
			analyzed++
		}

		if s := ctrl.UploadSession(f); s != nil {
			fmt.Fprintf(out, "Session %s: %d of %d image(s) recorded\n", s.ID, analyzed, len(args))
		}
		return nil
	},
}

func printAnalysis(w io.Writer, path string, d session.Detection) {
	switch {
	case d.FaceCount > 0:
		fmt.Fprintf(w, "%s: %d face(s), confidence %d%%\n", path, d.FaceCount, d.Score)
	case d.WordCount > 0:
		fmt.Fprintf(w, "%s: %d word(s), avg confidence %.1f%%\n", path, d.WordCount, d.AvgConfidence)
		fmt.Fprintf(w, "  %s\n", d.Label)
	default:
		fmt.Fprintf(w, "%s: %s (%d%%)\n", path, d.Label, d.Score)
		for _, p := range d.Predictions[min(1, len(d.Predictions)):] {
			fmt.Fprintf(w, "  %s (%d%%)\n", p.Label, p.Score)
		}
	}
}
