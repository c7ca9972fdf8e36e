package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/dashboard"
	"github.com/ironsheep/obvix/internal/imaging"
	"github.com/ironsheep/obvix/internal/session"
)

var (
	listFeature string
	listQuery   string
	listLimit   int

	showJSON bool

	deleteYes    bool
	clearYes     bool
	clearFeature string

	exportOut    string
	exportCopy   bool
	exportImages string
)

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)

	sessionsListCmd.Flags().StringVarP(&listFeature, "feature", "f", "", "only sessions of this feature")
	sessionsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "search id, date and labels")
	sessionsListCmd.Flags().IntVarP(&listLimit, "limit", "n", dashboard.PageSize, "maximum sessions to list")

	sessionsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the detail view as JSON")

	sessionsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
	sessionsClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	sessionsClearCmd.Flags().StringVarP(&clearFeature, "feature", "f", "", "only clear sessions of this feature")

	sessionsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write JSON to file")
	sessionsExportCmd.Flags().BoolVar(&exportCopy, "copy", false, "copy JSON to clipboard")
	sessionsExportCmd.Flags().StringVar(&exportImages, "images", "", "write the session's snapshots into this directory")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, inspect, export and delete recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions in stored order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionalFeature(listFeature)
		if err != nil {
			return err
		}
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()

		all, err := repo.List(cmd.Context())
		if err != nil {
			return err
		}
		printListing(cmd.OutOrStdout(), dashboard.List(all, f, listQuery, listLimit), listQuery)
		return nil
	},
}

func printListing(w io.Writer, l dashboard.Listing, query string) {
	if l.Total == 0 {
		if query != "" {
			fmt.Fprintf(w, "No sessions match %q\n", query)
		} else {
			fmt.Fprintln(w, "No sessions recorded yet. Run 'obvix capture' or 'obvix analyze' first.")
		}
		return
	}

	fmt.Fprintf(w, "%-36s %-20s %-15s %-8s %6s  %s\n", "ID", "FEATURE", "DATE", "DURATION", "EVENTS", "PREVIEW")
	fmt.Fprintln(w, strings.Repeat("─", 110))
	for _, s := range l.Sessions {
		fmt.Fprintf(w, "%-36s %-20s %-15s %-8s %6d  %s\n", s.ID, s.Feature, s.Date, s.Duration, s.DetectionCount, s.Preview)
	}
	if l.Remaining > 0 {
		fmt.Fprintf(w, "… %d more (use --limit)\n", l.Remaining)
	}
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's statistics and timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()

		s, err := repo.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		d := dashboard.Describe(s)
		out := cmd.OutOrStdout()
		if showJSON {
			d.Session = dashboard.WithoutImages(s)
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}
		printDetail(out, d)
		return nil
	},
}

func printDetail(w io.Writer, d dashboard.Detail) {
	s := d.Session
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Feature:  %s\n", d.Feature)
	fmt.Fprintf(w, "Date:     %s\n", d.Date)
	fmt.Fprintf(w, "Duration: %s\n", d.Duration)
	fmt.Fprintf(w, "Events:   %d (avg confidence %d%%)\n", s.DetectionCount, d.AvgConfidence)

	if len(d.Distribution) > 0 {
		fmt.Fprintln(w, "\nDistribution:")
		for _, c := range d.Distribution {
			fmt.Fprintf(w, "  %-28s %d\n", c.Name, c.Count)
		}
	}
	if wd := d.Words; wd != nil {
		fmt.Fprintf(w, "\nWords: %d, avg confidence %d%%\n", wd.Total, wd.AvgConfidence)
		for _, b := range wd.Buckets {
			fmt.Fprintf(w, "  %-8s %d\n", b.Name, b.Count)
		}
	}
	if len(d.Timeline) > 0 {
		fmt.Fprintln(w, "\nTimeline:")
		for _, p := range d.Timeline {
			fmt.Fprintf(w, "  %s  %3d%%  %s\n", p.Time, p.Score, p.Label)
		}
	}
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete one session permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()

		s, err := repo.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		prompt := fmt.Sprintf("Delete session %s (%s, %d events)? This cannot be undone.", s.ID, dashboard.FormatDate(s.StartTime), s.DetectionCount)
		if !deleteYes && !confirm(cmd.InOrStdin(), out, prompt) {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		if err := repo.Delete(cmd.Context(), s.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted session %s\n", s.ID)
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every session of a feature, or all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := optionalFeature(clearFeature)
		if err != nil {
			return err
		}
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()
		ctx := cmd.Context()

		all, err := repo.List(ctx)
		if err != nil {
			return err
		}
		n := len(dashboard.Filter(all, f))
		out := cmd.OutOrStdout()
		if n == 0 {
			fmt.Fprintln(out, "Nothing to delete.")
			return nil
		}

		what := "ALL"
		if f != "" {
			what = "all " + string(f)
		}
		prompt := fmt.Sprintf("Delete %s sessions (%d)? This cannot be undone.", what, n)
		if !clearYes && !confirm(cmd.InOrStdin(), out, prompt) {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}

		if f == "" {
			err = repo.Clear(ctx)
		} else {
			n, err = repo.DeleteFeature(ctx, f)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d session(s)\n", n)
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session, or the whole store, as JSON",
	Long: `Export one session as indented JSON, snapshots included. Without an id
the whole stored session array is exported exactly as stored.

--images writes the session's snapshots as image files instead of leaving
them embedded only in the JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var data []byte
		if len(args) == 0 {
			if exportImages != "" {
				return fmt.Errorf("--images needs a session id")
			}
			if data, err = repo.Export(ctx); err != nil {
				return err
			}
		} else {
			s, err := repo.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if data, err = json.MarshalIndent(s, "", "  "); err != nil {
				return err
			}
			if exportImages != "" {
				paths, err := writeSnapshots(exportImages, s)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintf(out, "Wrote %s\n", p)
				}
				if len(paths) == 0 {
					fmt.Fprintln(out, "Session has no snapshots.")
				}
			}
		}

		if exportCopy {
			if err := clipboard.WriteAll(string(data)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
			} else {
				fmt.Fprintln(out, "Copied to clipboard!")
			}
		}
		if exportOut != "" {
			if err := os.WriteFile(exportOut, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(out, "Written to %s\n", exportOut)
		}
		if !exportCopy && exportOut == "" && exportImages == "" {
			fmt.Fprintln(out, string(data))
		}
		return nil
	},
}

// writeSnapshots decodes every data-URL snapshot of s into dir and returns
// the written paths. Files are named <session>-<n>-<kind><ext>, n counting
// detections from 1.
func writeSnapshots(dir string, s *session.Session) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var paths []string
	for i, d := range s.Detections {
		for _, snap := range []struct{ kind, url string }{
			{"original", d.OriginalImage},
			{"masked", d.MaskedImage},
			{"image", d.ImageData},
		} {
			if snap.url == "" {
				continue
			}
			mime, data, err := imaging.ParseDataURL(snap.url)
			if err != nil {
				return paths, fmt.Errorf("detection %d %s: %w", i+1, snap.kind, err)
			}
			name := fmt.Sprintf("%s-%d-%s%s", dashboard.ShortID(s.ID), i+1, snap.kind, imaging.Extension(mime))
			p := filepath.Join(dir, name)
			if err := os.WriteFile(p, data, 0o644); err != nil {
				return paths, fmt.Errorf("write %s: %w", p, err)
			}
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// confirm asks a yes/no question on out and reads the answer from in.
// Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func optionalFeature(v string) (session.Feature, error) {
	if v == "" {
		return "", nil
	}
	return session.ParseFeature(v)
}
