package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/server"
	"github.com/ironsheep/obvix/internal/web"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from OBVIX_HTTP_ADDR or :8080)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live view, detection stream and session API over HTTP",
	Long: `Start the HTTP server: an index page with the annotated MJPEG stream,
a server-sent event stream of detections, capture control, image upload
analysis and the session/statistics JSON API. Prometheus metrics are served
on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
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

		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)
		srv := web.NewServer(web.Config{Addr: addr, Camera: cfg.Camera}, repo, ctrl)
		return srv.ListenAndServe(ctx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Run a Model Context Protocol server speaking JSON-RPC 2.0 over stdio.
It exposes upload analysis and session review as tools. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepo()
		if err != nil {
			return err
		}
		defer closeRepo()
		ctrl, closeModels := newController(repo)
		defer closeModels()

		logger.Debug("MCP", "obvix %s (built %s, commit %s)", Version, BuildTime, GitCommit)
		return server.New(repo, ctrl, Version).Run()
	},
}
