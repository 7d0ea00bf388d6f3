package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/static"
)

var serveCmd = &cobra.Command{
	Use:   "serve DIR",
	Short: "Serve a directory with CORS and caching disabled",
	Long: `Serve static front-end files for development. Every response allows any
origin and forbids caching, so reloads always pick up edited files.

With --copy-to the directory is first copied to the target, replacing it,
and the copy is served.

Example:
  skywidgets serve ./web
  skywidgets serve ./web --port 8080 --bind 0.0.0.0
  skywidgets serve ./web --copy-to /tmp/queue-monitor`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8000, "port to serve on")
	serveCmd.Flags().String("bind", "127.0.0.1", "address to bind to")
	serveCmd.Flags().String("copy-to", "", "copy DIR here and serve the copy")
}

func runServe(cmd *cobra.Command, args []string) error {
	initStderrLog()

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if target, _ := cmd.Flags().GetString("copy-to"); target != "" {
		if err := static.CopyTree(dir, target); err != nil {
			return fmt.Errorf("copying %s: %w", dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Copied %s to %s\n", dir, target)
		dir = target
	}

	port, _ := cmd.Flags().GetInt("port")
	bind, _ := cmd.Flags().GetString("bind")
	addr := net.JoinHostPort(bind, strconv.Itoa(port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           static.Handler(dir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %s at http://%s\n", dir, addr)
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	log.Info(log.CatServer, "Serving static files", "dir", dir, "addr", addr)

	select {
	case <-sigCh:
		fmt.Fprintln(out, "\nServer stopped")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
