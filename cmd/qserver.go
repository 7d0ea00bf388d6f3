package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/skywidgets/internal/catalog"
	"github.com/zjrosen/skywidgets/internal/config"
	"github.com/zjrosen/skywidgets/internal/infrastructure/sqlite"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/qserver"
	"github.com/zjrosen/skywidgets/internal/tracing"
)

var qserverCmd = &cobra.Command{
	Use:   "qserver",
	Short: "Run the mock queue server",
	Long: `Run a mock of the Bluesky HTTP queue server. Starting the queue runs each
item as a simulated scan whose documents are stored and streamed on /events.

Example:
  skywidgets qserver                          # listen on server.addr
  skywidgets qserver --addr :9000 --steps 5   # short runs on port 9000
  skywidgets qserver --storage jsonl          # keep documents in the catalog dir`,
	Args: cobra.NoArgs,
	RunE: runQServer,
}

func init() {
	rootCmd.AddCommand(qserverCmd)

	qserverCmd.Flags().String("addr", "", "address to listen on (overrides server.addr)")
	qserverCmd.Flags().Int("steps", 0, "event pages per run (overrides server.steps)")
	qserverCmd.Flags().Duration("interval", 0, "delay between pages (overrides server.interval)")
	qserverCmd.Flags().String("storage", "", "document storage: memory, sqlite or jsonl")
}

// serverOverrides applies the qserver flags the user set.
func serverOverrides(cmd *cobra.Command, s config.ServerConfig) (config.ServerConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		s.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("steps") {
		s.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("interval") {
		s.Interval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("storage") {
		s.Storage, _ = flags.GetString("storage")
	}
	return s, config.ValidateServer(s)
}

// openStore returns the document store named by s.Storage.
func openStore(s config.ServerConfig, c config.CatalogConfig) (qserver.DocumentStore, error) {
	switch s.Storage {
	case config.StorageSQLite:
		db, err := sqlite.NewDB(s.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening document database: %w", err)
		}
		return db.Documents(), nil
	case config.StorageJSONL:
		store, err := catalog.NewFileStore(c.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening catalog: %w", err)
		}
		return store, nil
	default:
		return qserver.NewMemoryStore(), nil
	}
}

func runQServer(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	initStderrLog()

	sc, err := serverOverrides(cmd, c.Server)
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(c.Tracing)
	if err != nil {
		return fmt.Errorf("creating tracing provider: %w", err)
	}

	store, err := openStore(sc, c.Catalog)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.ErrorErr(log.CatStore, "Failed to close document store", err)
		}
	}()

	mock := qserver.NewMock(qserver.Config{
		Steps:    sc.Steps,
		Interval: sc.Interval,
		Store:    store,
		Tracer:   provider.Tracer(),
	})
	defer mock.Close()

	server, err := qserver.NewServer(qserver.ServerConfig{
		Addr: sc.Addr,
		Handler: qserver.NewHandler(mock,
			qserver.WithTracer(provider.Tracer()),
			qserver.WithHeartbeat(sc.Heartbeat),
		),
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Mock queue server listening on %s (storage: %s)\n", server.URL(), sc.Storage)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ending the simulations first closes the SSE streams so Shutdown can finish.
	mock.Close()
	if err := server.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatServer, "Error stopping server", err)
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "Error flushing traces", err)
	}
	return nil
}
