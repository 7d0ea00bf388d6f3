package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"

	"github.com/zjrosen/skywidgets/internal/catalog"
	"github.com/zjrosen/skywidgets/internal/config"
	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/pubsub"
	"github.com/zjrosen/skywidgets/internal/qclient"
	"github.com/zjrosen/skywidgets/internal/viewer"
)

const reconnectDelay = 2 * time.Second

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Plot runs live in the terminal",
	Long: `Follow runs from a queue server's document stream or from a catalog
directory and plot the most recent ones, one figure per (x, y, stream).

Example:
  skywidgets view                                   # viewer.server_url
  skywidgets view --server http://127.0.0.1:9000
  skywidgets view --catalog ~/.config/skywidgets/catalog --max-runs 5`,
	Args: cobra.NoArgs,
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)

	viewCmd.Flags().String("server", "", "queue server URL (overrides viewer.server_url)")
	viewCmd.Flags().String("catalog", "", "follow a catalog directory instead of a server")
	viewCmd.Flags().Int("max-runs", 0, "runs kept per figure (overrides viewer.max_runs)")
	viewCmd.Flags().String("stream", "", "only plot this stream (overrides viewer.stream_name)")
	viewCmd.Flags().Int("replay", 0, "finished runs to load from the server on start")
}

// viewerOverrides applies the view flags the user set.
func viewerOverrides(cmd *cobra.Command, v config.ViewerConfig) (config.ViewerConfig, error) {
	flags := cmd.Flags()
	if flags.Changed("server") {
		v.ServerURL, _ = flags.GetString("server")
	}
	if flags.Changed("max-runs") {
		v.MaxRuns, _ = flags.GetInt("max-runs")
	}
	if flags.Changed("stream") {
		v.StreamName, _ = flags.GetString("stream")
	}
	return v, config.ValidateViewer(v)
}

func viewLogPath() string {
	if p := os.Getenv("SKYWIDGETS_LOG"); p != "" {
		return p
	}
	if dir := config.DefaultDir(); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err == nil {
			return filepath.Join(dir, "viewer.log")
		}
	}
	return "skywidgets.log"
}

func runView(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	vc, err := viewerOverrides(cmd, c.Viewer)
	if err != nil {
		return err
	}

	logPath := viewLogPath()
	cleanup, err := log.InitWithTeaLog(logPath, "skywidgets")
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer cleanup()
	log.SetMinLevel(logLevel())

	feed, err := openFeed(cmd, vc, c.Catalog)
	if err != nil {
		return err
	}
	defer func() { _ = feed.Stop() }()

	model, err := viewer.New(viewer.Config{
		Feed:          feed.Broker(),
		MaxRuns:       vc.MaxRuns,
		StreamName:    vc.StreamName,
		MarkdownStyle: vc.MarkdownStyle,
		ShowStatusBar: vc.ShowStatusBar,
		ConfigPath:    configPath(),
	})
	if err != nil {
		return err
	}
	// The model is subscribed; start producing.
	if err := feed.Start(); err != nil {
		return err
	}

	zone.NewGlobal()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// documentSource publishes documents on a broker between Start and Stop.
type documentSource interface {
	Broker() *pubsub.Broker[docs.Document]
	Start() error
	Stop() error
}

// openFeed returns the document source selected by the flags. It is not
// started.
func openFeed(cmd *cobra.Command, vc config.ViewerConfig, cc config.CatalogConfig) (documentSource, error) {
	if dir, _ := cmd.Flags().GetString("catalog"); dir != "" {
		wc := catalog.DefaultWatcherConfig(dir)
		wc.DebounceDur = cc.Debounce
		w, err := catalog.NewWatcher(wc)
		if err != nil {
			return nil, fmt.Errorf("watching catalog: %w", err)
		}
		log.Info(log.CatCatalog, "Following catalog", "dir", dir)
		return w, nil
	}

	client, err := qclient.New(vc.ServerURL)
	if err != nil {
		return nil, err
	}
	replay, _ := cmd.Flags().GetInt("replay")
	log.Info(log.CatClient, "Following queue server", "url", client.BaseURL())
	return viewer.NewServerFeed(client, replay, reconnectDelay), nil
}
