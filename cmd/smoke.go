package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/qclient"
	"github.com/zjrosen/skywidgets/internal/qserver"
)

const (
	smokePlans     = 2
	smokeShownDocs = 50
	smokeShownRuns = 3
	subscribeGrace = 200 * time.Millisecond
	pollInterval   = 250 * time.Millisecond
)

// ErrQueueNotDrained is returned when the queue is still busy at the deadline.
var ErrQueueNotDrained = errors.New("queue did not finish in time")

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Exercise a running queue server end to end",
	Long: `Queue two plans on a running (mock) queue server, start the queue while
listening on /events, wait for the queue to drain, then fetch the documents
of the recorded runs.

Example:
  skywidgets qserver --addr :9000 &
  skywidgets smoke --server http://127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		initStderrLog()

		url := c.Viewer.ServerURL
		if cmd.Flags().Changed("server") {
			url, _ = cmd.Flags().GetString("server")
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		client, err := qclient.New(url)
		if err != nil {
			return err
		}
		return runSmoke(cmd.Context(), client, cmd.OutOrStdout(), timeout)
	},
}

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().String("server", "", "queue server URL (default viewer.server_url)")
	smokeCmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for the queue to drain")
}

func runSmoke(ctx context.Context, c *qclient.Client, out io.Writer, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintf(out, "Server %s: %s (%s)\n", c.BaseURL(), status.Status, status.Version)

	for i := 1; i <= smokePlans; i++ {
		item, err := c.Add(ctx, qserver.AddRequest{Name: fmt.Sprintf("smoke-%d", i), Plan: fmt.Sprintf("print(%d)", i)})
		if err != nil {
			return fmt.Errorf("queue add: %w", err)
		}
		fmt.Fprintf(out, "Queued %s (%s)\n", item.Name, item.UID)
	}

	var (
		mu       sync.Mutex
		captured []docs.Name
		wg       sync.WaitGroup
	)
	streamCtx, stopStream := context.WithCancel(ctx)
	defer func() {
		stopStream()
		wg.Wait()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Stream(streamCtx, func(d docs.Document) error {
			mu.Lock()
			captured = append(captured, d.Name)
			mu.Unlock()
			return nil
		})
	}()
	time.Sleep(subscribeGrace)

	if _, err := c.Start(ctx); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}
	if err := waitForDrain(ctx, c, timeout); err != nil {
		return err
	}
	stopStream()
	wg.Wait()

	fmt.Fprintf(out, "Captured %d documents on /events:\n", len(captured))
	for _, name := range captured[:min(len(captured), smokeShownDocs)] {
		fmt.Fprintf(out, "  %s\n", name)
	}

	runs, err := c.Runs(ctx)
	if err != nil {
		return fmt.Errorf("runs: %w", err)
	}
	fmt.Fprintf(out, "Runs: %v\n", runs)
	if len(runs) < smokePlans {
		return fmt.Errorf("expected at least %d runs, server has %d", smokePlans, len(runs))
	}
	for _, uid := range runs[:min(len(runs), smokeShownRuns)] {
		documents, err := c.Documents(ctx, uid)
		if err != nil {
			return fmt.Errorf("documents of %s: %w", uid, err)
		}
		fmt.Fprintf(out, "Documents for %s: %d\n", uid, len(documents))
		if len(documents) == 0 || documents[0].Name != docs.NameStart || documents[len(documents)-1].Name != docs.NameStop {
			return fmt.Errorf("run %s is not a complete start..stop sequence", uid)
		}
	}
	fmt.Fprintln(out, "OK")
	return nil
}

// waitForDrain polls until nothing is running or queued.
func waitForDrain(ctx context.Context, c *qclient.Client, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		qs, err := c.QueueStatus(ctx)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}
		if qs.Running == nil && len(qs.Queue) == 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrQueueNotDrained, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
