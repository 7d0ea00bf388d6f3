package viewer

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/pubsub"
	"github.com/zjrosen/skywidgets/internal/qclient"
)

// docMsg carries one document from the feed.
type docMsg struct {
	doc docs.Document
}

// feedClosedMsg reports that the feed broker was closed.
type feedClosedMsg struct{}

func feedListener(ctx context.Context, feed *pubsub.Broker[docs.Document]) *pubsub.ContinuousListener[docs.Document] {
	if feed == nil {
		return nil
	}
	return pubsub.NewMappedListener(ctx, feed, func(e pubsub.Event[docs.Document]) tea.Msg {
		return docMsg{doc: e.Payload}
	}).OnClose(feedClosedMsg{})
}

// ServerFeed replays finished runs from a queue server, oldest first, then
// follows its document stream, reconnecting when the stream drops. Documents
// are published on Broker.
type ServerFeed struct {
	client *qclient.Client
	replay int
	retry  time.Duration
	broker *pubsub.Broker[docs.Document]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped sync.Once
}

// NewServerFeed returns a feed replaying up to replay finished runs and
// waiting retry between reconnects.
func NewServerFeed(c *qclient.Client, replay int, retry time.Duration) *ServerFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &ServerFeed{
		client: c,
		replay: replay,
		retry:  retry,
		broker: pubsub.NewBrokerWithBuffer[docs.Document](256),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Broker returns the broker documents are published on. Subscribe before
// Start to receive the replayed runs.
func (f *ServerFeed) Broker() *pubsub.Broker[docs.Document] {
	return f.broker
}

// Start begins replaying and streaming in the background.
func (f *ServerFeed) Start() error {
	f.wg.Add(1)
	go f.run()
	return nil
}

// Stop ends the stream and closes the broker.
func (f *ServerFeed) Stop() error {
	f.stopped.Do(func() {
		f.cancel()
		f.wg.Wait()
		f.broker.Close()
	})
	return nil
}

func (f *ServerFeed) send(d docs.Document) error {
	return f.broker.Deliver(f.ctx, pubsub.DocumentEvent, d)
}

func (f *ServerFeed) run() {
	defer f.wg.Done()
	ctx, c := f.ctx, f.client
	if err := replayHistory(ctx, c, f.replay, f.send); err != nil && ctx.Err() == nil {
		log.ErrorErr(log.CatClient, "Failed to replay history", err, "server", c.BaseURL())
	}
	for {
		err := c.Stream(ctx, f.send)
		if ctx.Err() != nil {
			return
		}
		if !errors.Is(err, qclient.ErrStreamClosed) {
			log.ErrorErr(log.CatClient, "Document stream failed", err, "server", c.BaseURL())
		}
		select {
		case <-time.After(f.retry):
		case <-ctx.Done():
			return
		}
	}
}

func replayHistory(ctx context.Context, c *qclient.Client, replay int, send func(docs.Document) error) error {
	if replay <= 0 {
		return nil
	}
	status, err := c.QueueStatus(ctx)
	if err != nil {
		return err
	}
	uids := make([]string, 0, len(status.History))
	for _, item := range status.History {
		uids = append(uids, item.UID)
	}
	if len(uids) > replay {
		uids = uids[:replay]
	}
	// History is newest first.
	slices.Reverse(uids)

	for _, uid := range uids {
		documents, err := c.Documents(ctx, uid)
		if err != nil {
			return err
		}
		for _, d := range documents {
			if err := send(d); err != nil {
				return err
			}
		}
	}
	log.Info(log.CatClient, "Replayed finished runs", "count", len(uids))
	return nil
}
