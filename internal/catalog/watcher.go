package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/pubsub"
)

// WatcherConfig holds watcher options.
type WatcherConfig struct {
	Dir         string
	DebounceDur time.Duration
	// SkipExisting starts at the current end of every file instead of
	// replaying documents already on disk.
	SkipExisting bool
}

// DefaultWatcherConfig returns defaults for dir.
func DefaultWatcherConfig(dir string) WatcherConfig {
	return WatcherConfig{
		Dir:         dir,
		DebounceDur: 100 * time.Millisecond,
	}
}

// Watcher tails every run file in a directory and publishes complete lines
// as documents on its broker, file by file in name order.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       WatcherConfig
	offsets   map[string]int64
	broker    *pubsub.Broker[docs.Document]
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   sync.Once
	wg        sync.WaitGroup
}

// NewWatcher creates a watcher; call Start to begin.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsWatcher: fsw,
		cfg:       cfg,
		offsets:   make(map[string]int64),
		broker:    pubsub.NewBrokerWithBuffer[docs.Document](256),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Broker returns the broker documents are published on. Subscribe before
// Start to receive the documents already on disk.
func (w *Watcher) Broker() *pubsub.Broker[docs.Document] {
	return w.broker
}

// Start watches the directory. Stop closes the broker.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", w.cfg.Dir, err)
	}
	if w.cfg.SkipExisting {
		for _, path := range w.runFiles() {
			if info, err := os.Stat(path); err == nil {
				w.offsets[path] = info.Size()
			}
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and closes the broker.
func (w *Watcher) Stop() error {
	var err error
	w.stopped.Do(func() {
		w.cancel()
		err = w.fsWatcher.Close()
		w.wg.Wait()
		w.broker.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	if !w.scan() {
		return
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isRunFileEvent(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.cfg.DebounceDur)
			} else {
				timer.Reset(w.cfg.DebounceDur)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if !w.scan() {
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatCatalog, "Watch error", err, "dir", w.cfg.Dir)

		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func isRunFileEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Ext(event.Name) == Ext
}

func (w *Watcher) runFiles() []string {
	matches, err := filepath.Glob(filepath.Join(w.cfg.Dir, "*"+Ext))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// scan publishes new lines of every file, waiting for slow subscribers so
// no run loses a document. It reports false once stopped.
func (w *Watcher) scan() bool {
	for _, path := range w.runFiles() {
		found, err := w.readNew(path)
		if err != nil {
			log.ErrorErr(log.CatCatalog, "Failed to read run file", err, "path", path)
		}
		for _, doc := range found {
			if err := w.broker.Deliver(w.ctx, pubsub.DocumentEvent, doc); err != nil {
				return false
			}
		}
	}
	return true
}

// readNew decodes the complete lines after the stored offset. A trailing
// partial line is left for the next scan.
func (w *Watcher) readNew(path string) ([]docs.Document, error) {
	f, err := os.Open(path) // #nosec G304 -- path from directory listing
	if err != nil {
		return nil, err
	}
	defer f.Close()

	offset := w.offsets[path]
	if info, err := f.Stat(); err == nil && info.Size() < offset {
		log.Warn(log.CatCatalog, "Run file truncated, rereading", "path", path)
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	var out []docs.Document
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		offset += int64(len(line))
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var doc docs.Document
		if err := json.Unmarshal(line, &doc); err != nil {
			log.Warn(log.CatCatalog, "Skipping undecodable line", "path", path, "error", err)
			continue
		}
		out = append(out, doc)
	}
	w.offsets[path] = offset
	return out, nil
}
