// Package qserver is an in-memory stand-in for the bluesky HTTP queue server.
// Started plans emit a simulated run as event-model documents, which are
// stored per run and streamed to subscribers.
package qserver

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/pubsub"
	"github.com/zjrosen/skywidgets/internal/tracing"
)

const (
	// Version is reported by GET /status.
	Version = "mock-0.1"

	DefaultSteps    = 20
	DefaultInterval = 250 * time.Millisecond

	stopDeliveryTimeout = 2 * time.Second
)

// Config configures a Mock. Zero values take defaults.
type Config struct {
	Steps    int
	Interval time.Duration
	Store    DocumentStore
	Tracer   trace.Tracer
	Clock    docs.Clock
}

type runState struct {
	bundle  *docs.RunBundle
	primary *docs.DescriptorBundle
}

// Mock holds the queue, the running item, history and saved plans.
type Mock struct {
	mu         sync.Mutex
	queue      []Item
	running    *Item
	history    []Item
	plans      map[string]string
	envDestroy bool
	runs       map[string]*runState
	scanID     int

	store    DocumentStore
	broker   *pubsub.Broker[docs.Document]
	tracer   trace.Tracer
	clock    docs.Clock
	steps    int
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMock returns an idle mock server.
func NewMock(cfg Config) *Mock {
	m := &Mock{
		plans:    make(map[string]string),
		runs:     make(map[string]*runState),
		store:    cfg.Store,
		broker:   pubsub.NewBrokerWithBuffer[docs.Document](256),
		tracer:   cfg.Tracer,
		clock:    cfg.Clock,
		steps:    cfg.Steps,
		interval: cfg.Interval,
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.tracer == nil {
		m.tracer = noop.NewTracerProvider().Tracer("qserver")
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.steps <= 0 {
		m.steps = DefaultSteps
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Close stops running simulations and ends every subscription. The store is
// left open for its owner to close.
func (m *Mock) Close() {
	m.cancel()
	m.wg.Wait()
	if n := m.broker.Dropped(); n > 0 {
		log.Warn(log.CatServer, "Slow subscribers missed documents", "dropped", n)
	}
	m.broker.Close()
}

func (m *Mock) now() float64 {
	return float64(m.clock().UnixNano()) / 1e9
}

// Status reports the server as online.
func (m *Mock) Status() Status {
	return Status{Status: "online", Version: Version}
}

// QueueStatus returns a snapshot of the queue.
func (m *Mock) QueueStatus() QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := QueueStatus{
		Queue:   append([]Item{}, m.queue...),
		History: append([]Item{}, m.history...),
	}
	if m.running != nil {
		item := *m.running
		st.Running = &item
	}
	return st
}

// Add appends a plan to the queue. A missing uid is generated and a missing
// name defaults to "plan".
func (m *Mock) Add(req AddRequest) Item {
	item := Item{UID: req.UID, Name: req.Name, Plan: req.Plan, State: StateQueued}
	if item.UID == "" {
		item.UID = uuid.New().String()
	}
	if item.Name == "" {
		item.Name = "plan"
	}
	m.mu.Lock()
	m.queue = append(m.queue, item)
	m.mu.Unlock()
	log.Debug(log.CatServer, "Queued plan", "uid", item.UID, "name", item.Name)
	return item
}

// Clear empties the queue. The running item is unaffected.
func (m *Mock) Clear() {
	m.mu.Lock()
	m.queue = nil
	m.mu.Unlock()
}

// Start runs the head of the queue. It reports false when an item is already
// running or the queue is empty.
func (m *Mock) Start(ctx context.Context) (bool, error) {
	ctx, span := m.tracer.Start(ctx, tracing.SpanPrefixQueue+"start")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil || len(m.queue) == 0 {
		return false, nil
	}
	item := m.queue[0]
	m.queue = m.queue[1:]
	span.SetAttributes(attribute.String(tracing.AttrItemUID, item.UID), attribute.String(tracing.AttrItemName, item.Name))
	if err := m.startLocked(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mock) startLocked(ctx context.Context, item Item) error {
	m.scanID++
	bundle := docs.ComposeRun(docs.Start{
		UID:      item.UID,
		ScanID:   m.scanID,
		PlanName: item.Name,
		Extra:    map[string]any{"plan": item.Plan},
	}, docs.WithClock(m.clock))

	item.State = StateRunning
	item.Progress = 0
	item.TimeStart = bundle.Start.Time
	m.running = &item
	m.emitLocked(ctx, item.UID, bundle.Start)

	primary, err := bundle.ComposeDescriptor(docs.Descriptor{
		Name: "primary",
		DataKeys: map[string]docs.DataKey{
			"progress": {Dtype: "number", Shape: []int{}, Source: "simulated"},
		},
	})
	if err != nil {
		return fmt.Errorf("compose descriptor: %w", err)
	}
	m.emitLocked(ctx, item.UID, primary.Descriptor)

	resource, err := bundle.ComposeResource(docs.Resource{
		Spec:         "SIM_RESOURCE",
		Root:         "/tmp",
		ResourcePath: "data.bin",
	})
	if err != nil {
		return fmt.Errorf("compose resource: %w", err)
	}
	m.emitLocked(ctx, item.UID, resource.Resource)
	m.emitLocked(ctx, item.UID, resource.ComposeDatum(map[string]any{}))

	m.runs[item.UID] = &runState{bundle: bundle, primary: primary}
	m.wg.Add(1)
	go m.simulate(item.UID)
	log.Info(log.CatServer, "Started plan", "uid", item.UID, "name", item.Name, "scan_id", m.scanID)
	return nil
}

// deliver waits for slow subscribers so none of them misses the end of a run.
// It must be called without m.mu held.
func (m *Mock) deliver(ctx context.Context, doc docs.Document) {
	ctx, cancel := context.WithTimeout(ctx, stopDeliveryTimeout)
	defer cancel()
	if err := m.broker.Deliver(ctx, pubsub.DocumentEvent, doc); err != nil {
		log.Warn(log.CatServer, "Subscriber missed stop document", "error", err)
	}
}

// storeLocked persists a document. Store failures are logged; subscribers
// still see the document.
func (m *Mock) storeLocked(ctx context.Context, runUID string, doc docs.Document) {
	if err := m.store.Append(ctx, runUID, doc); err != nil {
		log.ErrorErr(log.CatStore, "Failed to store document", err, "uid", runUID, "name", string(doc.Name))
	}
	trace.SpanFromContext(ctx).AddEvent(tracing.EventDocumentEmitted,
		trace.WithAttributes(attribute.String(tracing.AttrDocumentName, string(doc.Name))))
}

// emitLocked stores a document and publishes it without blocking.
func (m *Mock) emitLocked(ctx context.Context, runUID string, body any) {
	doc := docs.MustNew(body)
	m.storeLocked(ctx, runUID, doc)
	m.broker.Publish(pubsub.DocumentEvent, doc)
}

func (m *Mock) simulate(uid string) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for step := 1; step <= m.steps; step++ {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}
		if !m.advance(uid, step) {
			return
		}
	}
	m.finish(uid)
}

func (m *Mock) advance(uid string, step int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running == nil || m.running.UID != uid {
		return false
	}
	rs := m.runs[uid]
	progress := min(100, step*100/m.steps)
	m.running.Progress = progress
	page, err := rs.primary.ComposeEventPage(map[string][]any{"progress": {float64(progress)}}, nil)
	if err != nil {
		log.ErrorErr(log.CatServer, "Failed to compose event page", err, "uid", uid)
		return false
	}
	m.emitLocked(m.ctx, uid, page)
	return true
}

func (m *Mock) finish(uid string) {
	ctx, span := m.tracer.Start(m.ctx, tracing.SpanPrefixQueue+"finish",
		trace.WithAttributes(attribute.String(tracing.AttrItemUID, uid)))
	defer span.End()

	m.mu.Lock()
	if m.running == nil || m.running.UID != uid {
		m.mu.Unlock()
		return
	}
	done := *m.running
	done.State = StateFinished
	done.Result = ResultSuccess
	done.Progress = 100
	done.TimeStop = m.now()
	stop, ok := m.retireLocked(ctx, done, docs.ExitSuccess, "")
	m.mu.Unlock()

	if ok {
		m.deliver(ctx, stop)
	}
	span.AddEvent(tracing.EventItemFinished)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil || len(m.queue) == 0 {
		return
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	if err := m.startLocked(ctx, next); err != nil {
		log.ErrorErr(log.CatServer, "Failed to start next plan", err, "uid", next.UID)
	}
}

// retireLocked moves the running item to history and stores the stop
// document of its run. The caller delivers the returned stop after
// releasing m.mu.
func (m *Mock) retireLocked(ctx context.Context, item Item, exitStatus, reason string) (docs.Document, bool) {
	m.history = append([]Item{item}, m.history...)
	m.running = nil
	rs, ok := m.runs[item.UID]
	if !ok {
		return docs.Document{}, false
	}
	delete(m.runs, item.UID)
	stop, err := rs.bundle.ComposeStop(exitStatus, reason)
	if err != nil {
		log.ErrorErr(log.CatServer, "Failed to compose stop", err, "uid", item.UID)
		return docs.Document{}, false
	}
	doc := docs.MustNew(stop)
	m.storeLocked(ctx, item.UID, doc)
	return doc, true
}

// Stop aborts the running item. It reports false when nothing is running.
// The next queued item is not started.
func (m *Mock) Stop(ctx context.Context) bool {
	ctx, span := m.tracer.Start(ctx, tracing.SpanPrefixQueue+"stop")
	defer span.End()

	m.mu.Lock()
	if m.running == nil {
		m.mu.Unlock()
		return false
	}
	item := *m.running
	item.State = StateStopped
	item.Result = ResultStopped
	item.TimeStop = m.now()
	span.SetAttributes(attribute.String(tracing.AttrItemUID, item.UID))
	stop, ok := m.retireLocked(ctx, item, docs.ExitAbort, "stopped by user")
	m.mu.Unlock()

	if ok {
		m.deliver(ctx, stop)
	}
	log.Info(log.CatServer, "Stopped plan", "uid", item.UID)
	return true
}

// ToggleEnvironmentDestroy flips the environment flag and returns it.
func (m *Mock) ToggleEnvironmentDestroy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envDestroy = !m.envDestroy
	return m.envDestroy
}

// SavePlan stores plan code under name, generating "plan-xxxxxxxx" when name
// is empty. It returns the name used.
func (m *Mock) SavePlan(name, code string) string {
	if name == "" {
		name = "plan-" + uuid.New().String()[:8]
	}
	m.mu.Lock()
	m.plans[name] = code
	m.mu.Unlock()
	return name
}

// Plans returns saved plan names in order.
func (m *Mock) Plans() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.plans))
}

// RunUIDs lists the running item then the history, newest first.
func (m *Mock) RunUIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	uids := make([]string, 0, len(m.history)+1)
	if m.running != nil {
		uids = append(uids, m.running.UID)
	}
	for _, h := range m.history {
		uids = append(uids, h.UID)
	}
	return uids
}

// Documents returns the stored documents of a run.
func (m *Mock) Documents(ctx context.Context, uid string) ([]docs.Document, error) {
	return m.store.Documents(ctx, uid)
}

// Subscribe streams every document emitted after the call until ctx ends.
func (m *Mock) Subscribe(ctx context.Context) <-chan pubsub.Event[docs.Document] {
	return m.broker.Subscribe(ctx)
}

// Subscribers reports the number of live subscriptions.
func (m *Mock) Subscribers() int {
	return m.broker.SubscriberCount()
}
