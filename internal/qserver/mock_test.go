package qserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/pubsub"
)

func newTestMock(t *testing.T, steps int, interval time.Duration) *Mock {
	t.Helper()
	m := NewMock(Config{Steps: steps, Interval: interval})
	t.Cleanup(m.Close)
	return m
}

func names(documents []docs.Document) []docs.Name {
	out := make([]docs.Name, len(documents))
	for i, d := range documents {
		out[i] = d.Name
	}
	return out
}

func TestMock_AddDefaults(t *testing.T) {
	m := newTestMock(t, 1, time.Hour)
	item := m.Add(AddRequest{})
	require.NotEmpty(t, item.UID)
	require.Equal(t, "plan", item.Name)
	require.Equal(t, StateQueued, item.State)

	given := m.Add(AddRequest{UID: "abc", Name: "count", Plan: "count([det])"})
	require.Equal(t, "abc", given.UID)
	require.Equal(t, []Item{item, given}, m.QueueStatus().Queue)

	m.Clear()
	require.Empty(t, m.QueueStatus().Queue)
}

func TestMock_StartComposesRun(t *testing.T) {
	m := newTestMock(t, 1, time.Hour)
	ok, err := m.Start(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "empty queue")

	item := m.Add(AddRequest{Name: "scan"})
	ok, err = m.Start(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Start(context.Background())
	require.NoError(t, err)
	require.False(t, ok, "already running")

	st := m.QueueStatus()
	require.NotNil(t, st.Running)
	require.Equal(t, StateRunning, st.Running.State)
	require.Equal(t, []string{item.UID}, m.RunUIDs())

	documents, err := m.Documents(context.Background(), item.UID)
	require.NoError(t, err)
	require.Equal(t, []docs.Name{docs.NameStart, docs.NameDescriptor, docs.NameResource, docs.NameDatum}, names(documents))

	start := documents[0].Body.(docs.Start)
	require.Equal(t, item.UID, start.UID, "run uid is the queue item uid")
	require.Equal(t, "scan", start.PlanName)
	require.Equal(t, 1, start.ScanID)

	desc := documents[1].Body.(docs.Descriptor)
	require.Equal(t, "primary", desc.Name)
	require.Equal(t, "number", desc.DataKeys["progress"].Dtype)
}

func TestMock_StopAbortsRun(t *testing.T) {
	m := newTestMock(t, 1, time.Hour)
	require.False(t, m.Stop(context.Background()))

	first := m.Add(AddRequest{})
	m.Add(AddRequest{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	require.True(t, m.Stop(context.Background()))
	st := m.QueueStatus()
	require.Nil(t, st.Running, "stop does not start the next item")
	require.Len(t, st.Queue, 1)
	require.Len(t, st.History, 1)
	require.Equal(t, StateStopped, st.History[0].State)
	require.Equal(t, ResultStopped, st.History[0].Result)

	documents, err := m.Documents(context.Background(), first.UID)
	require.NoError(t, err)
	last := documents[len(documents)-1]
	require.Equal(t, docs.NameStop, last.Name)
	require.Equal(t, docs.ExitAbort, last.Body.(docs.Stop).ExitStatus)
}

func TestMock_SimulationFinishesAndStartsNext(t *testing.T) {
	m := newTestMock(t, 3, time.Millisecond)
	first := m.Add(AddRequest{Name: "one"})
	second := m.Add(AddRequest{Name: "two"})
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := m.QueueStatus()
		return st.Running == nil && len(st.History) == 2
	}, 5*time.Second, 5*time.Millisecond)

	st := m.QueueStatus()
	require.Equal(t, second.UID, st.History[0].UID, "history is newest first")
	require.Equal(t, first.UID, st.History[1].UID)
	for _, h := range st.History {
		require.Equal(t, StateFinished, h.State)
		require.Equal(t, ResultSuccess, h.Result)
		require.Equal(t, 100, h.Progress)
		require.NotZero(t, h.TimeStart)
		require.GreaterOrEqual(t, h.TimeStop, h.TimeStart)
	}

	documents, err := m.Documents(context.Background(), first.UID)
	require.NoError(t, err)
	require.Equal(t, []docs.Name{
		docs.NameStart, docs.NameDescriptor, docs.NameResource, docs.NameDatum,
		docs.NameEventPage, docs.NameEventPage, docs.NameEventPage, docs.NameStop,
	}, names(documents))

	var progress []any
	for _, d := range documents {
		if page, ok := d.Body.(docs.EventPage); ok {
			progress = append(progress, page.Data["progress"]...)
		}
	}
	require.Equal(t, []any{33.0, 66.0, 100.0}, progress)

	stop := documents[len(documents)-1].Body.(docs.Stop)
	require.Equal(t, docs.ExitSuccess, stop.ExitStatus)
	require.Equal(t, 3, stop.NumEvents["primary"])
}

func TestMock_PlansAndEnvironment(t *testing.T) {
	m := newTestMock(t, 1, time.Hour)
	require.Equal(t, "b", m.SavePlan("b", "code"))
	generated := m.SavePlan("", "")
	require.Regexp(t, `^plan-[0-9a-f]{8}$`, generated)
	require.Equal(t, []string{"b", generated}, m.Plans())

	require.True(t, m.ToggleEnvironmentDestroy())
	require.False(t, m.ToggleEnvironmentDestroy())
}

func TestMock_SubscribersSeeDocuments(t *testing.T) {
	m := newTestMock(t, 2, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := m.Subscribe(ctx)

	m.Add(AddRequest{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)

	var got []docs.Name
	timeout := time.After(5 * time.Second)
	for len(got) == 0 || got[len(got)-1] != docs.NameStop {
		select {
		case ev := <-events:
			got = append(got, ev.Payload.Name)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	require.Equal(t, docs.NameStart, got[0])
	require.Len(t, got, 7)
}

func TestMock_StopDoesNotHoldQueueForSlowSubscriber(t *testing.T) {
	m := newTestMock(t, 1, time.Hour)
	subCtx, unsubscribe := context.WithCancel(context.Background())
	defer unsubscribe()
	_ = m.Subscribe(subCtx)

	m.Add(AddRequest{})
	_, err := m.Start(context.Background())
	require.NoError(t, err)
	// Fill the subscriber's buffer so the stop document has to wait.
	for range 256 {
		m.broker.Publish(pubsub.DocumentEvent, docs.MustNew(docs.Start{UID: "filler"}))
	}

	stopped := make(chan bool, 1)
	go func() { stopped <- m.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(m.QueueStatus().History) == 1
	}, time.Second, 5*time.Millisecond)

	begin := time.Now()
	m.Add(AddRequest{})
	require.Less(t, time.Since(begin), 500*time.Millisecond)

	select {
	case <-stopped:
		t.Fatal("Stop returned before the subscriber made room")
	default:
	}

	unsubscribe()
	select {
	case ok := <-stopped:
		require.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the subscriber left")
	}
	require.Greater(t, m.broker.Dropped(), int64(0))
}
