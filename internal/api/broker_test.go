package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"pdptw/internal/model"
)

func receive(t *testing.T, ch chan model.Event) model.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return model.Event{}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	other := b.Subscribe("r2")

	b.Publish("r1", model.Event{Type: "status", RunID: "r1", Status: model.RunRunning})
	got := receive(t, ch)
	require.Equal(t, model.RunRunning, got.Status)
	require.Empty(t, other)

	b.Unsubscribe("r1", ch)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
	require.NotPanics(t, func() { b.Unsubscribe("r1", ch) })
	b.Publish("r1", model.Event{Type: "status"})
}

func TestBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("r1")
	for i := 0; i < 100; i++ {
		b.Publish("r1", model.Event{Type: "progress"})
	}
	require.Len(t, ch, cap(ch))
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	require.NoError(t, err)
	defer b.Close()

	ch := b.Subscribe("r1")
	snap := &model.Snapshot{Iteration: 3, BestCost: 12.5}
	b.Publish("r1", model.Event{Type: "progress", RunID: "r1", Snapshot: snap})

	got := receive(t, ch)
	require.Equal(t, "progress", got.Type)
	require.NotNil(t, got.Snapshot)
	require.Equal(t, 3, got.Snapshot.Iteration)

	b.Unsubscribe("r1", ch)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker("not a url")
	require.Error(t, err)
}
