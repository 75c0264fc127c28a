package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func TestBroadcaster_DeliversToSubscriber(t *testing.T) {
	b := New(4, nil)
	ch, handle := b.Subscribe()
	defer b.Unsubscribe(handle)

	b.Publish(cortexmodels.ChangeEvent{Kind: cortexmodels.ChangeMemoryCreated, EntityID: "m1"})

	select {
	case ev := <-ch:
		require.Equal(t, cortexmodels.ChangeMemoryCreated, ev.Kind)
		require.Equal(t, "m1", ev.EntityID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_OverflowDropsOldestAndCounts(t *testing.T) {
	b := New(2, nil)
	ch, handle := b.Subscribe()
	defer b.Unsubscribe(handle)

	for i := 0; i < 5; i++ {
		b.Publish(cortexmodels.ChangeEvent{Kind: cortexmodels.ChangeActivityLogged, EntityID: string(rune('a' + i))})
	}

	var last cortexmodels.ChangeEvent
	count := 0
	for {
		select {
		case ev := <-ch:
			last = ev
			count++
			continue
		default:
		}
		break
	}

	require.Equal(t, 2, count)
	require.Equal(t, "e", last.EntityID)
	require.Equal(t, 1, last.DroppedCount)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := New(4, nil)
	ch, handle := b.Subscribe()
	b.Unsubscribe(handle)

	_, ok := <-ch
	require.False(t, ok)
}

func TestBroadcaster_PublishNeverBlocksWithoutSubscribers(t *testing.T) {
	b := New(4, nil)
	done := make(chan struct{})
	go func() {
		b.Publish(cortexmodels.ChangeEvent{Kind: cortexmodels.ChangeDatabaseChanged})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}
