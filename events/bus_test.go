package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus[string](zap.NewNop().Sugar())

	var got1, got2 []string
	bus.Subscribe(func(e string) { got1 = append(got1, e) })
	bus.Subscribe(func(e string) { got2 = append(got2, e) })

	bus.Publish("a")
	bus.Publish("b")

	assert.Equal(t, []string{"a", "b"}, got1)
	assert.Equal(t, []string{"a", "b"}, got2)
}

func TestPublishWithNoSubscribersDropsEvent(t *testing.T) {
	bus := NewBus[int](zap.NewNop().Sugar())
	// Must not block or panic
	bus.Publish(42)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus[int](zap.NewNop().Sugar())

	var got []int
	unsubscribe := bus.Subscribe(func(e int) { got = append(got, e) })

	bus.Publish(1)
	unsubscribe()
	bus.Publish(2)

	assert.Equal(t, []int{1}, got)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestPanickingSubscriberDoesNotAffectOthers(t *testing.T) {
	bus := NewBus[int](zap.NewNop().Sugar())

	var before, after []int
	bus.Subscribe(func(e int) { before = append(before, e) })
	bus.Subscribe(func(e int) { panic("boom") })
	bus.Subscribe(func(e int) { after = append(after, e) })

	require.NotPanics(t, func() { bus.Publish(7) })

	assert.Equal(t, []int{7}, before)
	assert.Equal(t, []int{7}, after)
}

func TestPerPublisherFIFOOrdering(t *testing.T) {
	bus := NewBus[int](zap.NewNop().Sugar())

	var mu sync.Mutex
	got := make(map[int][]int)
	bus.Subscribe(func(e int) {
		mu.Lock()
		got[e/1000] = append(got[e/1000], e)
		mu.Unlock()
	})

	// Several publishers, each publishing an increasing sequence. Every
	// subscriber must observe each publisher's events in order.
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bus.Publish(p*1000 + i)
			}
		}(p)
	}
	wg.Wait()

	for p := 0; p < 4; p++ {
		seq := got[p]
		require.Len(t, seq, 100)
		for i, v := range seq {
			assert.Equal(t, p*1000+i, v)
		}
	}
}

func TestSubscribeDuringPublishIsSafe(t *testing.T) {
	bus := NewBus[int](zap.NewNop().Sugar())

	done := make(chan struct{})
	bus.Subscribe(func(e int) {
		if e == 0 {
			// Concurrent subscribe while this publish is in flight
			go func() {
				bus.Subscribe(func(int) {})
				close(done)
			}()
			<-done
		}
	})

	require.NotPanics(t, func() { bus.Publish(0) })
	assert.Equal(t, 2, bus.SubscriberCount())
}
