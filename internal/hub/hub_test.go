package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New()

	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(map[string]string{"state": "FREE"})

	for _, ch := range []<-chan []byte{a, b} {
		select {
		case payload := <-ch:
			assert.JSONEq(t, `{"state":"FREE"}`, string(payload))
		default:
			t.Fatal("subscriber did not receive the publish")
		}
	}
}

func TestNewSubscriberGetsLastPayload(t *testing.T) {
	h := New()
	h.Publish(map[string]string{"state": "DIRECT_OCCUPIED"})

	ch, cancel := h.Subscribe()
	defer cancel()

	select {
	case payload := <-ch:
		assert.JSONEq(t, `{"state":"DIRECT_OCCUPIED"}`, string(payload))
	default:
		t.Fatal("late subscriber did not get the replayed payload")
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	h := New()

	ch, cancel := h.Subscribe()
	cancel()
	assert.Equal(t, 0, h.Subscribers())

	_, open := <-ch
	assert.False(t, open, "channel closes on cancel")

	// Double cancel is a no-op.
	cancel()

	h.Publish("after cancel")
}

func TestSlowSubscriberDropsUpdates(t *testing.T) {
	h := New()

	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer*3; i++ {
		h.Publish(i)
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	require.Equal(t, subscriberBuffer, received, "overflow drops instead of blocking")
}
