package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybell/butler/pkg/domain"
)

func TestEventTapFanOut(t *testing.T) {
	tap := NewEventTap()
	a := tap.Subscribe("a")
	b := tap.Subscribe("b")
	require.Equal(t, 2, tap.SubscriberCount())

	event := domain.NewAgentEvent("test", "test.ping", nil, nil)
	tap.Publish(event)

	got := <-a
	assert.Equal(t, event.ID, got.ID)
	got = <-b
	assert.Equal(t, event.ID, got.ID)
}

func TestEventTapDropsWhenSubscriberIsFull(t *testing.T) {
	tap := NewEventTap()
	ch := tap.Subscribe("slow")

	// Overfill the buffer; Publish must never block.
	for i := 0; i < 200; i++ {
		tap.Publish(domain.NewAgentEvent("test", "test.flood", nil, nil))
	}

	assert.Equal(t, 64, len(ch))
}

func TestEventTapClose(t *testing.T) {
	tap := NewEventTap()
	ch := tap.Subscribe("a")

	tap.Close()
	tap.Close() // safe to call twice

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is a no-op, not a panic.
	tap.Publish(domain.NewAgentEvent("test", "test.late", nil, nil))
}
