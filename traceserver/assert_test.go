package traceserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterSubscribeReturnsDistinctSubscriptions(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	require.NotNil(t, sub1)
	require.NotNil(t, sub2)
	assert.NotSame(t, sub1, sub2)
	assert.NotEqual(t, sub1.Channel, sub2.Channel)
}

func TestPublishAfterCloseDoesNotPanic(t *testing.T) {
	b := NewBroadcaster()
	b.Close()

	assert.NotPanics(t, func() {
		b.Publish(BlockEmitted{GuestPC: 0x9000})
	})
}

func TestBroadcastEventRoundTripsGuestPC(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(BlockEmitted{GuestPC: 0x3344, Opcode: 0xE350})

	select {
	case ev := <-sub.Channel:
		assert.Equal(t, uint32(0x3344), ev.GuestPC)
		assert.Equal(t, uint16(0xE350), ev.Opcode)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}
