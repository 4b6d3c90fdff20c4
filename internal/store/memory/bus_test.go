package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus()

	ch, err := bus.Subscribe(ctx, "commitment.settled")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "commitment.settled", []byte(`{"id":"cmt-000001"}`)))
	assert.Equal(t, []byte(`{"id":"cmt-000001"}`), recv(t, ch))

	// Other topics do not leak in.
	require.NoError(t, bus.Publish(ctx, "commitment.created", []byte("x")))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusPatternSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus()

	ch, err := bus.Subscribe(ctx, "commitment.*")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "commitment.violated", []byte("a")))
	assert.Equal(t, []byte("a"), recv(t, ch))

	require.NoError(t, bus.Publish(ctx, "allocation.allocated", []byte("b")))
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusStreamAppendRead(t *testing.T) {
	ctx := context.Background()
	bus := NewBus()

	require.NoError(t, bus.StreamAppend(ctx, "events", []byte("one")))
	require.NoError(t, bus.StreamAppend(ctx, "events", []byte("two")))
	require.NoError(t, bus.StreamAppend(ctx, "events", []byte("three")))

	msgs, err := bus.StreamRead(ctx, "events", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte("one"), msgs[0].Payload)

	// Reading past the last seen ID returns only newer entries.
	tail, err := bus.StreamRead(ctx, "events", msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, []byte("three"), tail[0].Payload)

	// Count bounds the page size.
	page, err := bus.StreamRead(ctx, "events", "0", 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}
