package memory

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Bus is an in-process domain.EventBus for dev mode and tests. Pub/Sub
// subscribers get best-effort delivery; the stream side keeps an in-memory
// append log with monotonic IDs.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers the payload to every subscriber whose pattern matches the
// topic. Slow subscribers drop messages rather than block the publisher.
func (b *Bus) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pattern, chans := range b.subs {
		if !topicMatch(pattern, topic) {
			continue
		}
		for _, ch := range chans {
			select {
			case ch <- payload:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers a subscriber for a topic or glob pattern. The channel
// closes when the context is cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		chans := b.subs[topic]
		for i, c := range chans {
			if c == ch {
				b.subs[topic] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func topicMatch(pattern, topic string) bool {
	ok, err := path.Match(pattern, topic)
	if err != nil {
		return pattern == topic
	}
	return ok
}

// StreamAppend appends a payload to the named stream.
func (b *Bus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.streams[stream] = append(b.streams[stream], domain.StreamMessage{
		ID:      fmt.Sprintf("%016d-0", b.nextID),
		Payload: payload,
	})
	return nil
}

// StreamRead returns up to count messages with IDs strictly after lastID.
// "0" and "0-0" read from the beginning.
func (b *Bus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []domain.StreamMessage
	for _, msg := range b.streams[stream] {
		if lastID != "0" && lastID != "0-0" && msg.ID <= lastID {
			continue
		}
		out = append(out, msg)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}

var _ domain.EventBus = (*Bus)(nil)
