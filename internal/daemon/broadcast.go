package daemon

import (
	"log/slog"
	"sync"
)

// byteSubCapacity bounds each subscriber's frame queue.
const byteSubCapacity = 256

// ByteFrame is one chunk of raw PTY output tagged with its prompt.
type ByteFrame struct {
	PromptID uint64
	Data     []byte
}

// ByteBroadcaster fans PTY output out to every connected write loop on a
// path that bypasses the per-client JSON event queue. Publishing never
// blocks: a subscriber whose queue is full loses frames silently and is
// flagged lagged, matching the policy that slow clients may miss bytes but
// must never stall a worker's reader.
type ByteBroadcaster struct {
	mu   sync.Mutex
	subs map[*ByteSub]struct{}
}

// ByteSub is one subscriber's receive handle.
type ByteSub struct {
	C      chan ByteFrame
	b      *ByteBroadcaster
	lagged bool
}

// NewByteBroadcaster creates an empty broadcaster.
func NewByteBroadcaster() *ByteBroadcaster {
	return &ByteBroadcaster{subs: make(map[*ByteSub]struct{})}
}

// Subscribe registers a fresh receiver. Re-subscribing after a pause always
// uses a new receiver so stale buffered bytes are discarded.
func (b *ByteBroadcaster) Subscribe() *ByteSub {
	s := &ByteSub{C: make(chan ByteFrame, byteSubCapacity), b: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Close deregisters the subscriber. Pending frames are discarded with it.
func (s *ByteSub) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
}

// Lagged reports whether this subscriber has ever dropped a frame.
func (s *ByteSub) Lagged() bool {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.lagged
}

// Publish delivers a frame to every subscriber without blocking.
func (b *ByteBroadcaster) Publish(f ByteFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.C <- f:
		default:
			if !s.lagged {
				slog.Debug("pty byte subscriber lagging, dropping frames", "prompt_id", f.PromptID)
			}
			s.lagged = true
		}
	}
}
