package daemon

import (
	"bytes"
	"testing"
)

func TestBroadcastFanOut(t *testing.T) {
	b := NewByteBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(ByteFrame{PromptID: 1, Data: []byte("abc")})

	for _, s := range []*ByteSub{s1, s2} {
		select {
		case f := <-s.C:
			if f.PromptID != 1 || !bytes.Equal(f.Data, []byte("abc")) {
				t.Errorf("unexpected frame %+v", f)
			}
		default:
			t.Error("subscriber missed the frame")
		}
	}
}

func TestBroadcastAfterCloseNotDelivered(t *testing.T) {
	b := NewByteBroadcaster()
	s := b.Subscribe()
	s.Close()

	b.Publish(ByteFrame{PromptID: 1, Data: []byte("x")})
	if len(s.C) != 0 {
		t.Error("closed subscriber received a frame")
	}
}

func TestBroadcastLaggedSubscriberDropsSilently(t *testing.T) {
	b := NewByteBroadcaster()
	s := b.Subscribe()
	defer s.Close()

	for i := 0; i < byteSubCapacity+10; i++ {
		b.Publish(ByteFrame{PromptID: 1, Data: []byte{byte(i)}})
	}

	if len(s.C) != byteSubCapacity {
		t.Errorf("queued = %d, want %d", len(s.C), byteSubCapacity)
	}
	if !s.Lagged() {
		t.Error("overflowing subscriber should be flagged lagged")
	}

	// A fresh subscriber starts clean — the resubscribe path relies on this.
	s2 := b.Subscribe()
	defer s2.Close()
	if len(s2.C) != 0 || s2.Lagged() {
		t.Error("fresh subscriber inherited stale state")
	}
}

func TestBroadcastNoSubscribersIsNoop(t *testing.T) {
	b := NewByteBroadcaster()
	// Publishing into the void must not block or panic.
	b.Publish(ByteFrame{PromptID: 1, Data: []byte("x")})
}
