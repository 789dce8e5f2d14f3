package feed

import (
	"testing"

	"github.com/CLDWare/attendance-backend/internal/attendance"
)

func TestHub_PublishToSubscribers(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Subscribe(1)
	ch2 := hub.Subscribe(1)
	other := hub.Subscribe(2)

	event := attendance.MarkEvent{SessionID: 1, StudentID: 7, MarkCount: 1}
	hub.Publish(event)

	for i, ch := range []chan attendance.MarkEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.StudentID != 7 {
				t.Errorf("subscriber %d: got student %d, want 7", i, got.StudentID)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}

	select {
	case got := <-other:
		t.Errorf("subscriber of session 2 received event for session %d", got.SessionID)
	default:
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe(1)
	hub.Unsubscribe(1, ch)

	if _, ok := <-ch; ok {
		t.Error("expected channel closed after unsubscribe")
	}

	// Publishing after the last unsubscribe must not panic on a closed channel
	hub.Publish(attendance.MarkEvent{SessionID: 1})

	// Unsubscribing twice is a no-op
	hub.Unsubscribe(1, ch)
}

// A full buffer drops events instead of blocking the publisher.
func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()

	ch := hub.Subscribe(1)
	for i := 0; i < cap(ch)+10; i++ {
		hub.Publish(attendance.MarkEvent{SessionID: 1, StudentID: uint(i)})
	}

	if len(ch) != cap(ch) {
		t.Errorf("expected buffer full at %d, got %d", cap(ch), len(ch))
	}
}
