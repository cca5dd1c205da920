package sequencer

import (
	"context"
	"testing"
	"time"
)

func TestFanoutDelivers(t *testing.T) {
	src := make(chan Notification, 4)
	f := NewFanout(src)
	a, cancelA := f.Subscribe(4)
	b, cancelB := f.Subscribe(4)
	defer cancelB()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	src <- Notification{Kind: PositionUpdate, Bar: 1}
	for _, ch := range []<-chan Notification{a, b} {
		select {
		case n := <-ch:
			if n.Bar != 1 {
				t.Errorf("got %+v", n)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive")
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled subscription still open")
	}

	cancel()
	<-done
	if _, ok := <-b; ok {
		t.Error("subscription open after Run returned")
	}
}

func TestFanoutSlowSubscriber(t *testing.T) {
	f := NewFanout(nil)
	slow, cancel := f.Subscribe(1)
	defer cancel()

	f.broadcast(Notification{Beat: 0})
	f.broadcast(Notification{Beat: 1})

	if n := <-slow; n.Beat != 0 {
		t.Errorf("kept beat %d, want the first", n.Beat)
	}
	select {
	case n := <-slow:
		t.Errorf("unexpected %+v", n)
	default:
	}
}
