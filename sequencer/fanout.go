package sequencer

import (
	"context"
	"sync"

	"go-metronome/debug"
)

// Fanout copies the engine's notification stream to several consumers
// (the terminal UI, SSE clients). A slow subscriber loses messages, it
// never holds up the others.
type Fanout struct {
	src  <-chan Notification
	mu   sync.Mutex
	subs map[chan Notification]struct{}
}

// NewFanout reads from src once Run is called
func NewFanout(src <-chan Notification) *Fanout {
	return &Fanout{src: src, subs: make(map[chan Notification]struct{})}
}

// Subscribe returns a channel with room for buf notifications and a
// function that ends the subscription
func (f *Fanout) Subscribe(buf int) (<-chan Notification, func()) {
	ch := make(chan Notification, max(buf, 1))
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
			f.mu.Unlock()
		})
	}
}

// Run forwards until ctx is done, then closes every subscription
func (f *Fanout) Run(ctx context.Context) {
	defer f.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-f.src:
			f.broadcast(n)
		}
	}
}

func (f *Fanout) broadcast(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- n:
		default:
			debug.LogEvery(100, "fanout", "subscriber behind, dropped %s", n.Kind)
		}
	}
}

func (f *Fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
}
