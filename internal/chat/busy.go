package chat

import "sync"

// BusySignal is true while at least one exchange awaits its reply.
// Watchers are called on every transition with the new value.
type BusySignal struct {
	mu       sync.Mutex
	inflight int
	watchers []func(bool)
	idle     *sync.Cond
}

func NewBusySignal() *BusySignal {
	b := &BusySignal{}
	b.idle = sync.NewCond(&b.mu)
	return b
}

func (b *BusySignal) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight > 0
}

func (b *BusySignal) Watch(fn func(bool)) {
	b.mu.Lock()
	b.watchers = append(b.watchers, fn)
	b.mu.Unlock()
}

func (b *BusySignal) raise() {
	b.mu.Lock()
	b.inflight++
	changed := b.inflight == 1
	ws := append([]func(bool){}, b.watchers...)
	b.mu.Unlock()

	if changed {
		for _, fn := range ws {
			fn(true)
		}
	}
}

func (b *BusySignal) lower() {
	b.mu.Lock()
	if b.inflight > 0 {
		b.inflight--
	}
	changed := b.inflight == 0
	if changed {
		b.idle.Broadcast()
	}
	ws := append([]func(bool){}, b.watchers...)
	b.mu.Unlock()

	if changed {
		for _, fn := range ws {
			fn(false)
		}
	}
}

// WaitIdle blocks until no exchange is in flight.
func (b *BusySignal) WaitIdle() {
	b.mu.Lock()
	for b.inflight > 0 {
		b.idle.Wait()
	}
	b.mu.Unlock()
}
