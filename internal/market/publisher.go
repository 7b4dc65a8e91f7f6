package market

import "sync/atomic"

// Publisher holds the current snapshot and swaps it atomically so that any
// number of concurrent readers observe one complete snapshot and never a
// half-updated one.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

func NewPublisher() *Publisher {
	p := &Publisher{}
	p.current.Store(&Snapshot{
		Books:  map[Market]OrderBook{},
		Prices: map[Market]float64{},
	})
	return p
}

// Publish replaces the current snapshot wholesale. The caller must not mutate
// snap after publishing.
func (p *Publisher) Publish(snap *Snapshot) {
	p.current.Store(snap)
}

// Current returns the latest published snapshot.
func (p *Publisher) Current() *Snapshot {
	return p.current.Load()
}

// CompareAndSwap publishes next only when old is still the current snapshot.
// Writers deriving a snapshot from Current must use this so a concurrent
// Publish is never overwritten with state derived from its predecessor.
func (p *Publisher) CompareAndSwap(old, next *Snapshot) bool {
	return p.current.CompareAndSwap(old, next)
}

var _ Source = (*Publisher)(nil)
