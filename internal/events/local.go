package events

import (
	"maps"
	"slices"
	"sync"
)

// LocalBus is a synchronous in-process Bus. Handlers run on the publishing
// goroutine in subscription order.
type LocalBus struct {
	mu     sync.RWMutex
	nextId int
	subs   map[string]map[int]func([]byte)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[string]map[int]func([]byte){}}
}

func (b *LocalBus) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[subject] == nil {
		b.subs[subject] = map[int]func([]byte){}
	}
	id := b.nextId
	b.nextId++
	b.subs[subject][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[subject], id)
		})
	}, nil
}

func (b *LocalBus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	ids := slices.Sorted(maps.Keys(b.subs[subject]))
	handlers := make([]func([]byte), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[subject][id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribers returns the number of live subscriptions on subject.
func (b *LocalBus) Subscribers(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[subject])
}
