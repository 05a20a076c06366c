package utils

import (
	"github.com/sasha-s/go-deadlock"
)

const SUBSCRIBER_BUFFER = 64

// Topic fans values out to every subscriber. Publish never blocks: a
// subscriber that has fallen SUBSCRIBER_BUFFER values behind misses new ones.
type Topic[T any] struct {
	subscribers map[chan T]struct{}
	mutex       deadlock.Mutex
	dropped     uint64
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

// Publish returns the number of subscribers that received the value.
func (t *Topic[T]) Publish(value T) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delivered := 0
	for subscriber := range t.subscribers {
		select {
		case subscriber <- value:
			delivered++
		default:
			t.dropped++
		}
	}
	return delivered
}

func (t *Topic[T]) Dropped() uint64 {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.dropped
}

type Subscriber[T any] struct {
	channel chan T
	topic   *Topic[T]
}

func (t *Topic[T]) Subscribe() *Subscriber[T] {
	channel := make(chan T, SUBSCRIBER_BUFFER)
	t.mutex.Lock()
	t.subscribers[channel] = struct{}{}
	t.mutex.Unlock()

	return &Subscriber[T]{channel, t}
}

func (t *Subscriber[T]) Recv() <-chan T {
	return t.channel
}

func (t *Subscriber[T]) Done() {
	topic := t.topic
	topic.mutex.Lock()
	delete(topic.subscribers, t.channel)
	topic.mutex.Unlock()
}
