package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	topic := NewTopic[int]()
	a := topic.Subscribe()
	b := topic.Subscribe()

	assert.Equal(t, 2, topic.Publish(7))
	assert.Equal(t, 7, <-a.Recv())
	assert.Equal(t, 7, <-b.Recv())

	b.Done()
	assert.Equal(t, 1, topic.Publish(8))
	assert.Equal(t, 8, <-a.Recv())
}

func TestTopicDropsForSlowSubscriber(t *testing.T) {
	topic := NewTopic[int]()
	sub := topic.Subscribe()
	defer sub.Done()

	for i := 0; i < SUBSCRIBER_BUFFER+3; i++ {
		topic.Publish(i)
	}
	assert.Equal(t, uint64(3), topic.Dropped())
	assert.Equal(t, 0, <-sub.Recv())
}

func TestLifetimeKeepsFirstCause(t *testing.T) {
	lifetime := NewLifetime(context.Background())
	require.False(t, lifetime.IsDone())
	require.NoError(t, lifetime.Cause())

	stopped := errors.New("stopped")
	lifetime.End(stopped)
	lifetime.End(errors.New("later"))
	<-lifetime.Done()
	assert.True(t, lifetime.IsDone())
	assert.Equal(t, stopped, lifetime.Cause())
}

func TestLifetimeFollowsParent(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	lifetime := NewLifetime(parent)

	cancel()
	<-lifetime.Done()
	assert.True(t, errors.Is(lifetime.Cause(), context.Canceled))
}
