package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	attempts int
	failures int // fail this many attempts before succeeding
	sent     []string
}

func (f *fakeSender) Send(leadID uint, message string, sentBy *uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("temporary failure")
	}
	f.sent = append(f.sent, message)
	return nil
}

func TestDispatcherDeliversJob(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 8, 3)
	d.Start(1)

	require.True(t, d.EnqueueMessage(1, "hello", nil))
	d.Stop()

	assert.Equal(t, []string{"hello"}, sender.sent)
	assert.Equal(t, 1, sender.attempts)
}

func TestDispatcherRetriesBeforeGivingUp(t *testing.T) {
	sender := &fakeSender{failures: 2}
	d := NewDispatcher(sender, 8, 3)
	d.retryDelay = time.Millisecond
	d.Start(1)

	require.True(t, d.EnqueueMessage(1, "eventually", nil))
	d.Stop()

	assert.Equal(t, []string{"eventually"}, sender.sent)
	assert.Equal(t, 3, sender.attempts)
}

func TestDispatcherBoundedAttempts(t *testing.T) {
	sender := &fakeSender{failures: 10}
	d := NewDispatcher(sender, 8, 3)
	d.retryDelay = time.Millisecond
	d.Start(1)

	require.True(t, d.EnqueueMessage(1, "doomed", nil))
	d.Stop()

	assert.Empty(t, sender.sent)
	assert.Equal(t, 3, sender.attempts)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, 1, 1)
	// workers not started, so the buffer fills up

	assert.True(t, d.Enqueue(Job{LeadID: 1, Message: "first"}))
	assert.False(t, d.Enqueue(Job{LeadID: 2, Message: "second"}))
}
