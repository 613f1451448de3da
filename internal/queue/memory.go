package queue

import (
	"context"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	_ RevisionQueue = (*MemoryQueue)(nil)
	_ RevisionQueue = (*LogQueue)(nil)
)

// MemoryQueue keeps published events in process and fans them out to subscribers.
type MemoryQueue struct {
	mu          sync.Mutex
	events      []RevisionEvent
	subscribers []chan RevisionEvent
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (m *MemoryQueue) Publish(ctx context.Context, event RevisionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			logrus.Warnf("dropping %s for revision %s: subscriber is full", event.Type, event.RevisionID)
		}
	}

	return nil
}

// Subscribe returns a channel receiving every event published after the call.
// The channel is closed when ctx is done.
func (m *MemoryQueue) Subscribe(ctx context.Context, buffer int) <-chan RevisionEvent {
	ch := make(chan RevisionEvent, buffer)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		m.subscribers = slices.DeleteFunc(m.subscribers, func(c chan RevisionEvent) bool { return c == ch })
		close(ch)
	}()

	return ch
}

// Events returns a copy of every event published so far.
func (m *MemoryQueue) Events() []RevisionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.events)
}

func (m *MemoryQueue) Close() error {
	return nil
}

// LogQueue only logs events. It is used when no broker is configured.
type LogQueue struct{}

func NewLogQueue() *LogQueue {
	return &LogQueue{}
}

func (LogQueue) Publish(ctx context.Context, event RevisionEvent) error {
	logrus.WithFields(logrus.Fields{
		"type":     event.Type,
		"revision": event.RevisionID,
		"template": event.TemplateID,
		"status":   event.Status,
	}).Info("revision event")

	return nil
}

func (LogQueue) Close() error {
	return nil
}
