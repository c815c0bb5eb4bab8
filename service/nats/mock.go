package nats

import (
	"context"
	"sync"
)

// MockPublisher is an in-memory Publisher for tests. Like JetStream with a
// duplicate window, it drops events whose unique id it has already seen.
type MockPublisher struct {
	mu           sync.RWMutex
	events       []*TransactionEvent
	bySubject    map[string][]*TransactionEvent
	seen         map[string]bool
	duplicates   int
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		events:    make([]*TransactionEvent, 0),
		bySubject: make(map[string][]*TransactionEvent),
		seen:      make(map[string]bool),
	}
}

// PublishTransaction records the event and returns any configured error.
func (m *MockPublisher) PublishTransaction(ctx context.Context, event *TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.record(event)
	return nil
}

// PublishTransactionBatch records the events and returns any configured error.
func (m *MockPublisher) PublishTransactionBatch(ctx context.Context, events []*TransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil && len(events) > 0 {
		return m.publishError
	}
	for _, event := range events {
		m.record(event)
	}
	return nil
}

func (m *MockPublisher) record(event *TransactionEvent) {
	if m.seen[event.UniqueID] {
		m.duplicates++
		return
	}
	m.seen[event.UniqueID] = true
	m.events = append(m.events, event)
	subject := Subject(event.CurrencySymbol, event.WalletAddress)
	m.bySubject[subject] = append(m.bySubject[subject], event)
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of every accepted event.
func (m *MockPublisher) Events() []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransactionEvent, len(m.events))
	copy(events, m.events)
	return events
}

// EventsForSubject returns the accepted events published to subject.
func (m *MockPublisher) EventsForSubject(subject string) []*TransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransactionEvent, len(m.bySubject[subject]))
	copy(events, m.bySubject[subject])
	return events
}

// Duplicates returns how many events were dropped as already seen.
func (m *MockPublisher) Duplicates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.duplicates
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
