package notification

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider records every message instead of delivering it
type MockProvider struct {
	mu   sync.Mutex
	Sent []Message
	Err  error // returned from Send when set; nothing is recorded
}

func (m *MockProvider) Send(ctx context.Context, msg Message) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, msg)
	id := fmt.Sprintf("mock-%d", len(m.Sent))
	return &Result{ID: id, Payload: map[string]any{"id": id}}, nil
}

// Messages returns a copy of the recorded messages
func (m *MockProvider) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}

// Last returns the most recently recorded message
func (m *MockProvider) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return Message{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
