package platform

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAdapter simulates a destination for tests and local development.
// InjectEvent feeds events to registered handlers as a live adapter would.
type MockAdapter struct {
	dest Destination

	mu        sync.Mutex
	connected bool
	handlers  []EventHandler
	events    []Event
	actions   []Action
	failNext  bool
}

// NewMockAdapter creates a mock for the given destination name.
func NewMockAdapter(dest Destination) *MockAdapter {
	if dest == "" {
		dest = DestMock
	}
	return &MockAdapter{dest: dest}
}

func (m *MockAdapter) Destination() Destination { return m.dest }

func (m *MockAdapter) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockAdapter) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockAdapter) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockAdapter) Listen(handler EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

func (m *MockAdapter) StopListening() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = nil
}

// FailNextExecute makes the next Execute return a failed result.
func (m *MockAdapter) FailNextExecute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

func (m *MockAdapter) Execute(_ context.Context, action Action) (ActionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return ActionResult{}, fmt.Errorf("mock %s: simulated execution failure", m.dest)
	}
	m.actions = append(m.actions, action)
	return ActionResult{
		Success:     true,
		ActionID:    action.ID,
		Destination: m.dest,
		ResultID:    fmt.Sprintf("mock_%s", action.ID),
		ExecutedAt:  time.Now().UTC(),
	}, nil
}

func (m *MockAdapter) GetUser(_ context.Context, userID string) (map[string]any, error) {
	return map[string]any{
		"id":        userID,
		"username":  "mock_user_" + userID,
		"followers": 100,
	}, nil
}

func (m *MockAdapter) GetContent(_ context.Context, contentID string) (map[string]any, error) {
	return map[string]any{
		"id":      contentID,
		"content": "mock content " + contentID,
	}, nil
}

func (m *MockAdapter) HealthCheck(_ context.Context) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := "healthy"
	if !m.connected {
		status = "disconnected"
	}
	return map[string]any{
		"status":           status,
		"destination":      string(m.dest),
		"events_received":  len(m.events),
		"actions_executed": len(m.actions),
	}
}

// InjectEvent delivers an event to all registered handlers.
func (m *MockAdapter) InjectEvent(ev Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	handlers := make([]EventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Actions returns a copy of all executed actions.
func (m *MockAdapter) Actions() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Action, len(m.actions))
	copy(out, m.actions)
	return out
}
