package provision

import (
	"context"
	"fmt"
	"sync"

	"fleetd/internal/auth"
	"fleetd/internal/domain"
)

// Compile-time check that MockBackend satisfies Backend.
var _ Backend = (*MockBackend)(nil)

// MockBackend is an in-memory backend for tests and local runs. It
// hands out sequential external IDs and addresses, with optional
// injected failures.
type MockBackend struct {
	// CreateErr, DeleteErr, and ResizeErr are returned verbatim when
	// set.
	CreateErr error
	DeleteErr error
	ResizeErr error

	mu        sync.Mutex
	seq       int
	instances map[string]InstanceSpec
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{instances: make(map[string]InstanceSpec)}
}

// RegisterMock registers the mock backend factory.
func RegisterMock() {
	Register("mock", func(_ auth.Store) (Backend, error) {
		return NewMockBackend(), nil
	})
}

// Name returns the backend identifier.
func (m *MockBackend) Name() string {
	return "mock"
}

// CreateInstance records the spec and returns a fresh id and address.
func (m *MockBackend) CreateInstance(_ context.Context, spec InstanceSpec) (string, string, error) {
	if m.CreateErr != nil {
		return "", "", m.CreateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	externalID := fmt.Sprintf("mock-%d", m.seq)
	ipAddress := fmt.Sprintf("10.42.%d.%d", m.seq/250, m.seq%250+1)
	m.instances[externalID] = spec
	return externalID, ipAddress, nil
}

// DeleteInstance removes the instance record.
func (m *MockBackend) DeleteInstance(_ context.Context, externalID string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[externalID]; !ok {
		return fmt.Errorf("mock: instance %s: %w", externalID, domain.ErrNotFound)
	}
	delete(m.instances, externalID)
	return nil
}

// Resize replaces the recorded spec.
func (m *MockBackend) Resize(_ context.Context, externalID string, spec InstanceSpec) error {
	if m.ResizeErr != nil {
		return m.ResizeErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[externalID]; !ok {
		return fmt.Errorf("mock: instance %s: %w", externalID, domain.ErrNotFound)
	}
	m.instances[externalID] = spec
	return nil
}

// Instances returns a copy of the live instance table.
func (m *MockBackend) Instances() map[string]InstanceSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]InstanceSpec, len(m.instances))
	for id, spec := range m.instances {
		out[id] = spec
	}
	return out
}
