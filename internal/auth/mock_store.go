package auth

// MockStore is an in-memory auth store for testing.
type MockStore struct {
	tokens map[string]string
}

func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]string)}
}

func (m *MockStore) SetToken(backend string, token string) error {
	m.tokens[backend] = token
	return nil
}

func (m *MockStore) GetToken(backend string) (string, error) {
	token, ok := m.tokens[backend]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (m *MockStore) DeleteToken(backend string) error {
	if _, ok := m.tokens[backend]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, backend)
	return nil
}
