// Package auth stores provisioning-backend API tokens in the OS
// keychain so they never land in the config file on disk.
package auth

import (
	"errors"

	"fleetd/internal/util"
)

const ServiceName = "fleetd"

var ErrTokenNotFound = errors.New("auth token not found")

// Store is the credential store consulted when a provisioning backend
// is constructed.
type Store interface {
	SetToken(backend string, token string) error
	GetToken(backend string) (string, error)
	DeleteToken(backend string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeBackend normalizes a backend name for consistent key lookup.
func NormalizeBackend(backend string) string {
	return util.NormalizeKey(backend)
}
