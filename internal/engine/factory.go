package engine

import (
	"fmt"
	"log/slog"
)

// Factory errors
var (
	ErrInvalidBackendType = fmt.Errorf("invalid backend type")
)

// BackendFactory creates Backend instances based on configuration
type BackendFactory interface {
	CreateBackend(backendType string, cfg Config) (Backend, error)
	GetSupportedBackends() []string
	IsValidBackendType(backendType string) bool
}

// DefaultBackendFactory implements BackendFactory
type DefaultBackendFactory struct{}

// NewBackendFactory creates a new DefaultBackendFactory
func NewBackendFactory() *DefaultBackendFactory {
	return &DefaultBackendFactory{}
}

// CreateBackend creates a Backend instance of the given type. Empty and
// "auto" both resolve to malgo, which is the most capable device layer.
func (f *DefaultBackendFactory) CreateBackend(backendType string, cfg Config) (Backend, error) {
	if backendType == "" {
		backendType = "auto"
	}

	slog.Debug("creating audio backend", "type", backendType)

	switch backendType {
	case "auto", "malgo":
		return NewMalgoBackend(cfg), nil
	case "oto":
		return NewOtoBackend(cfg), nil
	default:
		slog.Error("invalid backend type requested", "type", backendType)
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackendType, backendType)
	}
}

// GetSupportedBackends returns all supported backend types
func (f *DefaultBackendFactory) GetSupportedBackends() []string {
	return []string{"auto", "malgo", "oto"}
}

// IsValidBackendType checks if a backend type is supported
func (f *DefaultBackendFactory) IsValidBackendType(backendType string) bool {
	if backendType == "" {
		return true
	}
	for _, supported := range f.GetSupportedBackends() {
		if backendType == supported {
			return true
		}
	}
	return false
}
