package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Provider bundles the backends of one page source. Backends that cannot
// serve a concern leave it nil.
type Provider struct {
	Name          string
	Reader        Reader
	Screenshotter Screenshotter

	// Close releases the backend's resources. It may be nil.
	Close func() error
}

// Shutdown calls Close when set.
func (p *Provider) Shutdown() error {
	if p == nil || p.Close == nil {
		return nil
	}
	return p.Close()
}

// ErrUnsupported is returned when a backend cannot serve a concern.
var ErrUnsupported = errors.New("operation not supported by this backend")

// ErrUnknownBackend is returned by NewProvider for unregistered names.
var ErrUnknownBackend = errors.New("unknown backend")

// Factory builds a provider.
type Factory func(ctx context.Context, opts ProviderOptions) (*Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under name. Backend packages call it
// from init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Unregister removes a backend.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(factories, name)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewProvider builds the named backend.
func NewProvider(ctx context.Context, name string, opts ProviderOptions) (*Provider, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, strings.Join(Backends(), ", "))
	}
	p, err := f(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return p, nil
}
