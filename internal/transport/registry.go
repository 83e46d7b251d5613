package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options describes how to reach a device.
type Options struct {
	Address     string // host:port for network transports
	Device      string // device path for serial transports
	BaudRate    int
	DialTimeout time.Duration
	Logger      zerolog.Logger
}

// Dialer opens a connection to a device
type Dialer interface {
	Dial(ctx context.Context, opts Options) (Conn, error)
	ValidateOptions(opts Options) error
}

// Registry manages named dialers
type Registry struct {
	dialers map[string]Dialer
	mu      sync.RWMutex
}

// NewRegistry creates a new dialer registry
func NewRegistry() *Registry {
	return &Registry{
		dialers: make(map[string]Dialer),
	}
}

// Register adds a dialer to the registry
func (r *Registry) Register(name string, dialer Dialer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dialers[name]; exists {
		return fmt.Errorf("transport %s already registered", name)
	}

	r.dialers[name] = dialer
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name string, dialer Dialer) {
	if err := r.Register(name, dialer); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(name string) (Dialer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dialer, exists := r.dialers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, name)
	}
	return dialer, nil
}

// Dial connects using the named transport and wraps the connection in a Session.
// Any failure to establish the connection is reported as ErrConnection.
func (r *Registry) Dial(ctx context.Context, name string, opts Options) (*Session, error) {
	dialer, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	target := opts.Address
	if target == "" {
		target = opts.Device
	}

	opts.Logger.Debug().Str("transport", name).Str("target", target).Msg("connecting")
	conn, err := dialer.Dial(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrConnection, target, err)
	}

	return NewSession(conn, opts.Logger), nil
}

// ValidateOptions checks options for the named transport
func (r *Registry) ValidateOptions(name string, opts Options) error {
	dialer, err := r.lookup(name)
	if err != nil {
		return err
	}
	return dialer.ValidateOptions(opts)
}

// ListTransports returns the names of all registered transports, sorted
func (r *Registry) ListTransports() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.dialers))
	for name := range r.dialers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register adds a dialer to the default registry
func Register(name string, dialer Dialer) error {
	return defaultRegistry.Register(name, dialer)
}

// MustRegister adds a dialer to the default registry and panics on error
func MustRegister(name string, dialer Dialer) {
	defaultRegistry.MustRegister(name, dialer)
}

// Dial connects using the default registry
func Dial(ctx context.Context, name string, opts Options) (*Session, error) {
	return defaultRegistry.Dial(ctx, name, opts)
}

// ValidateOptions checks options using the default registry
func ValidateOptions(name string, opts Options) error {
	return defaultRegistry.ValidateOptions(name, opts)
}

// ListTransports returns the transports in the default registry
func ListTransports() []string {
	return defaultRegistry.ListTransports()
}
