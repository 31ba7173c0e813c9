package docent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/docent-go/docent/index"
	"github.com/docent-go/docent/schema"
)

// Registry maps root entity types to collections on one driver. Bindings are
// declared up front; Init then performs the one-time startup work of
// creating collections and declaring indexes through the driver.
type Registry struct {
	driver Driver
	log    *zap.Logger
	strict bool

	mu       sync.RWMutex
	bindings map[string]*binding
}

type binding struct {
	entity  *schema.EntityType
	name    string
	capped  *CappedSettings
	indexes []index.Descriptor
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *zap.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// WithStrictDecode makes per-document mapping failures abort Find calls
// instead of skipping the offending document.
func WithStrictDecode() RegistryOption {
	return func(r *Registry) { r.strict = true }
}

// NewRegistry creates a registry over the given driver.
func NewRegistry(driver Driver, opts ...RegistryOption) *Registry {
	r := &Registry{
		driver:   driver,
		log:      zap.NewNop(),
		bindings: map[string]*binding{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// BindOption configures one collection binding.
type BindOption func(*binding)

// Capped asks Init to create the collection with a fixed byte budget.
func Capped(maxBytes int64) BindOption {
	return func(b *binding) { b.capped = &CappedSettings{MaxBytes: maxBytes} }
}

// WithIndexes declares the indexes Init issues for the collection.
func WithIndexes(descriptors ...index.Descriptor) BindOption {
	return func(b *binding) { b.indexes = append(b.indexes, descriptors...) }
}

// Bind attaches a root entity type to a named collection and returns the
// typed collection handle. Embedded entity types and duplicate collection
// names are rejected.
func Bind[E any](r *Registry, t *schema.Type[E], name string, opts ...BindOption) (*Collection[E], error) {
	et := t.EntityType()
	if !et.IsRoot() {
		return nil, fmt.Errorf("entity type %q is embedded and cannot be bound to a collection", et.Name())
	}
	b := &binding{entity: et, name: name}
	for _, o := range opts {
		o(b)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.bindings[name]; exists {
		return nil, fmt.Errorf("collection %q is already bound to entity type %q", name, prev.entity.Name())
	}
	r.bindings[name] = b

	return &Collection[E]{registry: r, entity: t, name: name}, nil
}

// MustBind is Bind for package-level wiring; it panics on error.
func MustBind[E any](r *Registry, t *schema.Type[E], name string, opts ...BindOption) *Collection[E] {
	c, err := Bind(r, t, name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Init performs the startup pass over every binding: collections are created
// (capped where declared) and index descriptors issued. Safe to call on
// every process start; the driver guarantees both calls are no-ops when the
// store already matches.
func (r *Registry) Init(ctx context.Context) error {
	r.mu.RLock()
	bindings := make([]*binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		bindings = append(bindings, b)
	}
	r.mu.RUnlock()

	for _, b := range bindings {
		if err := r.driver.EnsureCollection(ctx, b.name, b.capped); err != nil {
			return fmt.Errorf("ensure collection %q: %w", b.name, err)
		}
		if len(b.indexes) > 0 {
			if err := r.driver.EnsureIndexes(ctx, b.name, b.indexes); err != nil {
				return fmt.Errorf("ensure indexes on %q: %w", b.name, err)
			}
		}
		r.log.Debug("collection ready",
			zap.String("collection", b.name),
			zap.String("entity", b.entity.Name()),
			zap.Int("indexes", len(b.indexes)),
			zap.Bool("capped", b.capped != nil))
	}
	return nil
}
