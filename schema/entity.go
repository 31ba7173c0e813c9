package schema

import (
	"fmt"
	"sync"
)

// Property describes one declared field of an entity type: its store-facing
// name, its kind, its null/absent behavior, and the accessor closures that
// move values between the typed entity and the generic document. The closures
// are supplied at registration time (hand-written or generated), so mapping
// never inspects live values reflectively.
//
// A Property is immutable once its owning EntityType has been built.
type Property struct {
	name      string
	kind      Kind
	elemKind  Kind        // element kind for arrays of scalars
	entity    *EntityType // embedded entity for document/array/map properties
	nullable  bool
	optional  bool // omit the key when the value is at the absent sentinel
	transient bool

	// Bound accessors operate on *E passed as any.
	encode     func(entity any) (value any, present bool, err error)
	decode     func(entity any, raw any, rep *UnmarshalReport, path string) error
	setNull    func(entity any) // nil unless nullable
	setZero    func(entity any)
	setDefault func(entity any)

	// Free-value codecs operate on a pointer to the property's declared Go
	// type, independent of any entity instance. Used for operands.
	encodeValue func(ptr any) (any, error)
	encodeElem  func(ptr any) (any, error) // array/map element; nil otherwise
}

// Name returns the store-facing field name.
func (p *Property) Name() string { return p.name }

// Kind returns the declared kind.
func (p *Property) Kind() Kind { return p.kind }

// ElemKind returns the element kind for scalar arrays, KindInvalid otherwise.
func (p *Property) ElemKind() Kind { return p.elemKind }

// Entity returns the embedded entity type for document, entity-array and map
// properties, nil for scalar properties.
func (p *Property) Entity() *EntityType { return p.entity }

// Nullable reports whether an explicit stored null maps to the language null
// representation rather than the zero value.
func (p *Property) Nullable() bool { return p.nullable }

// Optional reports whether the absent sentinel is omitted on write.
func (p *Property) Optional() bool { return p.optional }

// Transient reports whether the property is excluded from both directions.
func (p *Property) Transient() bool { return p.transient }

// EntityType is the immutable metadata for one entity: its declared
// properties in order, the identifier property for root entities, and an
// allocator for fresh instances. Derived once through a Builder and read-only
// afterwards, so it is safe for concurrent use.
type EntityType struct {
	name  string
	root  bool
	props []*Property
	byKey map[string]*Property
	id    *Property
	alloc func() any

	mu        sync.RWMutex
	pathCache map[string]*FieldPath
}

// Name returns the declared entity name.
func (t *EntityType) Name() string { return t.name }

// IsRoot reports whether the entity is independently storable.
func (t *EntityType) IsRoot() bool { return t.root }

// Properties returns the declared properties in declaration order. The
// returned slice must not be modified.
func (t *EntityType) Properties() []*Property { return t.props }

// Property looks up a property by its store-facing name.
func (t *EntityType) Property(name string) (*Property, bool) {
	p, ok := t.byKey[name]
	return p, ok
}

// ID returns the identifier property of a root entity, nil for embedded
// entities.
func (t *EntityType) ID() *Property { return t.id }

// IDValue reads the identifier of a root entity instance.
func (t *EntityType) IDValue(entity any) (string, error) {
	if t.id == nil {
		return "", fmt.Errorf("entity type %s has no identifier", t.name)
	}
	v, _, err := t.id.encode(entity)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// SetIDValue writes the identifier of a root entity instance.
func (t *EntityType) SetIDValue(entity any, id string) error {
	if t.id == nil {
		return fmt.Errorf("entity type %s has no identifier", t.name)
	}
	return t.id.decode(entity, id, nil, t.id.name)
}

// New allocates a fresh zero instance, returned as a pointer to the entity's
// Go type.
func (t *EntityType) New() any { return t.alloc() }

// Type is the typed handle for a registered entity type. The type parameter
// ties path tokens, query expressions and collections to one entity at
// compile time.
type Type[E any] struct {
	et *EntityType
}

// EntityType returns the untyped metadata.
func (t *Type[E]) EntityType() *EntityType { return t.et }

// Name returns the declared entity name.
func (t *Type[E]) Name() string { return t.et.name }

// New allocates a fresh zero instance.
func (t *Type[E]) New() *E { return t.et.alloc().(*E) }

// UnmarshalReport records conditions that are tolerated during
// deserialization but still worth observing. LossyNulls lists the dotted
// paths where an explicit stored null was collapsed to the zero value of a
// non-nullable property.
type UnmarshalReport struct {
	LossyNulls []string
}

func (r *UnmarshalReport) lossyNull(path string) {
	if r != nil {
		r.LossyNulls = append(r.LossyNulls, path)
	}
}

// Global entity registry. Populated through Builder.Build; each name is
// registered exactly once, first writer wins and later duplicates fail.
var (
	registryMu sync.RWMutex
	registry   = map[string]*EntityType{}
)

// Lookup returns the registered entity type with the given name.
func Lookup(name string) (*EntityType, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[name]
	return t, ok
}

func register(t *EntityType) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[t.name]; exists {
		return fmt.Errorf("entity type %q is already registered", t.name)
	}
	registry[t.name] = t
	return nil
}
