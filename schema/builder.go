package schema

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Builder accumulates the declarative property table for one entity type.
// Each field constructor registers a property together with its accessor
// closures and returns the typed path token for that property; Build seals
// the table, validates it, and registers the type.
//
// Registration replaces runtime struct inspection entirely: the closures
// passed to the constructors (written by hand or emitted by a generator) are
// the only bridge between the entity's Go type and the generic document.
type Builder[E any] struct {
	et    *EntityType
	built bool
	errs  []error
}

// NewRoot starts the declaration of an independently storable entity type.
// Root entities must declare an identifier via ID before Build.
func NewRoot[E any](name string) *Builder[E] {
	return newBuilder[E](name, true)
}

// NewEmbedded starts the declaration of an entity type that only ever lives
// nested inside another entity.
func NewEmbedded[E any](name string) *Builder[E] {
	return newBuilder[E](name, false)
}

func newBuilder[E any](name string, root bool) *Builder[E] {
	et := &EntityType{
		name:      name,
		root:      root,
		byKey:     map[string]*Property{},
		pathCache: map[string]*FieldPath{},
		alloc:     func() any { return new(E) },
	}
	return &Builder[E]{et: et}
}

// Build seals the declaration, validates it and registers the entity type
// under its name. A root entity without an identifier, a duplicate field
// name, or a duplicate entity name all fail here rather than at first use.
func (b *Builder[E]) Build() (*Type[E], error) {
	if b.built {
		return nil, fmt.Errorf("entity type %q built twice", b.et.name)
	}
	b.built = true
	if b.et.root && b.et.id == nil {
		b.errs = append(b.errs, fmt.Errorf("root entity %q declares no identifier", b.et.name))
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	if err := register(b.et); err != nil {
		return nil, err
	}
	return &Type[E]{et: b.et}, nil
}

// MustBuild is Build for package-level declarations; it panics on error.
func (b *Builder[E]) MustBuild() *Type[E] {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

func (b *Builder[E]) fail(err error) {
	b.errs = append(b.errs, err)
}

func (b *Builder[E]) add(p *Property) {
	if _, dup := b.et.byKey[p.name]; dup {
		b.fail(fmt.Errorf("entity %q declares field %q twice", b.et.name, p.name))
		return
	}
	b.et.byKey[p.name] = p
	b.et.props = append(b.et.props, p)
}

func (b *Builder[E]) token(p *Property) *FieldPath {
	return &FieldPath{root: b.et, segs: []segment{{prop: p}}}
}

// ID declares the string identifier of a root entity, stored under "_id".
func (b *Builder[E]) ID(at func(*E) *string) Path[E, string] {
	if !b.et.root {
		b.fail(fmt.Errorf("embedded entity %q cannot declare an identifier", b.et.name))
	}
	if b.et.id != nil {
		b.fail(fmt.Errorf("entity %q declares two identifiers", b.et.name))
	}
	p := scalarProp(b, "_id", KindString, at, nil)
	b.et.id = p
	b.add(p)
	return typedPath[E, string](b.token(p))
}

// fieldSpec carries the per-field declaration options.
type fieldSpec[V any] struct {
	def       *V
	optional  bool
	transient bool
}

// Option configures a field declaration.
type Option[V any] func(*fieldSpec[V])

// Default sets the static default value used when the key is absent from a
// stored document.
func Default[V any](v V) Option[V] {
	return func(s *fieldSpec[V]) { s.def = &v }
}

// Optional marks the field optional-absent: the key is omitted on write when
// the in-memory value sits at the absent sentinel (zero value for plain
// fields, nil for pointer-backed and collection fields). Distinct from
// nullability, which writes an explicit null.
func Optional[V any]() Option[V] {
	return func(s *fieldSpec[V]) { s.optional = true }
}

// Transient excludes the field from both mapping directions.
func Transient[V any]() Option[V] {
	return func(s *fieldSpec[V]) { s.transient = true }
}

func applyOptions[V any](opts []Option[V]) fieldSpec[V] {
	var s fieldSpec[V]
	for _, o := range opts {
		o(&s)
	}
	return s
}

func deserr(path string, kind Kind, raw any) *DeserializationError {
	return &DeserializationError{Path: path, Declared: kind.String(), Stored: fmt.Sprintf("%T", raw)}
}

// scalarProp builds the property record for a plain scalar field.
func scalarProp[E any, V comparable](b *Builder[E], name string, kind Kind, at func(*E) *V, opts []Option[V]) *Property {
	spec := applyOptions(opts)
	p := &Property{name: name, kind: kind, optional: spec.optional, transient: spec.transient}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeScalar(kind, *ptr.(*V)), nil
	}
	p.encode = func(e any) (any, bool, error) {
		v := *at(e.(*E))
		if spec.optional {
			var zero V
			if v == zero {
				return nil, false, nil
			}
		}
		return encodeScalar(kind, v), true, nil
	}
	p.decode = func(e any, raw any, _ *UnmarshalReport, path string) error {
		cv, ok := decodeScalar(kind, raw)
		if !ok {
			return deserr(path, kind, raw)
		}
		tv, ok := cv.(V)
		if !ok {
			return deserr(path, kind, raw)
		}
		*at(e.(*E)) = tv
		return nil
	}
	p.setZero = func(e any) {
		var zero V
		*at(e.(*E)) = zero
	}
	if spec.def != nil {
		def := *spec.def
		p.setDefault = func(e any) { *at(e.(*E)) = def }
	} else {
		p.setDefault = p.setZero
	}
	return p
}

func scalarField[E any, V comparable](b *Builder[E], name string, kind Kind, at func(*E) *V, opts []Option[V]) Path[E, V] {
	p := scalarProp(b, name, kind, at, opts)
	b.add(p)
	return typedPath[E, V](b.token(p))
}

// String declares a string field.
func String[E any](b *Builder[E], name string, at func(*E) *string, opts ...Option[string]) Path[E, string] {
	return scalarField(b, name, KindString, at, opts)
}

// Bool declares a boolean field.
func Bool[E any](b *Builder[E], name string, at func(*E) *bool, opts ...Option[bool]) Path[E, bool] {
	return scalarField(b, name, KindBool, at, opts)
}

// Int32 declares a 32-bit integer field.
func Int32[E any](b *Builder[E], name string, at func(*E) *int32, opts ...Option[int32]) Path[E, int32] {
	return scalarField(b, name, KindInt32, at, opts)
}

// Int64 declares a 64-bit integer field.
func Int64[E any](b *Builder[E], name string, at func(*E) *int64, opts ...Option[int64]) Path[E, int64] {
	return scalarField(b, name, KindInt64, at, opts)
}

// Double declares a 64-bit float field.
func Double[E any](b *Builder[E], name string, at func(*E) *float64, opts ...Option[float64]) Path[E, float64] {
	return scalarField(b, name, KindDouble, at, opts)
}

// Date declares a timestamp field.
func Date[E any](b *Builder[E], name string, at func(*E) *time.Time, opts ...Option[time.Time]) Path[E, time.Time] {
	return scalarField(b, name, KindDate, at, opts)
}

// Enum declares a named-string field, stored as its string value.
func Enum[E any, V ~string](b *Builder[E], name string, at func(*E) *V, opts ...Option[V]) Path[E, V] {
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindEnum, optional: spec.optional, transient: spec.transient}
	p.encodeValue = func(ptr any) (any, error) {
		return string(*ptr.(*V)), nil
	}
	p.encode = func(e any) (any, bool, error) {
		v := *at(e.(*E))
		if spec.optional && v == V("") {
			return nil, false, nil
		}
		return string(v), true, nil
	}
	p.decode = func(e any, raw any, _ *UnmarshalReport, path string) error {
		s, ok := raw.(string)
		if !ok {
			return deserr(path, KindEnum, raw)
		}
		*at(e.(*E)) = V(s)
		return nil
	}
	p.setZero = func(e any) { *at(e.(*E)) = V("") }
	if spec.def != nil {
		def := *spec.def
		p.setDefault = func(e any) { *at(e.(*E)) = def }
	} else {
		p.setDefault = p.setZero
	}
	b.add(p)
	return typedPath[E, V](b.token(p))
}

// Binary declares a byte-blob field.
func Binary[E any](b *Builder[E], name string, at func(*E) *[]byte, opts ...Option[[]byte]) Path[E, []byte] {
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindBinary, optional: spec.optional, transient: spec.transient}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeScalar(KindBinary, *ptr.(*[]byte)), nil
	}
	p.encode = func(e any) (any, bool, error) {
		v := *at(e.(*E))
		if spec.optional && v == nil {
			return nil, false, nil
		}
		return encodeScalar(KindBinary, v), true, nil
	}
	p.decode = func(e any, raw any, _ *UnmarshalReport, path string) error {
		cv, ok := decodeScalar(KindBinary, raw)
		if !ok {
			return deserr(path, KindBinary, raw)
		}
		*at(e.(*E)) = cv.([]byte)
		return nil
	}
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	if spec.def != nil {
		def := *spec.def
		p.setDefault = func(e any) { *at(e.(*E)) = append([]byte(nil), def...) }
	} else {
		p.setDefault = p.setZero
	}
	b.add(p)
	return typedPath[E, []byte](b.token(p))
}

// nullScalarField builds a pointer-backed scalar: nil is an explicit null on
// the wire unless the field is declared Optional, in which case nil is the
// absent sentinel and the key is omitted instead.
func nullScalarField[E any, V comparable](b *Builder[E], name string, kind Kind, at func(*E) **V, opts []Option[V]) Path[E, V] {
	spec := applyOptions(opts)
	p := &Property{name: name, kind: kind, nullable: !spec.optional, optional: spec.optional, transient: spec.transient}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeScalar(kind, *ptr.(*V)), nil
	}
	p.encode = func(e any) (any, bool, error) {
		pv := *at(e.(*E))
		if pv == nil {
			if spec.optional {
				return nil, false, nil
			}
			return nil, true, nil
		}
		return encodeScalar(kind, *pv), true, nil
	}
	p.decode = func(e any, raw any, _ *UnmarshalReport, path string) error {
		cv, ok := decodeScalar(kind, raw)
		if !ok {
			return deserr(path, kind, raw)
		}
		tv, ok := cv.(V)
		if !ok {
			return deserr(path, kind, raw)
		}
		*at(e.(*E)) = &tv
		return nil
	}
	p.setNull = func(e any) { *at(e.(*E)) = nil }
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	if spec.def != nil {
		def := *spec.def
		p.setDefault = func(e any) {
			d := def
			*at(e.(*E)) = &d
		}
	} else {
		p.setDefault = p.setZero
	}
	b.add(p)
	return typedPath[E, V](b.token(p))
}

// NullString declares a nullable string field backed by a *string.
func NullString[E any](b *Builder[E], name string, at func(*E) **string, opts ...Option[string]) Path[E, string] {
	return nullScalarField(b, name, KindString, at, opts)
}

// NullBool declares a nullable boolean field backed by a *bool.
func NullBool[E any](b *Builder[E], name string, at func(*E) **bool, opts ...Option[bool]) Path[E, bool] {
	return nullScalarField(b, name, KindBool, at, opts)
}

// NullInt32 declares a nullable 32-bit integer field backed by an *int32.
func NullInt32[E any](b *Builder[E], name string, at func(*E) **int32, opts ...Option[int32]) Path[E, int32] {
	return nullScalarField(b, name, KindInt32, at, opts)
}

// NullInt64 declares a nullable 64-bit integer field backed by an *int64.
func NullInt64[E any](b *Builder[E], name string, at func(*E) **int64, opts ...Option[int64]) Path[E, int64] {
	return nullScalarField(b, name, KindInt64, at, opts)
}

// NullDouble declares a nullable float field backed by a *float64.
func NullDouble[E any](b *Builder[E], name string, at func(*E) **float64, opts ...Option[float64]) Path[E, float64] {
	return nullScalarField(b, name, KindDouble, at, opts)
}

// NullDate declares a nullable timestamp field backed by a *time.Time.
func NullDate[E any](b *Builder[E], name string, at func(*E) **time.Time, opts ...Option[time.Time]) Path[E, time.Time] {
	return nullScalarField(b, name, KindDate, at, opts)
}

// List declares a sequence of scalars. elem names the element kind; the
// element Go type must be the canonical representation of that kind.
func List[E any, V comparable](b *Builder[E], name string, elem Kind, at func(*E) *[]V, opts ...Option[[]V]) Path[E, []V] {
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindArray, elemKind: elem, optional: spec.optional, transient: spec.transient}
	p.encodeElem = func(ptr any) (any, error) {
		return encodeScalar(elem, *ptr.(*V)), nil
	}
	encodeAll := func(s []V) bson.A {
		arr := make(bson.A, len(s))
		for i, v := range s {
			arr[i] = encodeScalar(elem, v)
		}
		return arr
	}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeAll(*ptr.(*[]V)), nil
	}
	p.encode = func(e any) (any, bool, error) {
		s := *at(e.(*E))
		if spec.optional && s == nil {
			return nil, false, nil
		}
		return encodeAll(s), true, nil
	}
	p.decode = func(e any, raw any, _ *UnmarshalReport, path string) error {
		arr, ok := raw.(bson.A)
		if !ok {
			return deserr(path, KindArray, raw)
		}
		out := make([]V, len(arr))
		for i, item := range arr {
			cv, ok := decodeScalar(elem, item)
			if !ok {
				return deserr(fmt.Sprintf("%s.%d", path, i), elem, item)
			}
			tv, ok := cv.(V)
			if !ok {
				return deserr(fmt.Sprintf("%s.%d", path, i), elem, item)
			}
			out[i] = tv
		}
		*at(e.(*E)) = out
		return nil
	}
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	if spec.def != nil {
		def := *spec.def
		p.setDefault = func(e any) { *at(e.(*E)) = append([]V(nil), def...) }
	} else {
		p.setDefault = p.setZero
	}
	b.add(p)
	return typedPath[E, []V](b.token(p))
}

// Strings declares a sequence of strings.
func Strings[E any](b *Builder[E], name string, at func(*E) *[]string, opts ...Option[[]string]) Path[E, []string] {
	return List(b, name, KindString, at, opts...)
}

// Embedded declares a nested sub-document field of an embedded entity type.
// An absent key backfills the sub-entity's declared defaults.
func Embedded[E any, V any](b *Builder[E], name string, sub *Type[V], at func(*E) *V) Path[E, V] {
	et := sub.et
	if et.root {
		b.fail(fmt.Errorf("entity %q embeds root entity %q", b.et.name, et.name))
	}
	p := &Property{name: name, kind: KindDocument, entity: et}
	p.encodeValue = func(ptr any) (any, error) {
		return marshalEntity(et, ptr.(*V))
	}
	p.encode = func(e any) (any, bool, error) {
		d, err := marshalEntity(et, at(e.(*E)))
		return d, true, err
	}
	p.decode = func(e any, raw any, rep *UnmarshalReport, path string) error {
		d, ok := raw.(bson.D)
		if !ok {
			return deserr(path, KindDocument, raw)
		}
		return unmarshalEntity(et, d, at(e.(*E)), rep, path)
	}
	p.setZero = func(e any) {
		var zero V
		*at(e.(*E)) = zero
	}
	p.setDefault = func(e any) {
		var zero V
		applyDefaults(et, &zero)
		*at(e.(*E)) = zero
	}
	b.add(p)
	return typedPath[E, V](b.token(p))
}

// NullEmbedded declares a pointer-backed nested sub-document: nil maps to an
// explicit null, or to an omitted key when declared Optional.
func NullEmbedded[E any, V any](b *Builder[E], name string, sub *Type[V], at func(*E) **V, opts ...Option[V]) Path[E, V] {
	et := sub.et
	if et.root {
		b.fail(fmt.Errorf("entity %q embeds root entity %q", b.et.name, et.name))
	}
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindDocument, entity: et, nullable: !spec.optional, optional: spec.optional, transient: spec.transient}
	p.encodeValue = func(ptr any) (any, error) {
		return marshalEntity(et, ptr.(*V))
	}
	p.encode = func(e any) (any, bool, error) {
		pv := *at(e.(*E))
		if pv == nil {
			if spec.optional {
				return nil, false, nil
			}
			return nil, true, nil
		}
		d, err := marshalEntity(et, pv)
		return d, true, err
	}
	p.decode = func(e any, raw any, rep *UnmarshalReport, path string) error {
		d, ok := raw.(bson.D)
		if !ok {
			return deserr(path, KindDocument, raw)
		}
		var v V
		if err := unmarshalEntity(et, d, &v, rep, path); err != nil {
			return err
		}
		*at(e.(*E)) = &v
		return nil
	}
	p.setNull = func(e any) { *at(e.(*E)) = nil }
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	p.setDefault = p.setZero
	b.add(p)
	return typedPath[E, V](b.token(p))
}

// EmbeddedList declares a sequence of embedded entities. Paths continue into
// the element type via Elem; the store matches such paths element-wise.
func EmbeddedList[E any, V any](b *Builder[E], name string, sub *Type[V], at func(*E) *[]V, opts ...Option[[]V]) Path[E, []V] {
	et := sub.et
	if et.root {
		b.fail(fmt.Errorf("entity %q embeds root entity %q", b.et.name, et.name))
	}
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindArray, entity: et, optional: spec.optional, transient: spec.transient}
	p.encodeElem = func(ptr any) (any, error) {
		return marshalEntity(et, ptr.(*V))
	}
	encodeAll := func(s []V) (bson.A, error) {
		arr := make(bson.A, len(s))
		for i := range s {
			d, err := marshalEntity(et, &s[i])
			if err != nil {
				return nil, err
			}
			arr[i] = d
		}
		return arr, nil
	}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeAll(*ptr.(*[]V))
	}
	p.encode = func(e any) (any, bool, error) {
		s := *at(e.(*E))
		if spec.optional && s == nil {
			return nil, false, nil
		}
		arr, err := encodeAll(s)
		return arr, true, err
	}
	p.decode = func(e any, raw any, rep *UnmarshalReport, path string) error {
		arr, ok := raw.(bson.A)
		if !ok {
			return deserr(path, KindArray, raw)
		}
		out := make([]V, len(arr))
		for i, item := range arr {
			d, ok := item.(bson.D)
			if !ok {
				return deserr(fmt.Sprintf("%s.%d", path, i), KindDocument, item)
			}
			if err := unmarshalEntity(et, d, &out[i], rep, fmt.Sprintf("%s.%d", path, i)); err != nil {
				return err
			}
		}
		*at(e.(*E)) = out
		return nil
	}
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	p.setDefault = p.setZero
	b.add(p)
	return typedPath[E, []V](b.token(p))
}

// EmbeddedMap declares a string-keyed mapping to embedded entities. Keys are
// opaque: they are stored verbatim and never resolved against metadata. The
// mapping is rendered with keys in sorted order so serialization is
// deterministic.
func EmbeddedMap[E any, V any](b *Builder[E], name string, sub *Type[V], at func(*E) *map[string]V, opts ...Option[map[string]V]) Path[E, map[string]V] {
	et := sub.et
	if et.root {
		b.fail(fmt.Errorf("entity %q embeds root entity %q", b.et.name, et.name))
	}
	spec := applyOptions(opts)
	p := &Property{name: name, kind: KindMap, entity: et, optional: spec.optional, transient: spec.transient}
	p.encodeElem = func(ptr any) (any, error) {
		return marshalEntity(et, ptr.(*V))
	}
	encodeAll := func(m map[string]V) (bson.D, error) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := make(bson.D, 0, len(m))
		for _, k := range keys {
			v := m[k]
			sd, err := marshalEntity(et, &v)
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: k, Value: sd})
		}
		return d, nil
	}
	p.encodeValue = func(ptr any) (any, error) {
		return encodeAll(*ptr.(*map[string]V))
	}
	p.encode = func(e any) (any, bool, error) {
		m := *at(e.(*E))
		if spec.optional && m == nil {
			return nil, false, nil
		}
		d, err := encodeAll(m)
		return d, true, err
	}
	p.decode = func(e any, raw any, rep *UnmarshalReport, path string) error {
		d, ok := raw.(bson.D)
		if !ok {
			return deserr(path, KindMap, raw)
		}
		m := make(map[string]V, len(d))
		for _, el := range d {
			sd, ok := el.Value.(bson.D)
			if !ok {
				return deserr(path+"."+el.Key, KindDocument, el.Value)
			}
			var v V
			if err := unmarshalEntity(et, sd, &v, rep, path+"."+el.Key); err != nil {
				return err
			}
			m[el.Key] = v
		}
		*at(e.(*E)) = m
		return nil
	}
	p.setZero = func(e any) { *at(e.(*E)) = nil }
	p.setDefault = p.setZero
	b.add(p)
	return typedPath[E, map[string]V](b.token(p))
}
