package schema

import (
	"fmt"
	"strings"
)

// segment is one step of a resolved field path: either a declared property
// or an opaque map key inserted verbatim between a map property and its
// element entity.
type segment struct {
	prop     *Property
	key      string // literal map key when prop is nil
	intoElem bool   // traversal continues into the array element type
}

func (s segment) render() string {
	if s.prop != nil {
		return s.prop.name
	}
	return s.key
}

// FieldPath is a validated, ordered chain of property steps rooted at an
// entity type. Every step but the last resolves through an embedded entity,
// a collection of one, or a map; the final step's kind determines the legal
// operator set. A FieldPath is immutable and safe to share.
type FieldPath struct {
	root *EntityType
	segs []segment
	err  error
}

// Root returns the entity type the path starts from.
func (p *FieldPath) Root() *EntityType { return p.root }

// Err returns the construction error carried by an invalid path, nil for a
// valid one. Builders that consume paths propagate it instead of panicking.
func (p *FieldPath) Err() error { return p.err }

// String renders the path as the dot-joined store field names used on the
// wire.
func (p *FieldPath) String() string {
	parts := make([]string, len(p.segs))
	for i, s := range p.segs {
		parts[i] = s.render()
	}
	return strings.Join(parts, ".")
}

// last returns the final property-bearing segment. For a literal key segment
// the owning map property is the one before it.
func (p *FieldPath) last() segment {
	return p.segs[len(p.segs)-1]
}

// lastProp returns the property governing the path terminal.
func (p *FieldPath) lastProp() *Property {
	for i := len(p.segs) - 1; i >= 0; i-- {
		if p.segs[i].prop != nil {
			return p.segs[i].prop
		}
	}
	return nil
}

// Kind returns the declared kind of the path terminal. Traversing into an
// array element (Elem) yields the element kind; addressing a map key yields
// the map's element entity kind.
func (p *FieldPath) Kind() Kind {
	if p.err != nil || len(p.segs) == 0 {
		return KindInvalid
	}
	s := p.last()
	if s.prop == nil {
		// Literal map key: terminal is the map's element entity.
		return KindDocument
	}
	if s.prop.kind == KindArray && s.intoElem {
		if s.prop.entity != nil {
			return KindDocument
		}
		return s.prop.elemKind
	}
	return s.prop.kind
}

// Entity returns the embedded entity type at the path terminal, nil when the
// terminal is a scalar or a scalar array.
func (p *FieldPath) Entity() *EntityType {
	if p.err != nil || len(p.segs) == 0 {
		return nil
	}
	s := p.last()
	if s.prop == nil {
		return p.lastProp().entity
	}
	switch s.prop.kind {
	case KindDocument, KindMap:
		return s.prop.entity
	case KindArray:
		if s.intoElem {
			return s.prop.entity
		}
	}
	return nil
}

// Nullable reports whether the terminal property tolerates explicit nulls.
func (p *FieldPath) Nullable() bool {
	if pr := p.lastProp(); pr != nil {
		return pr.nullable
	}
	return false
}

// EncodeValue converts an operand for the path terminal into its
// generic-document representation. ptr must point at the terminal's declared
// Go type; the conversion is the same one the document mapper applies on
// write, so operands and stored values always compare like for like.
func (p *FieldPath) EncodeValue(ptr any) (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	s := p.last()
	if s.prop == nil {
		// Literal map key terminal: encode as the map's element entity.
		return p.lastProp().encodeElem(ptr)
	}
	if s.prop.kind == KindArray && s.intoElem {
		return s.prop.encodeElem(ptr)
	}
	return s.prop.encodeValue(ptr)
}

// EncodeElem converts a single element operand for an array-terminal path.
func (p *FieldPath) EncodeElem(ptr any) (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	s := p.last()
	if s.prop == nil || s.prop.kind != KindArray || s.intoElem {
		return nil, fmt.Errorf("path %q does not terminate in an array", p.String())
	}
	return s.prop.encodeElem(ptr)
}

// EncodeOperand converts an untyped operand against the terminal kind. It
// accepts the canonical Go representation of each kind (plus int for the
// integer kinds) and fails for anything else; the typed token API should be
// preferred where the static types are known.
func (p *FieldPath) EncodeOperand(v any) (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	return encodeScalarOperand(p.Kind(), v)
}

// Equal reports structural equality of two paths: same root type and the
// same steps.
func (p *FieldPath) Equal(o *FieldPath) bool {
	if p.root != o.root || len(p.segs) != len(o.segs) {
		return false
	}
	for i := range p.segs {
		if p.segs[i] != o.segs[i] {
			return false
		}
	}
	return true
}

func invalidPath(root *EntityType, err error) *FieldPath {
	return &FieldPath{root: root, err: err}
}

// Path is a statically typed field-path token: E is the root entity type and
// V the Go type at the terminal. Tokens are produced by the registration
// builder and composed with Join, Elem and Key; a token's existence proves
// the chain resolved, so expression builders taking tokens cannot fail on
// path grounds.
type Path[E any, V any] struct {
	fp *FieldPath
}

// FieldPath returns the untyped resolved path.
func (p Path[E, V]) FieldPath() *FieldPath { return p.fp }

// String renders the dotted wire path.
func (p Path[E, V]) String() string { return p.fp.String() }

func typedPath[E any, V any](fp *FieldPath) Path[E, V] {
	return Path[E, V]{fp: fp}
}

// Join extends a path that terminates in an embedded entity M with a path
// declared on M. The intermediate type parameter makes mismatched chains a
// compile-time error; the runtime check below only guards against two
// distinct registrations sharing one Go type.
func Join[E any, M any, V any](head Path[E, M], tail Path[M, V]) Path[E, V] {
	hfp, tfp := head.fp, tail.fp
	if hfp.err != nil {
		return typedPath[E, V](hfp)
	}
	if tfp.err != nil {
		return typedPath[E, V](invalidPath(hfp.root, tfp.err))
	}
	ent := hfp.Entity()
	if ent == nil || ent != tfp.root {
		return typedPath[E, V](invalidPath(hfp.root, &UnresolvableFieldPathError{
			Entity:   hfp.root.name,
			Property: tfp.String(),
			Chain:    append(strings.Split(hfp.String(), "."), tfp.String()),
			Reason:   "head path does not terminate in the tail's entity type",
		}))
	}
	segs := make([]segment, 0, len(hfp.segs)+len(tfp.segs))
	segs = append(segs, hfp.segs...)
	segs = append(segs, tfp.segs...)
	return typedPath[E, V](&FieldPath{root: hfp.root, segs: segs})
}

// Elem continues an array-terminal path into its element type. The rendered
// wire path is unchanged: the store matches array fields element-wise.
func Elem[E any, V any](p Path[E, []V]) Path[E, V] {
	fp := p.fp
	if fp.err != nil {
		return typedPath[E, V](fp)
	}
	s := fp.last()
	if s.prop == nil || s.prop.kind != KindArray || s.intoElem {
		return typedPath[E, V](invalidPath(fp.root, &UnresolvableFieldPathError{
			Entity:   fp.root.name,
			Property: fp.String(),
			Chain:    strings.Split(fp.String(), "."),
			Reason:   "not an array property",
		}))
	}
	segs := make([]segment, len(fp.segs))
	copy(segs, fp.segs)
	segs[len(segs)-1].intoElem = true
	return typedPath[E, V](&FieldPath{root: fp.root, segs: segs})
}

// Key addresses one entry of a map-terminal path. The key is opaque: it is
// rendered verbatim as a path segment and never validated, and traversal
// continues in the map's element entity.
func Key[E any, V any](p Path[E, map[string]V], key string) Path[E, V] {
	fp := p.fp
	if fp.err != nil {
		return typedPath[E, V](fp)
	}
	s := fp.last()
	if s.prop == nil || s.prop.kind != KindMap {
		return typedPath[E, V](invalidPath(fp.root, &UnresolvableFieldPathError{
			Entity:   fp.root.name,
			Property: fp.String(),
			Chain:    strings.Split(fp.String(), "."),
			Reason:   "not a map property",
		}))
	}
	segs := make([]segment, len(fp.segs), len(fp.segs)+1)
	copy(segs, fp.segs)
	segs = append(segs, segment{key: key})
	return typedPath[E, V](&FieldPath{root: fp.root, segs: segs})
}
