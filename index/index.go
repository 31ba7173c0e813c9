// Package index builds index descriptors: pure data pairing field paths with
// an ordering or index kind plus an options block. Descriptors are declared
// once per collection and handed to the driver at startup; re-issuing an
// identical descriptor against an already-correct index is a no-op the store
// guarantees, not this package.
package index

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docent-go/docent/query"
	"github.com/docent-go/docent/schema"
)

// Key is one indexed field with its ordering or kind.
type Key struct {
	Field string
	Value any // 1, -1 or "text"
}

// Asc declares an ascending key on the path.
func Asc[E any, V any](p schema.Path[E, V]) Key {
	return Key{Field: p.String(), Value: int32(1)}
}

// Desc declares a descending key on the path.
func Desc[E any, V any](p schema.Path[E, V]) Key {
	return Key{Field: p.String(), Value: int32(-1)}
}

// Text declares a text-search key on a string path.
func Text[E any](p schema.Path[E, string]) Key {
	return Key{Field: p.String(), Value: "text"}
}

// Descriptor is a complete index specification. It is a plain value:
// building the same specification twice yields structurally equal
// descriptors, which is what makes declare-on-startup idempotent end to end.
type Descriptor struct {
	Keys          bson.D
	Name          string
	Unique        bool
	Sparse        bool
	ExpireAfter   time.Duration
	HasExpiry     bool
	PartialFilter bson.D
}

// New builds a descriptor over the given keys with default options.
func New(keys ...Key) Descriptor {
	d := Descriptor{Keys: make(bson.D, 0, len(keys))}
	for _, k := range keys {
		d.Keys = append(d.Keys, bson.E{Key: k.Field, Value: k.Value})
	}
	return d
}

// WithName sets an explicit index name instead of the store-derived one.
func (d Descriptor) WithName(name string) Descriptor {
	d.Name = name
	return d
}

// AsUnique marks the index as enforcing key uniqueness.
func (d Descriptor) AsUnique() Descriptor {
	d.Unique = true
	return d
}

// AsSparse restricts the index to documents that carry the indexed keys.
func (d Descriptor) AsSparse() Descriptor {
	d.Sparse = true
	return d
}

// WithTTL expires indexed documents after the given duration past their
// indexed date value.
func (d Descriptor) WithTTL(ttl time.Duration) Descriptor {
	d.ExpireAfter = ttl
	d.HasExpiry = true
	return d
}

// Partial restricts the index to documents matching the filter. The filter
// is rendered immediately, so an invalid expression fails here rather than
// at creation time.
func Partial[E any](d Descriptor, filter query.Expr[E]) (Descriptor, error) {
	rendered, err := filter.Render()
	if err != nil {
		return Descriptor{}, err
	}
	d.PartialFilter = rendered
	return d, nil
}
