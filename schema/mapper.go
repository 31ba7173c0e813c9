package schema

import (
	"go.mongodb.org/mongo-driver/bson"
)

// Marshal serializes an entity into a generic document. Every declared,
// non-transient property contributes one key under its store field name;
// optional-absent properties sitting at their absent sentinel are omitted,
// nullable properties holding nil emit an explicit null. Embedded entities
// and collections of them recurse.
func Marshal[E any](t *Type[E], entity *E) (bson.D, error) {
	return marshalEntity(t.et, entity)
}

// MarshalEntity is the untyped form of Marshal: entity must be a pointer to
// the entity type's Go struct. It exists for callers that carry metadata
// without the type parameter, such as expression builders encoding free
// operand values.
func MarshalEntity(t *EntityType, entity any) (bson.D, error) {
	return marshalEntity(t, entity)
}

func marshalEntity(t *EntityType, entity any) (bson.D, error) {
	doc := make(bson.D, 0, len(t.props))
	for _, p := range t.props {
		if p.transient {
			continue
		}
		v, present, err := p.encode(entity)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		doc = append(doc, bson.E{Key: p.name, Value: v})
	}
	return doc, nil
}

// Unmarshal deserializes a generic document into a fresh entity instance.
//
// The three-way key contract: a key absent from the document backfills the
// property's static default and never errors; a key holding an explicit null
// sets nullable properties to nil and collapses non-nullable ones to their
// zero value; a key holding a value converts per the property's kind, and a
// value that does not fit fails with a DeserializationError naming the path
// and both types. Document keys with no matching property are dropped
// silently, which is what lets independently deployed readers and writers
// evolve the schema without coordinated migration.
func Unmarshal[E any](t *Type[E], doc bson.D) (*E, error) {
	e, _, err := UnmarshalWithReport(t, doc)
	return e, err
}

// UnmarshalWithReport is Unmarshal plus an UnmarshalReport describing the
// tolerated-but-lossy conditions encountered, currently the null-to-zero
// collapses on non-nullable properties. The collapse itself is deliberate
// long-standing behavior; the report makes it observable.
func UnmarshalWithReport[E any](t *Type[E], doc bson.D) (*E, *UnmarshalReport, error) {
	e := t.New()
	rep := &UnmarshalReport{}
	if err := unmarshalEntity(t.et, doc, e, rep, ""); err != nil {
		return nil, nil, err
	}
	return e, rep, nil
}

// UnmarshalEntity is the untyped form of Unmarshal: entity must be a pointer
// to a zero instance of the entity type's Go struct.
func UnmarshalEntity(t *EntityType, doc bson.D, entity any, rep *UnmarshalReport) error {
	return unmarshalEntity(t, doc, entity, rep, "")
}

func unmarshalEntity(t *EntityType, doc bson.D, entity any, rep *UnmarshalReport, prefix string) error {
	for _, p := range t.props {
		if p.transient {
			continue
		}
		path := p.name
		if prefix != "" {
			path = prefix + "." + p.name
		}
		raw, found := docLookup(doc, p.name)
		switch {
		case !found:
			p.setDefault(entity)
		case raw == nil:
			if p.setNull != nil && p.nullable {
				p.setNull(entity)
			} else {
				p.setZero(entity)
				rep.lossyNull(path)
			}
		default:
			if err := p.decode(entity, raw, rep, path); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyDefaults backfills every declared default on a zero instance, used
// when an entire embedded document is absent.
func applyDefaults(t *EntityType, entity any) {
	for _, p := range t.props {
		if p.transient {
			continue
		}
		p.setDefault(entity)
	}
}

func docLookup(doc bson.D, key string) (any, bool) {
	for _, el := range doc {
		if el.Key == key {
			return el.Value, true
		}
	}
	return nil, false
}
