package schema

// Kind identifies the declared storage type of a property. It determines
// which generic-document values a property accepts on read, how its value is
// rendered on write, and which query operators are legal against it.
type Kind int

const (
	KindInvalid Kind = iota

	// Scalar kinds.
	KindString
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindDate
	KindBinary

	// KindEnum is a named string type, stored as its string value.
	KindEnum

	// KindDocument is an embedded entity, stored as a nested document.
	KindDocument

	// KindArray is a sequence of scalars or embedded entities.
	KindArray

	// KindMap is a string-keyed mapping to embedded entities. Keys are
	// opaque; they are never validated or traversed structurally.
	KindMap
)

// String returns a human-readable name for the kind, used in error messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	case KindEnum:
		return "enum"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Ordered reports whether values of this kind support range comparison.
func (k Kind) Ordered() bool {
	switch k {
	case KindString, KindInt32, KindInt64, KindDouble, KindDate, KindEnum:
		return true
	default:
		return false
	}
}

// Numeric reports whether this kind belongs to the numeric family. Numeric
// kinds accept each other's stored representations on read, since the store
// chooses the narrowest wire encoding for small numbers.
func (k Kind) Numeric() bool {
	switch k {
	case KindInt32, KindInt64, KindDouble:
		return true
	default:
		return false
	}
}
