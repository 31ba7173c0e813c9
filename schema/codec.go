package schema

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// encodeScalar renders a canonical Go value of the given kind into its
// generic-document representation. The value is trusted to carry the
// canonical type for the kind; the typed registration closures guarantee it.
func encodeScalar(kind Kind, v any) any {
	switch kind {
	case KindBinary:
		b, _ := v.([]byte)
		return primitive.Binary{Subtype: 0x00, Data: b}
	default:
		return v
	}
}

// decodeScalar converts a stored generic-document value into the canonical
// Go representation of the kind: string, bool, int32, int64, float64,
// time.Time or []byte. Numeric kinds accept each other's wire encodings
// when the value fits the declared width; a stored int64 outside the int32
// range does not fit, it never wraps. Everything else must match exactly.
// The second return is false when the stored value does not fit.
func decodeScalar(kind Kind, raw any) (any, bool) {
	switch kind {
	case KindString, KindEnum:
		if s, ok := raw.(string); ok {
			return s, true
		}
	case KindBool:
		if b, ok := raw.(bool); ok {
			return b, true
		}
	case KindInt32:
		switch n := raw.(type) {
		case int32:
			return n, true
		case int64:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), true
			}
		}
	case KindInt64:
		switch n := raw.(type) {
		case int64:
			return n, true
		case int32:
			return int64(n), true
		}
	case KindDouble:
		switch n := raw.(type) {
		case float64:
			return n, true
		case int32:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	case KindDate:
		switch d := raw.(type) {
		case time.Time:
			return d, true
		case primitive.DateTime:
			return d.Time().UTC(), true
		}
	case KindBinary:
		switch b := raw.(type) {
		case primitive.Binary:
			return b.Data, true
		case []byte:
			return b, true
		}
	}
	return nil, false
}

// encodeScalarOperand converts an untyped operand for the dynamic query API.
// It accepts the canonical representation of each kind plus the untyped Go
// literal forms (int for the integer kinds) and rejects everything else.
func encodeScalarOperand(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindString, KindEnum:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt32:
		switch n := v.(type) {
		case int32:
			return n, nil
		case int:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
		case int64:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
		}
	case KindInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case KindDouble:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case KindDate:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case primitive.DateTime:
			return d.Time().UTC(), nil
		}
	case KindBinary:
		switch b := v.(type) {
		case []byte:
			return primitive.Binary{Subtype: 0x00, Data: b}, nil
		case primitive.Binary:
			return b, nil
		}
	}
	return nil, fmt.Errorf("operand %T is not assignable to declared kind %s", v, kind)
}
