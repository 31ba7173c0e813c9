// Package query builds typed filter expressions and renders them into the
// generic filter documents the store driver consumes. Expressions are
// immutable values; the entity type parameter ties every expression to the
// entity its paths were declared on, so filters cannot cross collections.
package query

import (
	"fmt"

	"github.com/docent-go/docent/schema"
)

// Operator names a comparison in the dynamic construction API.
type Operator string

const (
	OpEqual         Operator = "$eq"
	OpNotEqual      Operator = "$ne"
	OpLess          Operator = "$lt"
	OpLowerEquals   Operator = "$lte"
	OpGreater       Operator = "$gt"
	OpGreaterEquals Operator = "$gte"
	OpIn            Operator = "$in"
	OpNotIn         Operator = "$nin"
	OpExists        Operator = "$exists"
	OpRegex         Operator = "$regex"
	OpAll           Operator = "$all"
	OpSize          Operator = "$size"
)

// TypeMismatchError reports an operand that is not assignable to the
// resolved value type of the field path it was paired with. It is raised
// when the expression is constructed, never at query time.
type TypeMismatchError struct {
	Path     string
	Declared string
	Operand  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("operand of type %s is not assignable to %q (declared %s)",
		e.Operand, e.Path, e.Declared)
}

// node is the internal expression tree.
type node interface{}

// cond pairs a field path with one operator and an encoded operand.
type cond struct {
	path  string
	op    Operator
	value any
}

// junction is an and/or/nor combination of sub-expressions.
type junction struct {
	op   string // "$and", "$or", "$nor"
	kids []node
}

// Expr is an immutable filter expression over entity type E. The zero Expr
// is the always-true filter. Construction never fails loudly: an invalid
// path or operand is carried inside the expression and surfaces from Render.
type Expr[E any] struct {
	n   node
	err error
}

// Err returns the construction error carried by the expression, if any.
func (e Expr[E]) Err() error { return e.err }

func failed[E any](err error) Expr[E] {
	return Expr[E]{err: err}
}

func leaf[E any](fp *schema.FieldPath, op Operator, value any) Expr[E] {
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	return Expr[E]{n: cond{path: fp.String(), op: op, value: value}}
}

// encodeOne runs an operand through the same conversion the document mapper
// applies on write, so stored values and operands always compare like for
// like.
func encodeOne[V any](fp *schema.FieldPath, v V) (any, error) {
	enc, err := fp.EncodeValue(&v)
	if err != nil {
		return nil, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", v)}
	}
	return enc, nil
}

func comparison[E any, V any](p schema.Path[E, V], op Operator, v V) Expr[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	enc, err := encodeOne(fp, v)
	if err != nil {
		return failed[E](err)
	}
	return leaf[E](fp, op, enc)
}

func ordered[E any, V any](p schema.Path[E, V], op Operator, v V) Expr[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	if !fp.Kind().Ordered() {
		return failed[E](&TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: "range operator"})
	}
	return comparison(p, op, v)
}

// Equal matches documents whose value at the path equals the operand.
func Equal[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return comparison(p, OpEqual, v)
}

// NotEqual matches documents whose value at the path differs from the
// operand.
func NotEqual[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return comparison(p, OpNotEqual, v)
}

// Less matches values strictly below the operand.
func Less[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return ordered(p, OpLess, v)
}

// LowerEquals matches values at or below the operand.
func LowerEquals[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return ordered(p, OpLowerEquals, v)
}

// Greater matches values strictly above the operand.
func Greater[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return ordered(p, OpGreater, v)
}

// GreaterEquals matches values at or above the operand.
func GreaterEquals[E any, V any](p schema.Path[E, V], v V) Expr[E] {
	return ordered(p, OpGreaterEquals, v)
}

// In matches values equal to any listed operand.
func In[E any, V any](p schema.Path[E, V], vs ...V) Expr[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	list := make([]any, len(vs))
	for i, v := range vs {
		enc, err := encodeOne(fp, v)
		if err != nil {
			return failed[E](err)
		}
		list[i] = enc
	}
	return leaf[E](fp, OpIn, list)
}

// NotIn matches values equal to none of the listed operands.
func NotIn[E any, V any](p schema.Path[E, V], vs ...V) Expr[E] {
	e := In(p, vs...)
	if e.err != nil {
		return e
	}
	c := e.n.(cond)
	c.op = OpNotIn
	return Expr[E]{n: c}
}

// Exists matches documents that carry the key at all, including with an
// explicit null.
func Exists[E any, V any](p schema.Path[E, V]) Expr[E] {
	return leaf[E](p.FieldPath(), OpExists, true)
}

// NotExists matches documents without the key.
func NotExists[E any, V any](p schema.Path[E, V]) Expr[E] {
	return leaf[E](p.FieldPath(), OpExists, false)
}

// IsNull matches documents whose key holds an explicit null. Note the store
// also matches absent keys against null; combine with Exists to separate the
// two.
func IsNull[E any, V any](p schema.Path[E, V]) Expr[E] {
	return leaf[E](p.FieldPath(), OpEqual, nil)
}

// Regex matches string values against the store's regular expression
// operator. Only string-kinded paths accept it, enforced by the token type.
func Regex[E any](p schema.Path[E, string], pattern string) Expr[E] {
	return leaf[E](p.FieldPath(), OpRegex, pattern)
}

// Contains matches sequences holding at least one element equal to the
// operand.
func Contains[E any, V any](p schema.Path[E, []V], v V) Expr[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	enc, err := fp.EncodeElem(&v)
	if err != nil {
		return failed[E](&TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", v)})
	}
	return leaf[E](fp, OpEqual, enc)
}

// ContainsAll matches sequences holding every listed operand.
func ContainsAll[E any, V any](p schema.Path[E, []V], vs ...V) Expr[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		return failed[E](fp.Err())
	}
	list := make([]any, len(vs))
	for i, v := range vs {
		enc, err := fp.EncodeElem(&v)
		if err != nil {
			return failed[E](&TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", v)})
		}
		list[i] = enc
	}
	return leaf[E](fp, OpAll, list)
}

// Size matches sequences of exactly n elements.
func Size[E any, V any](p schema.Path[E, []V], n int) Expr[E] {
	return leaf[E](p.FieldPath(), OpSize, int32(n))
}

// Where constructs a comparison from a dynamically resolved field path. The
// operand must carry the canonical Go representation of the path's kind;
// anything else fails with a TypeMismatchError at construction time. In and
// NotIn operands must be a slice of such values. Operator legality follows
// the typed constructors: range operators need an ordered kind, Regex a
// string kind.
func Where[E any](fp *schema.FieldPath, op Operator, v any) (Expr[E], error) {
	if fp.Err() != nil {
		return Expr[E]{}, fp.Err()
	}
	switch op {
	case OpExists:
		b, ok := v.(bool)
		if !ok {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: "bool", Operand: fmt.Sprintf("%T", v)}
		}
		return leaf[E](fp, op, b), nil
	case OpIn, OpNotIn:
		vs, ok := v.([]any)
		if !ok {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String() + " list", Operand: fmt.Sprintf("%T", v)}
		}
		list := make([]any, len(vs))
		for i, item := range vs {
			enc, err := fp.EncodeOperand(item)
			if err != nil {
				return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", item)}
			}
			list[i] = enc
		}
		return leaf[E](fp, op, list), nil
	case OpRegex:
		if fp.Kind() != schema.KindString {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: "regex operator"}
		}
		s, ok := v.(string)
		if !ok {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: "string", Operand: fmt.Sprintf("%T", v)}
		}
		return leaf[E](fp, op, s), nil
	case OpLess, OpLowerEquals, OpGreater, OpGreaterEquals:
		if !fp.Kind().Ordered() {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: "range operator"}
		}
		enc, err := fp.EncodeOperand(v)
		if err != nil {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", v)}
		}
		return leaf[E](fp, op, enc), nil
	default:
		enc, err := fp.EncodeOperand(v)
		if err != nil {
			return Expr[E]{}, &TypeMismatchError{Path: fp.String(), Declared: fp.Kind().String(), Operand: fmt.Sprintf("%T", v)}
		}
		return leaf[E](fp, op, enc), nil
	}
}

// And combines expressions conjunctively. And of nothing is the always-true
// expression.
func And[E any](es ...Expr[E]) Expr[E] {
	return junctionOf("$and", es)
}

// Or combines expressions disjunctively. Or of nothing is the always-false
// expression.
func Or[E any](es ...Expr[E]) Expr[E] {
	return junctionOf("$or", es)
}

// Not negates an expression.
func Not[E any](e Expr[E]) Expr[E] {
	if e.err != nil {
		return e
	}
	return Expr[E]{n: junction{op: "$nor", kids: []node{e.n}}}
}

func junctionOf[E any](op string, es []Expr[E]) Expr[E] {
	kids := make([]node, 0, len(es))
	for _, e := range es {
		if e.err != nil {
			return e
		}
		if e.n == nil {
			// Zero expressions are the identity of conjunction and are
			// dropped; inside a disjunction an always-true branch must stay.
			if op == "$and" {
				continue
			}
			e.n = junction{op: "$and"}
		}
		kids = append(kids, e.n)
	}
	return Expr[E]{n: junction{op: op, kids: kids}}
}
