package query

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// opOrder fixes the rendering order of operators within one path's
// sub-document, so that structurally equal expressions render to structurally
// equal documents regardless of construction order.
var opOrder = map[Operator]int{
	OpEqual:         0,
	OpNotEqual:      1,
	OpLess:          2,
	OpLowerEquals:   3,
	OpGreater:       4,
	OpGreaterEquals: 5,
	OpIn:            6,
	OpNotIn:         7,
	OpExists:        8,
	OpRegex:         9,
	OpAll:           10,
	OpSize:          11,
}

// Render produces the generic filter document. Expressions on the same field
// path are grouped losslessly into one sub-document (a combined lower and
// upper bound become two operator keys under one path); a second expression
// with the same path and operator cannot merge and is kept under an explicit
// conjunction instead, so no combination is silently reordered into a filter
// with different matching behavior. Top-level paths render in sorted order,
// which makes rendering canonical.
func (e Expr[E]) Render() (bson.D, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.n == nil {
		return bson.D{}, nil
	}
	return renderNode(e.n)
}

// MustRender is Render for expressions whose construction is known good,
// typically literals in tests.
func (e Expr[E]) MustRender() bson.D {
	d, err := e.Render()
	if err != nil {
		panic(err)
	}
	return d
}

func renderNode(n node) (bson.D, error) {
	switch t := n.(type) {
	case cond:
		return renderConjunction([]node{t})
	case junction:
		switch t.op {
		case "$and":
			return renderConjunction(t.kids)
		case "$or":
			if len(t.kids) == 0 {
				// Disjunction of nothing matches nothing: negate the
				// match-all filter.
				return bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}}, nil
			}
			arr, err := renderList(t.kids)
			if err != nil {
				return nil, err
			}
			return bson.D{{Key: "$or", Value: arr}}, nil
		case "$nor":
			arr, err := renderList(t.kids)
			if err != nil {
				return nil, err
			}
			return bson.D{{Key: "$nor", Value: arr}}, nil
		}
	}
	return bson.D{}, nil
}

func renderList(kids []node) (bson.A, error) {
	arr := make(bson.A, 0, len(kids))
	for _, k := range kids {
		d, err := renderNode(k)
		if err != nil {
			return nil, err
		}
		arr = append(arr, d)
	}
	return arr, nil
}

func renderConjunction(kids []node) (bson.D, error) {
	kids = flattenAnds(kids)

	type group struct {
		ops map[Operator]any
	}
	groups := map[string]*group{}
	var paths []string
	var nested []node  // non-cond children
	var carried []node // conds displaced by a same-path same-operator twin

	for _, k := range kids {
		c, ok := k.(cond)
		if !ok {
			nested = append(nested, k)
			continue
		}
		g := groups[c.path]
		if g == nil {
			g = &group{ops: map[Operator]any{}}
			groups[c.path] = g
			paths = append(paths, c.path)
		}
		if _, taken := g.ops[c.op]; taken {
			carried = append(carried, c)
			continue
		}
		g.ops[c.op] = c.value
	}

	sort.Strings(paths)
	out := make(bson.D, 0, len(paths)+len(nested)+1)
	for _, path := range paths {
		g := groups[path]
		ops := make([]Operator, 0, len(g.ops))
		for op := range g.ops {
			ops = append(ops, op)
		}
		sort.Slice(ops, func(i, j int) bool { return opOrder[ops[i]] < opOrder[ops[j]] })
		sub := make(bson.D, 0, len(ops))
		for _, op := range ops {
			sub = append(sub, bson.E{Key: string(op), Value: renderValue(op, g.ops[op])})
		}
		out = append(out, bson.E{Key: path, Value: sub})
	}

	var extra bson.A
	for _, c := range carried {
		d, err := renderConjunction([]node{c})
		if err != nil {
			return nil, err
		}
		extra = append(extra, d)
	}
	for _, k := range nested {
		d, err := renderNode(k)
		if err != nil {
			return nil, err
		}
		if len(d) == 1 && !hasKey(out, d[0].Key) && len(extra) == 0 {
			out = append(out, d[0])
			continue
		}
		extra = append(extra, d)
	}
	if len(extra) > 0 {
		out = append(out, bson.E{Key: "$and", Value: extra})
	}
	return out, nil
}

func flattenAnds(kids []node) []node {
	out := make([]node, 0, len(kids))
	for _, k := range kids {
		if j, ok := k.(junction); ok && j.op == "$and" {
			out = append(out, flattenAnds(j.kids)...)
			continue
		}
		out = append(out, k)
	}
	return out
}

func renderValue(op Operator, v any) any {
	if list, ok := v.([]any); ok && (op == OpIn || op == OpNotIn || op == OpAll) {
		return bson.A(list)
	}
	return v
}

func hasKey(d bson.D, key string) bool {
	for _, el := range d {
		if el.Key == key {
			return true
		}
	}
	return false
}
