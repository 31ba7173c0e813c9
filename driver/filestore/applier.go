package filestore

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// applyUpdate applies a generic update document to a stored document and
// returns the rewritten document plus whether anything actually changed.
// Documents are treated as immutable values; every modification rebuilds the
// affected spine so callers never see partial writes.
func applyUpdate(doc bson.D, update bson.D) (bson.D, bool, error) {
	changed := false
	for _, group := range update {
		mods, ok := group.Value.(bson.D)
		if !ok {
			return nil, false, fmt.Errorf("%s expects a document of paths, got %T", group.Key, group.Value)
		}
		for _, m := range mods {
			segs := strings.Split(m.Key, ".")
			var (
				next bson.D
				chg  bool
				err  error
			)
			switch group.Key {
			case "$set":
				next, chg, err = setField(doc, segs, m.Value)
			case "$unset":
				next, chg, err = removeField(doc, segs)
			case "$inc":
				next, chg, err = incField(doc, segs, m.Value)
			case "$push":
				next, chg, err = pushField(doc, segs, m.Value, false)
			case "$addToSet":
				next, chg, err = pushField(doc, segs, m.Value, true)
			case "$pull":
				next, chg, err = pullField(doc, segs, m.Value)
			default:
				return nil, false, fmt.Errorf("unsupported update operator %q", group.Key)
			}
			if err != nil {
				return nil, false, fmt.Errorf("%s %q: %w", group.Key, m.Key, err)
			}
			doc = next
			changed = changed || chg
		}
	}
	return doc, changed, nil
}

// setField writes v at the dotted path, creating intermediate documents for
// missing segments. An intermediate that exists but is not a document is an
// error rather than a silent overwrite.
func setField(doc bson.D, segs []string, v any) (bson.D, bool, error) {
	for i, e := range doc {
		if e.Key != segs[0] {
			continue
		}
		if len(segs) == 1 {
			if valuesEqual(e.Value, v) {
				return doc, false, nil
			}
			out := cloneDoc(doc)
			out[i].Value = v
			return out, true, nil
		}
		sub, ok := e.Value.(bson.D)
		if !ok {
			return nil, false, fmt.Errorf("segment %q is not a document", segs[0])
		}
		next, chg, err := setField(sub, segs[1:], v)
		if err != nil {
			return nil, false, err
		}
		if !chg {
			return doc, false, nil
		}
		out := cloneDoc(doc)
		out[i].Value = next
		return out, true, nil
	}
	leaf := v
	for i := len(segs) - 1; i >= 1; i-- {
		leaf = bson.D{{Key: segs[i], Value: leaf}}
	}
	out := cloneDoc(doc)
	out = append(out, bson.E{Key: segs[0], Value: leaf})
	return out, true, nil
}

func removeField(doc bson.D, segs []string) (bson.D, bool, error) {
	for i, e := range doc {
		if e.Key != segs[0] {
			continue
		}
		if len(segs) == 1 {
			out := make(bson.D, 0, len(doc)-1)
			out = append(out, doc[:i]...)
			out = append(out, doc[i+1:]...)
			return out, true, nil
		}
		sub, ok := e.Value.(bson.D)
		if !ok {
			return doc, false, nil
		}
		next, chg, err := removeField(sub, segs[1:])
		if err != nil || !chg {
			return doc, false, err
		}
		out := cloneDoc(doc)
		out[i].Value = next
		return out, true, nil
	}
	return doc, false, nil
}

// incField adds a numeric delta to the value at the path. A missing field is
// seeded with the delta itself. The result keeps the wider of the two
// numeric widths involved.
func incField(doc bson.D, segs []string, delta any) (bson.D, bool, error) {
	cur, found := lookupPath(doc, segs)
	if !found {
		return setField(doc, segs, delta)
	}
	if len(cur) != 1 {
		return nil, false, fmt.Errorf("path resolves through an array")
	}
	sum, err := addNumbers(cur[0], delta)
	if err != nil {
		return nil, false, err
	}
	return setField(doc, segs, sum)
}

func addNumbers(a, b any) (any, error) {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, fmt.Errorf("cannot add %T and %T", a, b)
	}
	_, aFloat := a.(float64)
	_, bFloat := b.(float64)
	if aFloat || bFloat {
		return fa + fb, nil
	}
	_, aWide := a.(int64)
	_, bWide := b.(int64)
	ia, _ := toInt64(a)
	ib, _ := toInt64(b)
	if aWide || bWide {
		return ia + ib, nil
	}
	return int32(ia + ib), nil
}

// pushField appends v to the array at the path, creating the array when the
// field is missing. With unique set, an equal element already present makes
// the call a no-op.
func pushField(doc bson.D, segs []string, v any, unique bool) (bson.D, bool, error) {
	cur, found := lookupPath(doc, segs)
	if !found {
		return setField(doc, segs, bson.A{v})
	}
	if len(cur) != 1 {
		return nil, false, fmt.Errorf("path resolves through an array")
	}
	arr, ok := cur[0].(bson.A)
	if !ok {
		return nil, false, fmt.Errorf("field is not an array")
	}
	if unique {
		for _, el := range arr {
			if valuesEqual(el, v) {
				return doc, false, nil
			}
		}
	}
	next := make(bson.A, 0, len(arr)+1)
	next = append(next, arr...)
	next = append(next, v)
	return setField(doc, segs, next)
}

// pullField removes every element equal to v from the array at the path.
func pullField(doc bson.D, segs []string, v any) (bson.D, bool, error) {
	cur, found := lookupPath(doc, segs)
	if !found {
		return doc, false, nil
	}
	if len(cur) != 1 {
		return nil, false, fmt.Errorf("path resolves through an array")
	}
	arr, ok := cur[0].(bson.A)
	if !ok {
		return nil, false, fmt.Errorf("field is not an array")
	}
	next := make(bson.A, 0, len(arr))
	for _, el := range arr {
		if !valuesEqual(el, v) {
			next = append(next, el)
		}
	}
	if len(next) == len(arr) {
		return doc, false, nil
	}
	return setField(doc, segs, next)
}

func cloneDoc(doc bson.D) bson.D {
	out := make(bson.D, len(doc))
	copy(out, doc)
	return out
}

// seedFromFilter derives the starting document for an upsert that matched
// nothing: every equality condition in the filter becomes a field of the new
// document, the same way the store seeds upserts.
func seedFromFilter(filter bson.D) (bson.D, error) {
	doc := bson.D{}
	var err error
	for _, e := range filter {
		switch e.Key {
		case "$and":
			kids, cErr := clauseList(e.Key, e.Value)
			if cErr != nil {
				return nil, cErr
			}
			for _, k := range kids {
				sub, sErr := seedFromFilter(k)
				if sErr != nil {
					return nil, sErr
				}
				for _, f := range sub {
					doc, _, err = setField(doc, strings.Split(f.Key, "."), f.Value)
					if err != nil {
						return nil, err
					}
				}
			}
		case "$or", "$nor":
			// Disjunctions carry no single value to seed with.
		default:
			if strings.HasPrefix(e.Key, "$") {
				continue
			}
			v := e.Value
			if ops, isOps := operatorDoc(e.Value); isOps {
				eq, has := eqOperand(ops)
				if !has {
					continue
				}
				v = eq
			}
			doc, _, err = setField(doc, strings.Split(e.Key, "."), v)
			if err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

func eqOperand(ops bson.D) (any, bool) {
	for _, op := range ops {
		if op.Key == "$eq" {
			return op.Value, true
		}
	}
	return nil, false
}
