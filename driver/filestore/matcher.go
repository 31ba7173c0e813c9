package filestore

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// matches evaluates a generic filter document against a stored document.
// Top-level keys are either logical operators or dotted field paths; a field
// path maps to an operator document or to a bare value meaning equality.
func matches(doc bson.D, filter bson.D) (bool, error) {
	for _, e := range filter {
		switch e.Key {
		case "$and":
			kids, err := clauseList(e.Key, e.Value)
			if err != nil {
				return false, err
			}
			for _, k := range kids {
				ok, err := matches(doc, k)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
		case "$or":
			kids, err := clauseList(e.Key, e.Value)
			if err != nil {
				return false, err
			}
			any := false
			for _, k := range kids {
				ok, err := matches(doc, k)
				if err != nil {
					return false, err
				}
				if ok {
					any = true
					break
				}
			}
			if !any {
				return false, nil
			}
		case "$nor":
			kids, err := clauseList(e.Key, e.Value)
			if err != nil {
				return false, err
			}
			for _, k := range kids {
				ok, err := matches(doc, k)
				if err != nil {
					return false, err
				}
				if ok {
					return false, nil
				}
			}
		default:
			if strings.HasPrefix(e.Key, "$") {
				return false, fmt.Errorf("unsupported query operator %q", e.Key)
			}
			ok, err := matchField(doc, e.Key, e.Value)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

func clauseList(op string, v any) ([]bson.D, error) {
	arr, ok := v.(bson.A)
	if !ok {
		return nil, fmt.Errorf("%s expects an array of filters, got %T", op, v)
	}
	out := make([]bson.D, 0, len(arr))
	for _, e := range arr {
		d, ok := e.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s expects filter documents, got %T", op, e)
		}
		out = append(out, d)
	}
	return out, nil
}

func matchField(doc bson.D, path string, cond any) (bool, error) {
	values, found := lookupPath(doc, strings.Split(path, "."))
	ops, isOps := operatorDoc(cond)
	if !isOps {
		return evalOp("$eq", cond, values, found)
	}
	for _, op := range ops {
		ok, err := evalOp(op.Key, op.Value, values, found)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// operatorDoc reports whether cond is a document made entirely of operator
// keys. A plain embedded document used as an equality operand stays a value.
func operatorDoc(cond any) (bson.D, bool) {
	d, ok := cond.(bson.D)
	if !ok || len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

// lookupPath walks the dotted path through the document, fanning out over
// array elements. It returns every value found at the leaf and whether any
// branch reached a value at all.
func lookupPath(doc bson.D, segs []string) ([]any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	var cur any
	found := false
	for _, e := range doc {
		if e.Key == segs[0] {
			cur = e.Value
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	if len(segs) == 1 {
		return []any{cur}, true
	}
	switch v := cur.(type) {
	case bson.D:
		return lookupPath(v, segs[1:])
	case bson.A:
		var out []any
		any := false
		for _, el := range v {
			if sub, ok := el.(bson.D); ok {
				vals, f := lookupPath(sub, segs[1:])
				if f {
					any = true
					out = append(out, vals...)
				}
			}
		}
		return out, any
	default:
		return nil, false
	}
}

// leafCandidates expands array leaves so an operator can match either the
// whole array or any one element, which is how the store treats array fields.
func leafCandidates(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
		if arr, ok := v.(bson.A); ok {
			out = append(out, arr...)
		}
	}
	return out
}

func evalOp(op string, operand any, values []any, found bool) (bool, error) {
	switch op {
	case "$eq":
		if operand == nil {
			if !found {
				return true, nil
			}
			for _, v := range leafCandidates(values) {
				if v == nil {
					return true, nil
				}
			}
			return false, nil
		}
		for _, v := range leafCandidates(values) {
			if valuesEqual(v, operand) {
				return true, nil
			}
		}
		return false, nil

	case "$ne":
		ok, err := evalOp("$eq", operand, values, found)
		return !ok, err

	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range leafCandidates(values) {
			c, ok := compareValues(v, operand)
			if !ok {
				continue
			}
			switch op {
			case "$gt":
				ok = c > 0
			case "$gte":
				ok = c >= 0
			case "$lt":
				ok = c < 0
			case "$lte":
				ok = c <= 0
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "$in":
		members, ok := operand.(bson.A)
		if !ok {
			return false, fmt.Errorf("$in expects an array, got %T", operand)
		}
		for _, m := range members {
			ok, err := evalOp("$eq", m, values, found)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case "$nin":
		ok, err := evalOp("$in", operand, values, found)
		return !ok, err

	case "$exists":
		want, ok := operand.(bool)
		if !ok {
			return false, fmt.Errorf("$exists expects a boolean, got %T", operand)
		}
		return found == want, nil

	case "$regex":
		var pattern string
		switch p := operand.(type) {
		case string:
			pattern = p
		case primitive.Regex:
			pattern = p.Pattern
		default:
			return false, fmt.Errorf("$regex expects a pattern, got %T", operand)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid $regex pattern: %w", err)
		}
		for _, v := range leafCandidates(values) {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil

	case "$all":
		members, ok := operand.(bson.A)
		if !ok {
			return false, fmt.Errorf("$all expects an array, got %T", operand)
		}
		for _, v := range values {
			elems := bson.A{v}
			if arr, ok := v.(bson.A); ok {
				elems = arr
			}
			all := true
			for _, m := range members {
				hit := false
				for _, el := range elems {
					if valuesEqual(el, m) {
						hit = true
						break
					}
				}
				if !hit {
					all = false
					break
				}
			}
			if all {
				return true, nil
			}
		}
		return false, nil

	case "$size":
		n, ok := toInt64(operand)
		if !ok {
			return false, fmt.Errorf("$size expects an integer, got %T", operand)
		}
		for _, v := range values {
			if arr, ok := v.(bson.A); ok && int64(len(arr)) == n {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unsupported query operator %q", op)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

// valuesEqual compares two stored values. Numbers compare across integer and
// floating widths, dates across the raw and decoded representations;
// documents compare key order sensitively, matching the store's own equality.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		return ok && ta.Equal(tb)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case primitive.Binary:
		bv, ok := b.(primitive.Binary)
		return ok && av.Subtype == bv.Subtype && bytes.Equal(av.Data, bv.Data)
	case bson.D:
		bv, ok := b.(bson.D)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !valuesEqual(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case bson.A:
		bv, ok := b.(bson.A)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// compareValues orders two values when they share an ordered kind. The bool
// result reports comparability; incomparable pairs never satisfy a range
// operator.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}
