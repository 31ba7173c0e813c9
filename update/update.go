// Package update accumulates typed update modifiers and seals them into the
// generic update documents the store driver consumes. An Update is a scoped
// construction context: modifier calls record intent, Build groups them by
// operator and rejects conflicting combinations, and nothing ever inspects
// the current stored document.
package update

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docent-go/docent/schema"
)

// Modifier operator groups. Two modifiers from the same group can never
// target one path in a single update, and Unset tolerates no companion at
// all on its path.
const (
	groupSet      = "$set"
	groupUnset    = "$unset"
	groupInc      = "$inc"
	groupPush     = "$push"
	groupAddToSet = "$addToSet"
	groupPull     = "$pull"
)

var groupOrder = map[string]int{
	groupSet:      0,
	groupUnset:    1,
	groupInc:      2,
	groupPush:     3,
	groupAddToSet: 4,
	groupPull:     5,
}

// ConflictingModifierError reports two update modifiers that cannot both
// target the same field path in one update document.
type ConflictingModifierError struct {
	Path   string
	First  string
	Second string
}

func (e *ConflictingModifierError) Error() string {
	return fmt.Sprintf("conflicting modifiers on %q: %s and %s", e.Path, e.First, e.Second)
}

// Number constrains increment deltas to the numeric property kinds.
type Number interface {
	~int32 | ~int64 | ~float64
}

type modifier struct {
	path  string
	group string
	value any
	seq   int
}

// Update accumulates modifiers against entity type E. The type parameter
// ties every modifier to paths declared on that entity, so an update built
// for one collection cannot carry another collection's paths.
type Update[E any] struct {
	mods []modifier
	errs []error
}

// New opens an update construction context.
func New[E any]() *Update[E] {
	return &Update[E]{}
}

func (u *Update[E]) add(fp *schema.FieldPath, group string, value any) {
	if fp.Err() != nil {
		u.errs = append(u.errs, fp.Err())
		return
	}
	u.mods = append(u.mods, modifier{path: fp.String(), group: group, value: value, seq: len(u.mods)})
}

func (u *Update[E]) fail(err error) {
	u.errs = append(u.errs, err)
}

// Set records a value assignment for the path.
func Set[E any, V any](u *Update[E], p schema.Path[E, V], v V) *Update[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		u.fail(fp.Err())
		return u
	}
	enc, err := fp.EncodeValue(&v)
	if err != nil {
		u.fail(err)
		return u
	}
	u.add(fp, groupSet, enc)
	return u
}

// Unset records removal of the key at the path.
func Unset[E any, V any](u *Update[E], p schema.Path[E, V]) *Update[E] {
	u.add(p.FieldPath(), groupUnset, "")
	return u
}

// Inc records an arithmetic increment of the path by delta.
func Inc[E any, V Number](u *Update[E], p schema.Path[E, V], delta V) *Update[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		u.fail(fp.Err())
		return u
	}
	enc, err := fp.EncodeValue(&delta)
	if err != nil {
		u.fail(err)
		return u
	}
	u.add(fp, groupInc, enc)
	return u
}

// Push records appending one element to the sequence at the path.
func Push[E any, V any](u *Update[E], p schema.Path[E, []V], v V) *Update[E] {
	return pushLike(u, p, groupPush, v)
}

// AddToSet records appending one element to the sequence at the path unless
// an equal element is already present.
func AddToSet[E any, V any](u *Update[E], p schema.Path[E, []V], v V) *Update[E] {
	return pushLike(u, p, groupAddToSet, v)
}

// Pull records removal of every element equal to v from the sequence at the
// path.
func Pull[E any, V any](u *Update[E], p schema.Path[E, []V], v V) *Update[E] {
	return pushLike(u, p, groupPull, v)
}

func pushLike[E any, V any](u *Update[E], p schema.Path[E, []V], group string, v V) *Update[E] {
	fp := p.FieldPath()
	if fp.Err() != nil {
		u.fail(fp.Err())
		return u
	}
	enc, err := fp.EncodeElem(&v)
	if err != nil {
		u.fail(err)
		return u
	}
	u.add(fp, group, enc)
	return u
}

// Empty reports whether no modifiers were recorded.
func (u *Update[E]) Empty() bool {
	return len(u.mods) == 0 && len(u.errs) == 0
}

// Build seals the context into a generic update document keyed by modifier
// operator. Conflicts are checked here: two modifiers from the same group on
// one path, and Unset paired with any other modifier on one path, both fail
// with a ConflictingModifierError. Modifiers from different groups on the
// same path are passed through; whether the store accepts the combination is
// its call.
func (u *Update[E]) Build() (bson.D, error) {
	if len(u.errs) > 0 {
		return nil, u.errs[0]
	}
	if len(u.mods) == 0 {
		return nil, fmt.Errorf("update context holds no modifiers")
	}

	seen := map[string][]modifier{}
	for _, m := range u.mods {
		for _, prev := range seen[m.path] {
			if prev.group == m.group {
				return nil, &ConflictingModifierError{Path: m.path, First: prev.group, Second: m.group}
			}
			if prev.group == groupUnset || m.group == groupUnset {
				return nil, &ConflictingModifierError{Path: m.path, First: prev.group, Second: m.group}
			}
		}
		seen[m.path] = append(seen[m.path], m)
	}

	byGroup := map[string][]modifier{}
	var groups []string
	for _, m := range u.mods {
		if _, ok := byGroup[m.group]; !ok {
			groups = append(groups, m.group)
		}
		byGroup[m.group] = append(byGroup[m.group], m)
	}
	sort.Slice(groups, func(i, j int) bool { return groupOrder[groups[i]] < groupOrder[groups[j]] })

	out := make(bson.D, 0, len(groups))
	for _, g := range groups {
		mods := byGroup[g]
		sort.Slice(mods, func(i, j int) bool {
			if mods[i].path != mods[j].path {
				return mods[i].path < mods[j].path
			}
			return mods[i].seq < mods[j].seq
		})
		sub := make(bson.D, 0, len(mods))
		for _, m := range mods {
			sub = append(sub, bson.E{Key: m.path, Value: m.value})
		}
		out = append(out, bson.E{Key: g, Value: sub})
	}
	return out, nil
}
