package schema

import (
	"strings"
)

// Resolve turns a chain of store field names into a validated FieldPath
// rooted at the given entity type. Resolution is purely structural: it walks
// the declared property metadata and never inspects a live document, so a
// resolved path can be built ahead of any query and reused.
//
// Traversal continues through embedded documents and through sequences of
// embedded documents (the store matches those element-wise, so the rendered
// path is unchanged). A map property consumes the next chain element as an
// opaque key and continues in the map's element entity. Any other non-final
// step fails with an UnresolvableFieldPathError, as does a step naming an
// undeclared property.
//
// Results are cached per (entity type, chain); concurrent first-time
// resolution of the same chain is safe, with a single winner populating the
// cache.
func Resolve(t *EntityType, chain ...string) (*FieldPath, error) {
	if len(chain) == 0 {
		return nil, &UnresolvableFieldPathError{Entity: t.name, Reason: "empty property chain"}
	}
	key := strings.Join(chain, "\x1f")

	t.mu.RLock()
	cached, ok := t.pathCache[key]
	t.mu.RUnlock()
	if ok {
		return cached, nil
	}

	fp, err := resolveChain(t, chain)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if winner, ok := t.pathCache[key]; ok {
		fp = winner
	} else {
		t.pathCache[key] = fp
	}
	t.mu.Unlock()
	return fp, nil
}

func resolveChain(root *EntityType, chain []string) (*FieldPath, error) {
	segs := make([]segment, 0, len(chain))
	cur := root
	for i := 0; i < len(chain); i++ {
		name := chain[i]
		if cur == nil {
			return nil, &UnresolvableFieldPathError{
				Entity: root.name, Property: name, Chain: chain,
				Reason: "previous step does not resolve to an embedded entity",
			}
		}
		p, ok := cur.Property(name)
		if !ok {
			return nil, &UnresolvableFieldPathError{
				Entity: cur.name, Property: name, Chain: chain,
				Reason: "no such property",
			}
		}
		final := i == len(chain)-1
		switch p.kind {
		case KindDocument:
			segs = append(segs, segment{prop: p})
			cur = p.entity
		case KindArray:
			if final {
				segs = append(segs, segment{prop: p})
			} else if p.entity != nil {
				segs = append(segs, segment{prop: p, intoElem: true})
				cur = p.entity
			} else {
				return nil, &UnresolvableFieldPathError{
					Entity: cur.name, Property: name, Chain: chain,
					Reason: "cannot traverse into a scalar sequence",
				}
			}
		case KindMap:
			segs = append(segs, segment{prop: p})
			if final {
				break
			}
			// The next chain element is an opaque key, not a property.
			i++
			segs = append(segs, segment{key: chain[i]})
			cur = p.entity
		default:
			if !final {
				return nil, &UnresolvableFieldPathError{
					Entity: cur.name, Property: name, Chain: chain,
					Reason: "non-final step is not an embedded entity, sequence or map",
				}
			}
			segs = append(segs, segment{prop: p})
		}
		if p.kind == KindDocument || (p.kind == KindArray && !final && p.entity != nil) || p.kind == KindMap {
			continue
		}
		cur = nil
	}
	return &FieldPath{root: root, segs: segs}, nil
}
