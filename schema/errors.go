package schema

import (
	"fmt"
	"strings"
)

// UnresolvableFieldPathError reports a property chain that does not resolve
// against the declared entity metadata: either a step names a property the
// current entity does not have, or a non-final step lands on a property that
// is not an embedded document, a collection of one, or a map.
type UnresolvableFieldPathError struct {
	Entity   string   // entity type the failing step was resolved against
	Property string   // the step that failed
	Chain    []string // the full requested chain
	Reason   string
}

func (e *UnresolvableFieldPathError) Error() string {
	return fmt.Sprintf("cannot resolve %q on %s (chain %q): %s",
		e.Property, e.Entity, strings.Join(e.Chain, "."), e.Reason)
}

// DeserializationError reports a stored value that does not fit the declared
// type of the property at Path. It names both sides so the offending document
// can be located without replaying the read.
type DeserializationError struct {
	Path     string // dotted field path within the document
	Declared string // declared property kind
	Stored   string // dynamic type of the stored value
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("cannot deserialize %q: stored %s does not fit declared %s",
		e.Path, e.Stored, e.Declared)
}
