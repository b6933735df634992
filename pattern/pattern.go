// Package pattern implements the declarative pattern language (§4.4)
// and its unification matcher (§4.5). Patterns are plain Go values —
// variables, scalars, ObjectPattern/ArrayPattern trees, Modifier nodes,
// and named test predicates — built with the constructors below and
// matched with Match.
package pattern

import (
	"fmt"
	"strings"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
)

// Var is a pattern variable: a string starting with '?'.
type Var = bindings.Var

// IsVariableKey reports whether s is a variable (starts with '?').
func IsVariableKey(s string) bool {
	return len(s) > 0 && s[0] == '?'
}

// SplicePrefix marks an object-pattern key whose sub-pattern matches
// the containing value itself, rather than a named property of it.
const SplicePrefix = "~@"

// IsSpliceKey reports whether key is a splice key (~@tag).
func IsSpliceKey(key string) bool {
	return strings.HasPrefix(key, SplicePrefix)
}

// Null matches only when the value is absent (the key wasn't present
// in the containing object) or explicitly nil.
type Null struct{}

// KV is one key/sub-pattern pair of an ObjectPattern. Key is either a
// literal property name, a variable (matches any key, binding the
// variable to the key name), or a splice key (~@tag).
type KV struct {
	Key     string
	Pattern any
}

// K is a convenience constructor for a KV pair.
func K(key string, p any) KV { return KV{Key: key, Pattern: p} }

// Splice builds a splice KV: its sub-pattern is matched against the
// value containing this object pattern, not a named property of it.
// tag is cosmetic (distinguishes multiple splices in one object
// pattern) and carries no matching semantics.
func Splice(tag string, p any) KV { return KV{Key: SplicePrefix + tag, Pattern: p} }

// ObjectPattern is an ordered list of key/sub-pattern pairs. Order as
// authored does not matter semantically (Optimize reorders for
// performance, §4.5.1) but is preserved here, unlike a bare Go map,
// so Optimize has something real to reorder.
type ObjectPattern []KV

// Obj builds an ObjectPattern from KV pairs.
func Obj(kvs ...KV) ObjectPattern { return ObjectPattern(kvs) }

// ArrayPattern is an ordered list of sub-patterns and/or test
// functions (§4.4, §4.5.2).
type ArrayPattern []any

// ModTag names a modifier pattern's behavior.
type ModTag string

const (
	TagTuple ModTag = "TUPLE"
	TagOr    ModTag = "OR"
	TagNot   ModTag = "NOT"
	TagMaybe ModTag = "MAYBE"
)

// Modifier is a tagged pattern node: TUPLE, OR, NOT, or MAYBE.
type Modifier struct {
	Tag      ModTag
	Children []any
}

func TupleOf(children ...any) Modifier { return Modifier{Tag: TagTuple, Children: children} }
func Or(children ...any) Modifier      { return Modifier{Tag: TagOr, Children: children} }
func Not(child any) Modifier           { return Modifier{Tag: TagNot, Children: []any{child}} }
func Maybe(child any) Modifier         { return Modifier{Tag: TagMaybe, Children: []any{child}} }

// NamedTest is a test-function pattern (§4.5.2, §4.5.3): a predicate
// over a binding record whose variable keys have had the leading '?'
// stripped (the Open Question in §9 resolved: this convention is
// mandatory, not optional — see SPEC_FULL.md).
//
// Name lets the predicate survive Serialize/Parse (§4.7.2): a
// registered name round-trips; an anonymous closure does not (it
// serializes as an opaque reference and fails to Parse without the
// same Registry).
type NamedTest struct {
	Name string
	Fn   func(record map[string]any) bool
}

func Test(name string, fn func(map[string]any) bool) NamedTest {
	return NamedTest{Name: name, Fn: fn}
}

func (t NamedTest) String() string {
	return fmt.Sprintf("(test %s)", t.Name)
}
