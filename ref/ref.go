// Package ref defines the tagged reference primitives (§4.2): entity,
// tombstone, and retract references. References are the only way a
// stored entity may point at another entity (§3's flatness invariant).
package ref

// Kind tags what a Ref means.
type Kind int

const (
	KindEntity Kind = iota
	KindTombstone
	KindRetract
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindTombstone:
		return "tombstone"
	case KindRetract:
		return "retract"
	default:
		return "unknown"
	}
}

// Wildcard is the special id meaning "every prior element" in a
// tombstone. A retract reference with this id is rejected at the
// transaction boundary (see RetractRef).
const Wildcard = "*"

// Ref is a two-element tagged value (kind, id).
type Ref struct {
	Kind Kind
	ID   string
}

// EntityRef replaces a nested identifiable entity in storage.
func EntityRef(id string) Ref { return Ref{Kind: KindEntity, ID: id} }

// TombstoneRef, during array merge, removes a matching element;
// TombstoneRef(Wildcard) clears the whole prior array.
func TombstoneRef(id string) Ref { return Ref{Kind: KindTombstone, ID: id} }

// RetractRef is a transaction-time sentinel meaning "remove this
// entity and all references to it". RetractRef(Wildcard) is a valid
// value shape but is rejected with rferr.InvalidArgument at the
// transaction boundary (§4.2), not at construction time, matching the
// teacher's pattern of validating at the edge rather than at
// value-construction time.
func RetractRef(id string) Ref { return Ref{Kind: KindRetract, ID: id} }

func (r Ref) IsEntity() bool     { return r.Kind == KindEntity }
func (r Ref) IsTombstone() bool  { return r.Kind == KindTombstone }
func (r Ref) IsRetract() bool    { return r.Kind == KindRetract }
func (r Ref) IsWildcard() bool   { return r.ID == Wildcard }

// As reports whether v is a Ref and returns it.
func As(v any) (Ref, bool) {
	r, ok := v.(Ref)
	return r, ok
}

// IsRef reports whether v is a Ref, discarding the value itself. A
// thin convenience over As for call sites that only need the test.
func IsRef(v any) bool {
	_, ok := As(v)
	return ok
}
