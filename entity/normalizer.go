package entity

import (
	"fmt"

	"github.com/RelationalFabric/relational-fabric-sub000/chash"
	"github.com/RelationalFabric/relational-fabric-sub000/logging"
	"github.com/RelationalFabric/relational-fabric-sub000/ref"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// Normalize walks input (a root entity: a map with both "id" and
// "type") and produces the set of upsert Changes the store index
// should apply: nested typed entities are replaced by entity
// references and contribute their own Change; arrays merge as sets
// against view's existing data; a per-call visited set breaks cycles
// (§4.8). logger receives the warnings §7 requires never be raised as
// errors (e.g. an explicit null against a key that was never set); a
// nil logger defaults to logging.Noop{}.
func Normalize(input map[string]any, view StoreView, logger logging.Logger) ([]Change, error) {
	id, _ := input["id"].(string)
	if id == "" {
		return nil, rferr.New(rferr.MissingId, "root entity must have an id")
	}
	typ, hasType := input["type"].(string)
	if !hasType || typ == "" {
		return nil, rferr.New(rferr.MissingType, "root entity must have a type")
	}
	if logger == nil {
		logger = logging.Noop{}
	}

	n := &normalizer{view: view, logger: logger, visited: map[string]bool{}}
	_, err := n.normalizeEntity(input)
	if err != nil {
		return nil, err
	}
	return n.changes, nil
}

type normalizer struct {
	view    StoreView
	logger  logging.Logger
	visited map[string]bool
	changes []Change
}

// normalizeEntity normalizes one identifiable entity object (a map
// with an "id"), returning the ref.Ref that should replace it wherever
// it was nested, and appending any produced Change to n.changes.
func (n *normalizer) normalizeEntity(obj map[string]any) (any, error) {
	id, _ := obj["id"].(string)

	if n.visited[id] {
		// Back-edge: already normalized (or in progress) this call;
		// reference it without recursing again.
		return ref.EntityRef(id), nil
	}
	n.visited[id] = true

	incomingType, hasType := obj["type"].(string)
	if !hasType {
		incomingType = Untyped
	}

	existingType, existed := n.view.ResolveType(id)
	resolvedType, err := resolveType(existingType, existed, incomingType)
	if err != nil {
		return nil, err
	}

	if isIdentityOnly(obj, hasType) {
		return ref.EntityRef(id), nil
	}

	var base map[string]any
	if existed {
		if existingAttrs, ok := n.view.GetAttrs(resolvedType, id); ok {
			base = cloneAttrs(existingAttrs)
		}
	}
	if base == nil {
		base = map[string]any{}
	}

	for key, value := range obj {
		if key == "id" || key == "type" {
			continue
		}
		existingVal, hadExisting := base[key]
		if value == nil && !hadExisting {
			// §7: a warning, not an error — retracting a property that
			// was never set is a no-op either way.
			n.logger.Warnf("entity %s/%s: null value for nonexistent key %q", resolvedType, id, key)
		}
		merged, err := n.mergeProperty(existingVal, value)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			delete(base, key)
		} else {
			base[key] = merged
		}
	}

	n.changes = append(n.changes, Change{ID: id, Type: resolvedType, Attrs: base})
	return ref.EntityRef(id), nil
}

// mergeProperty normalizes a single incoming property value against
// its existing (possibly absent) stored value. A nil return means the
// property should be absent from the merged attrs (explicit null, or
// a now-empty array); a plain nested object is returned as a map even
// when it ends up empty.
func (n *normalizer) mergeProperty(existing any, incoming any) (any, error) {
	if incoming == nil {
		// Explicit null: retraction of the property.
		return nil, nil
	}

	switch v := incoming.(type) {
	case []any:
		existingArr, _ := existing.([]any)
		return n.mergeArray(existingArr, v)

	case map[string]any:
		if id, ok := v["id"].(string); ok && id != "" {
			return n.normalizeEntity(v)
		}
		if typ, ok := v["type"].(string); ok && typ != "" && typ != Untyped {
			// Asserts a concrete type but carries no id to reference it
			// by: storing it would violate §3's "no attribute value is
			// an identifiable entity" invariant, since there is no id
			// to replace it with a reference to.
			return nil, rferr.New(rferr.NestedEntityAssertion,
				fmt.Sprintf("nested value asserts type %q without an id to reference it by", typ))
		}
		// Plain nested object (no id, no asserted concrete type):
		// recurse into its own properties looking for nested
		// identifiable entities, but it is not itself replaced by a
		// reference.
		out := map[string]any{}
		for k, sub := range v {
			normalizedSub, err := n.mergeProperty(nil, sub)
			if err != nil {
				return nil, err
			}
			if normalizedSub != nil {
				out[k] = normalizedSub
			}
		}
		return out, nil

	default:
		return v, nil
	}
}

// mergeArray implements §4.8's arrays-as-sets merge: tombstones are
// partitioned out and applied to the old-by-key index before new
// values are merged over it.
func (n *normalizer) mergeArray(existing []any, incoming []any) ([]any, error) {
	oldByKey := map[string]any{}
	oldOrder := []string{}
	for _, el := range existing {
		k := elementKey(el)
		if _, ok := oldByKey[k]; !ok {
			oldOrder = append(oldOrder, k)
		}
		oldByKey[k] = el
	}

	var tombstones []ref.Ref
	var values []any
	for _, el := range incoming {
		if r, ok := ref.As(el); ok && r.IsTombstone() {
			tombstones = append(tombstones, r)
			continue
		}
		values = append(values, el)
	}

	for _, t := range tombstones {
		if t.IsWildcard() {
			oldByKey = map[string]any{}
			oldOrder = nil
			continue
		}
		if _, ok := oldByKey[t.ID]; ok {
			delete(oldByKey, t.ID)
			for i, k := range oldOrder {
				if k == t.ID {
					oldOrder = append(oldOrder[:i], oldOrder[i+1:]...)
					break
				}
			}
		}
	}

	merged := map[string]any{}
	order := append([]string(nil), oldOrder...)
	for k, v := range oldByKey {
		merged[k] = v
	}

	for _, v := range values {
		normalized, err := n.mergeProperty(nil, v)
		if err != nil {
			return nil, err
		}
		k := elementKey(v)
		if _, existed := merged[k]; !existed {
			order = append(order, k)
		}
		merged[k] = normalized
	}

	out := make([]any, 0, len(order))
	for _, k := range order {
		if v, ok := merged[k]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// elementKey identifies an array element for set-merge purposes: its
// id, else its reference id, else its canonical hash, else its string
// form (§4.8).
func elementKey(el any) string {
	if m, ok := el.(map[string]any); ok {
		if id, ok := m["id"].(string); ok && id != "" {
			return id
		}
	}
	if r, ok := ref.As(el); ok {
		return r.ID
	}
	tok, err := chash.Hash(el)
	if err == nil {
		return tok.String()
	}
	return fmt.Sprintf("%v", el)
}

// isIdentityOnly reports whether obj's only meaningful keys are "id",
// or "id"+"type" when type is UNTYPED (§4.8): such an object
// contributes no assertions, serving purely as a reference.
func isIdentityOnly(obj map[string]any, hasType bool) bool {
	for key := range obj {
		switch key {
		case "id":
			continue
		case "type":
			if hasType {
				if t, _ := obj["type"].(string); t != Untyped {
					return false
				}
			}
			continue
		default:
			return false
		}
	}
	return true
}

// resolveType implements §4.8's "more specific of existing and
// incoming" rule: UNTYPED on either side yields the other; two
// distinct concrete types is a TypeConflict.
func resolveType(existingType string, existed bool, incomingType string) (string, error) {
	if !existed || existingType == Untyped {
		return incomingType, nil
	}
	if incomingType == Untyped {
		return existingType, nil
	}
	if incomingType != existingType {
		return "", rferr.New(rferr.TypeConflict,
			fmt.Sprintf("entity has incompatible types %q and %q", existingType, incomingType))
	}
	return existingType, nil
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
