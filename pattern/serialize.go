package pattern

import (
	"fmt"

	"github.com/RelationalFabric/relational-fabric-sub000/ref"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
)

// Registry resolves a NamedTest's Name back to its function when
// parsing a serialized pattern (§4.7.2). A closure that was never
// registered under its name cannot round-trip: Parse returns
// rferr.InvalidPattern for it, which is the expected outcome for a
// pattern serialized purely for storage/display rather than replay.
type Registry map[string]func(map[string]any) bool

// Serialize converts a pattern tree into a plain JSON-compatible
// value: maps, slices, strings, numbers, bools, and nil. Structured
// nodes are tagged with a "$type" discriminator so Parse can rebuild
// the original shape; NamedTest serializes as its Name only, the
// function body is not and cannot be captured.
func Serialize(p any) (any, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case Null:
		return map[string]any{"$type": "null"}, nil
	case bool, int, int32, int64, float32, float64, string:
		return v, nil
	case ref.Ref:
		return map[string]any{"$type": "ref", "kind": v.Kind.String(), "id": v.ID}, nil
	case ObjectPattern:
		entries := make([]any, 0, len(v))
		for _, kv := range v {
			sub, err := Serialize(kv.Pattern)
			if err != nil {
				return nil, err
			}
			entries = append(entries, map[string]any{"key": kv.Key, "pattern": sub})
		}
		return map[string]any{"$type": "object", "entries": entries}, nil
	case ArrayPattern:
		items := make([]any, 0, len(v))
		for _, el := range v {
			sub, err := Serialize(el)
			if err != nil {
				return nil, err
			}
			items = append(items, sub)
		}
		return map[string]any{"$type": "array", "items": items}, nil
	case Modifier:
		children := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			sub, err := Serialize(c)
			if err != nil {
				return nil, err
			}
			children = append(children, sub)
		}
		return map[string]any{"$type": "modifier", "tag": string(v.Tag), "children": children}, nil
	case NamedTest:
		return map[string]any{"$type": "test", "name": v.Name}, nil
	default:
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("cannot serialize pattern of type %T", p))
	}
}

// Parse rebuilds a pattern tree from a value produced by Serialize.
// reg resolves NamedTest nodes back to their function; a name absent
// from reg fails with rferr.InvalidPattern.
func Parse(v any, reg Registry) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, int, int32, int64, float64, string:
		return val, nil
	case map[string]any:
		return parseTagged(val, reg)
	default:
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("cannot parse pattern from %T", v))
	}
}

func parseTagged(m map[string]any, reg Registry) (any, error) {
	tag, _ := m["$type"].(string)
	switch tag {
	case "null":
		return Null{}, nil
	case "ref":
		kind, _ := m["kind"].(string)
		id, _ := m["id"].(string)
		switch kind {
		case ref.KindTombstone.String():
			return ref.TombstoneRef(id), nil
		case ref.KindRetract.String():
			return ref.RetractRef(id), nil
		default:
			return ref.EntityRef(id), nil
		}
	case "object":
		rawEntries, _ := m["entries"].([]any)
		out := make(ObjectPattern, 0, len(rawEntries))
		for _, re := range rawEntries {
			em, ok := re.(map[string]any)
			if !ok {
				return nil, rferr.New(rferr.InvalidPattern, "malformed object pattern entry")
			}
			key, _ := em["key"].(string)
			sub, err := Parse(em["pattern"], reg)
			if err != nil {
				return nil, err
			}
			out = append(out, KV{Key: key, Pattern: sub})
		}
		return out, nil
	case "array":
		rawItems, _ := m["items"].([]any)
		out := make(ArrayPattern, 0, len(rawItems))
		for _, it := range rawItems {
			sub, err := Parse(it, reg)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		}
		return out, nil
	case "modifier":
		tagStr, _ := m["tag"].(string)
		rawChildren, _ := m["children"].([]any)
		children := make([]any, 0, len(rawChildren))
		for _, c := range rawChildren {
			sub, err := Parse(c, reg)
			if err != nil {
				return nil, err
			}
			children = append(children, sub)
		}
		return Modifier{Tag: ModTag(tagStr), Children: children}, nil
	case "test":
		name, _ := m["name"].(string)
		if reg == nil {
			return nil, rferr.New(rferr.InvalidPattern, "test pattern "+name+" requires a registry to parse")
		}
		fn, ok := reg[name]
		if !ok {
			return nil, rferr.New(rferr.InvalidPattern, "unregistered test pattern "+name)
		}
		return NamedTest{Name: name, Fn: fn}, nil
	default:
		return nil, rferr.New(rferr.InvalidPattern, fmt.Sprintf("unknown serialized pattern tag %q", tag))
	}
}
