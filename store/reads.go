package store

import (
	"github.com/RelationalFabric/relational-fabric-sub000/query"
	"github.com/RelationalFabric/relational-fabric-sub000/ref"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
	"github.com/RelationalFabric/relational-fabric-sub000/search"
)

// ReadView is a wrapped, immutable view of one stored entity (§4.10):
// reference attributes resolve transparently (including nested
// traversal) up to the store's configured depth cap, internal opaque
// values (timestamps, etc.) pass through untouched, and writes are
// rejected.
type ReadView struct {
	idx   *Index
	typ   string
	id    string
	depth int
}

func (v *ReadView) ID() string   { return v.id }
func (v *ReadView) Type() string { return v.typ }

// Get resolves one attribute, transparently following an entity
// reference into a nested ReadView.
func (v *ReadView) Get(key string) (any, bool) {
	attrs, ok := v.idx.GetAttrs(v.typ, v.id)
	if !ok {
		return nil, false
	}
	raw, ok := attrs[key]
	if !ok {
		return nil, false
	}
	return v.resolve(raw, v.depth+1), true
}

// Raw returns the stored attributes with references left unresolved.
func (v *ReadView) Raw() (map[string]any, bool) {
	return v.idx.GetAttrs(v.typ, v.id)
}

// Set always fails: a ReadView is immutable from the outside (§4.10).
func (v *ReadView) Set(string, any) error {
	return rferr.New(rferr.InvalidArgument, "read view is immutable")
}

func (v *ReadView) resolve(val any, depth int) any {
	if depth > v.idx.maxReadDepth {
		return val
	}
	switch x := val.(type) {
	case ref.Ref:
		if !x.IsEntity() {
			return x
		}
		typ, ok := v.idx.ResolveType(x.ID)
		if !ok {
			return nil
		}
		return &ReadView{idx: v.idx, typ: typ, id: x.ID, depth: depth}
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = v.resolve(el, depth+1)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = v.resolve(vv, depth+1)
		}
		return out
	default:
		// Scalars and opaque internal values (time.Time, etc.) pass
		// through untouched.
		return x
	}
}

// Get returns a wrapped view of the stored entity at id. If typ is
// empty, it is resolved via the type_by_id index.
func (idx *Index) Get(id, typ string) (*ReadView, bool) {
	if typ == "" {
		t, ok := idx.ResolveType(id)
		if !ok {
			return nil, false
		}
		typ = t
	}
	if _, ok := idx.GetAttrs(typ, id); !ok {
		return nil, false
	}
	return &ReadView{idx: idx, typ: typ, id: id}, true
}

// GetMany resolves a batch of ids, skipping any that aren't found.
func (idx *Index) GetMany(ids []string, typ string) []*ReadView {
	out := make([]*ReadView, 0, len(ids))
	for _, id := range ids {
		if v, ok := idx.Get(id, typ); ok {
			out = append(out, v)
		}
	}
	return out
}

// GetReified walks path across references starting from start,
// returning the final value or (nil, false) if any step is absent.
func GetReified(start *ReadView, path []string) (any, bool) {
	var cur any = start
	for _, step := range path {
		rv, ok := cur.(*ReadView)
		if !ok {
			return nil, false
		}
		val, ok := rv.Get(step)
		if !ok {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

// Filter linear-scans entities of typ (or every type, if typ is
// empty), returning wrapped views of those matching predicate.
func (idx *Index) Filter(predicate func(attrs map[string]any) bool, typ string) []*ReadView {
	idx.mu.Lock()
	type hit struct{ typ, id string }
	var hits []hit
	if typ != "" {
		for id, attrs := range idx.entityByType[typ] {
			if predicate(attrs) {
				hits = append(hits, hit{typ, id})
			}
		}
	} else {
		for t, byID := range idx.entityByType {
			for id, attrs := range byID {
				if predicate(attrs) {
					hits = append(hits, hit{t, id})
				}
			}
		}
	}
	idx.mu.Unlock()

	out := make([]*ReadView, 0, len(hits))
	for _, h := range hits {
		out = append(out, &ReadView{idx: idx, typ: h.typ, id: h.id})
	}
	return out
}

// Search routes to the store's external search-index adaptor and
// wraps the resulting hits the same way other reads are wrapped.
func (idx *Index) Search(queryText string, opts search.Options) ([]*ReadView, error) {
	hits, err := idx.search.Query(queryText, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*ReadView, 0, len(hits))
	for _, h := range hits {
		out = append(out, &ReadView{idx: idx, typ: h.Type, id: h.ID})
	}
	return out, nil
}

// GetQuery returns a function that executes a compiled query against a
// materialized snapshot of the store's entities of typ (or every type,
// if typ is empty) — §4.10's "execute against a materialized snapshot"
// semantics.
func (idx *Index) GetQuery(typ string) func(compiled *query.Compiled, args []any) (query.ResultSet, error) {
	return func(compiled *query.Compiled, args []any) (query.ResultSet, error) {
		return query.Run(compiled, idx.snapshot(typ), args, idx.tracer)
	}
}

func (idx *Index) snapshot(typ string) []any {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []any
	emit := func(t, id string, attrs map[string]any) {
		row := make(map[string]any, len(attrs)+2)
		for k, v := range attrs {
			row[k] = v
		}
		row["id"] = id
		row["type"] = t
		out = append(out, row)
	}

	if typ != "" {
		for id, attrs := range idx.entityByType[typ] {
			emit(typ, id, attrs)
		}
		return out
	}
	for t, byID := range idx.entityByType {
		for id, attrs := range byID {
			emit(t, id, attrs)
		}
	}
	return out
}
