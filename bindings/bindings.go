// Package bindings implements the multiset of variable bindings the
// matcher and query engine pass around (§4.3): a content-addressed
// container keyed by canonical hash so structurally equal binding
// records collapse into a single entry with an incremented count.
//
// The shape mirrors the teacher's executor.Relations (a set of tuples
// keyed for dedup and join), generalized from fixed-arity datalog
// tuples to open variable->value maps.
package bindings

import (
	"golang.org/x/exp/slices"

	"github.com/RelationalFabric/relational-fabric-sub000/chash"
	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

// Var is a query variable name. Like the teacher's query.Symbol, a Var
// is "a variable" iff it starts with '?'.
type Var string

func (v Var) IsVariable() bool { return len(v) > 0 && v[0] == '?' }

// Strip returns the variable name without its leading '?', the
// convention test predicates receive their keys in (§4.5.3).
func (v Var) Strip() string {
	if v.IsVariable() {
		return string(v[1:])
	}
	return string(v)
}

// Record is one binding: variable name to bound value.
type Record map[Var]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stripped returns a copy keyed without the leading '?', the form
// pattern.NamedTest predicates receive (§4.5.3).
func (r Record) Stripped() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k.Strip()] = v
	}
	return out
}

func recordHash(r Record) chash.Token {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[string(k)] = v
	}
	return chash.MustHash(m)
}

type entry struct {
	record Record
	count  int
}

// Bindings is a multiset of Records keyed by canonical hash. The zero
// value is not usable; construct with New, From, or FromArray.
type Bindings struct {
	order []chash.Token
	by    map[chash.Token]*entry
}

func New() *Bindings {
	return &Bindings{by: make(map[chash.Token]*entry)}
}

func From(rec Record) *Bindings {
	b := New()
	b.AddN(rec, 1)
	return b
}

func FromArray(recs []Record) *Bindings {
	b := New()
	for _, r := range recs {
		b.AddN(r, 1)
	}
	return b
}

// Add inserts rec, or increments its count if an equal record is
// already present. Mutates b in place and returns b for chaining.
func (b *Bindings) Add(rec Record) *Bindings {
	b.AddN(rec, 1)
	return b
}

// AddN is Add with an explicit replication count, used internally when
// an operation must preserve multiplicities (e.g. FlatMap).
func (b *Bindings) AddN(rec Record, n int) *Bindings {
	if n <= 0 {
		return b
	}
	tok := recordHash(rec)
	if e, ok := b.by[tok]; ok {
		e.count += n
		return b
	}
	b.by[tok] = &entry{record: rec, count: n}
	b.order = append(b.order, tok)
	return b
}

// With is the functional variant of Add: returns a new Bindings with
// rec added, leaving b unmodified.
func (b *Bindings) With(rec Record) *Bindings {
	return b.Clone().Add(rec)
}

// Without returns a new Bindings with rec's entry removed entirely
// (regardless of its count).
func (b *Bindings) Without(rec Record) *Bindings {
	out := b.Clone()
	tok := recordHash(rec)
	if _, ok := out.by[tok]; ok {
		delete(out.by, tok)
		for i, t := range out.order {
			if t == tok {
				out.order = append(out.order[:i], out.order[i+1:]...)
				break
			}
		}
	}
	return out
}

// Clone returns a deep-enough copy (records themselves are not
// mutated by any Bindings method, so a shallow record copy suffices).
func (b *Bindings) Clone() *Bindings {
	out := New()
	out.order = append([]chash.Token(nil), b.order...)
	for tok, e := range b.by {
		out.by[tok] = &entry{record: e.record, count: e.count}
	}
	return out
}

// Merge sums counts per canonical hash across b and other, returning a
// new Bindings.
func (b *Bindings) Merge(other *Bindings) *Bindings {
	out := b.Clone()
	if other == nil {
		return out
	}
	for _, tok := range other.order {
		e := other.by[tok]
		out.AddN(e.record, e.count)
	}
	return out
}

// IsEmpty reports whether the bindings set has no records at all.
func (b *Bindings) IsEmpty() bool {
	return b == nil || len(b.order) == 0
}

// Len returns the number of unique records (not counting multiplicity).
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// Entry is one unique record paired with its multiplicity.
type Entry struct {
	Record Record
	Count  int
}

// Entries iterates unique records in stable insertion order, each
// paired with its replication count.
func (b *Bindings) Entries() []Entry {
	if b == nil {
		return nil
	}
	out := make([]Entry, 0, len(b.order))
	for _, tok := range b.order {
		e := b.by[tok]
		out = append(out, Entry{Record: e.record, Count: e.count})
	}
	return out
}

// ToArray returns one Record per unique entry (multiplicity ignored).
func (b *Bindings) ToArray() []Record {
	entries := b.Entries()
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.Record
	}
	return out
}

// Reduce folds fn over each unique record once, in stable order.
func (b *Bindings) Reduce(fn func(acc any, rec Record, count int) any, init any) any {
	acc := init
	for _, e := range b.Entries() {
		acc = fn(acc, e.Record, e.Count)
	}
	return acc
}

// Map transforms every unique record, preserving its count.
func (b *Bindings) Map(fn func(Record, int) Record) *Bindings {
	out := New()
	for _, e := range b.Entries() {
		out.AddN(fn(e.Record, e.Count), e.Count)
	}
	return out
}

// FlatMap expands every unique record into zero or more records. Each
// produced record inherits the source record's count, since it still
// represents that many underlying derivations (the multiplicity
// semantics consumed by §4.7.1's aggregates).
func (b *Bindings) FlatMap(fn func(Record, int) []Record) *Bindings {
	out := New()
	for _, e := range b.Entries() {
		for _, rec := range fn(e.Record, e.Count) {
			out.AddN(rec, e.Count)
		}
	}
	return out
}

// Group is one partition produced by GroupBy: the projected key values
// for the grouping variables, and the sub-Bindings of full records
// that agreed on them.
type Group struct {
	Key      Record
	Bindings *Bindings
}

// GroupBy partitions b into groups whose records agree on the values
// of vars, using the canonical hash of the projected tuple as the
// partition key. Group order follows first occurrence. tracer (may be
// nil) receives a trace.BindingsGroupBy event reporting the input
// record count and the resulting group count.
func (b *Bindings) GroupBy(vars []Var, tracer *trace.Collector) []Group {
	order := []chash.Token{}
	groups := map[chash.Token]*Group{}

	for _, e := range b.Entries() {
		key := make(Record, len(vars))
		for _, v := range vars {
			key[v] = e.Record[v]
		}
		tok := recordHash(key)
		g, ok := groups[tok]
		if !ok {
			g = &Group{Key: key, Bindings: New()}
			groups[tok] = g
			order = append(order, tok)
		}
		g.Bindings.AddN(e.Record, e.Count)
	}

	out := make([]Group, 0, len(order))
	for _, tok := range order {
		out = append(out, *groups[tok])
	}

	tracer.Emit(trace.BindingsGroupBy, map[string]any{
		"vars":    vars,
		"records": b.Len(),
		"groups":  len(out),
	})

	return out
}

// Values returns the (possibly duplicated, per-count) values bound to
// v across every record, in stable order. Used by aggregates whose
// semantics respect binding multiplicity (e.g. count, sum).
func (b *Bindings) Values(v Var) []any {
	out := []any{}
	for _, e := range b.Entries() {
		val, ok := e.Record[v]
		if !ok {
			continue
		}
		for i := 0; i < e.Count; i++ {
			out = append(out, val)
		}
	}
	return out
}

// DistinctValues returns the distinct values bound to v, sorted by
// canonical hash for determinism.
func (b *Bindings) DistinctValues(v Var) []any {
	seen := map[chash.Token]any{}
	order := []chash.Token{}
	for _, e := range b.Entries() {
		val, ok := e.Record[v]
		if !ok {
			continue
		}
		tok := chash.MustHash(val)
		if _, ok := seen[tok]; !ok {
			seen[tok] = val
			order = append(order, tok)
		}
	}
	slices.SortFunc(order, func(a, b chash.Token) bool { return a.Less(b) })
	out := make([]any, len(order))
	for i, tok := range order {
		out[i] = seen[tok]
	}
	return out
}
