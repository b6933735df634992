// Package search defines the external search-index collaborator the
// store delegates to (§4.10, §9's "reactivity/search-index" redesign
// note): the core never embeds a search engine, only a pluggable
// Adaptor.
package search

import (
	"sort"
	"strings"
)

// Hit is one search result: the matched entity's id/type and an
// implementation-defined relevance score.
type Hit struct {
	ID    string
	Type  string
	Score float64
}

// Options narrows a search call (§4.10's search(query, type?, limit,
// offset, filter, sort)).
type Options struct {
	Type   string
	Limit  int
	Offset int
	Filter func(attrs map[string]any) bool
	Sort   func(a, b Hit) bool
}

// Adaptor is the external search-index collaborator. The store keeps
// it in sync on every upsert/retract (§5's shared-resource policy) and
// routes search(...) reads to it.
type Adaptor interface {
	Index(id, typ string, attrs map[string]any) error
	Remove(id, typ string) error
	Query(query string, opts Options) ([]Hit, error)
}

// LinearAdaptor is the trivial default: a full in-memory substring
// scan over indexed entities. Adequate for small stores and tests;
// production deployments attach a real search adaptor instead.
type LinearAdaptor struct {
	entries map[string]linearEntry
}

type linearEntry struct {
	id, typ string
	attrs   map[string]any
	text    string
}

// NewLinearAdaptor constructs an empty LinearAdaptor.
func NewLinearAdaptor() *LinearAdaptor {
	return &LinearAdaptor{entries: map[string]linearEntry{}}
}

func key(id, typ string) string { return typ + "/" + id }

func (a *LinearAdaptor) Index(id, typ string, attrs map[string]any) error {
	if a.entries == nil {
		a.entries = map[string]linearEntry{}
	}
	a.entries[key(id, typ)] = linearEntry{id: id, typ: typ, attrs: attrs, text: flatten(attrs)}
	return nil
}

func (a *LinearAdaptor) Remove(id, typ string) error {
	delete(a.entries, key(id, typ))
	return nil
}

func (a *LinearAdaptor) Query(query string, opts Options) ([]Hit, error) {
	var hits []Hit
	for _, e := range a.entries {
		if opts.Type != "" && e.typ != opts.Type {
			continue
		}
		if opts.Filter != nil && !opts.Filter(e.attrs) {
			continue
		}
		if query != "" && !strings.Contains(e.text, query) {
			continue
		}
		hits = append(hits, Hit{ID: e.id, Type: e.typ})
	}
	if opts.Sort != nil {
		sort.Slice(hits, func(i, j int) bool { return opts.Sort(hits[i], hits[j]) })
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(hits) {
			return []Hit{}, nil
		}
		hits = hits[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(hits) {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func flatten(attrs map[string]any) string {
	var out string
	for _, v := range attrs {
		if s, ok := v.(string); ok {
			out += s + " "
		}
	}
	return out
}

