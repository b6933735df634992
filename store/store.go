// Package store implements the entity store index and its transaction
// layer (§4.9, §4.10): normalized type/id-keyed entity maps, a
// monotonic logical clock (basisT), a transaction log, and batched
// change accumulation with deferred observer notification.
package store

import (
	"sync"
	"time"

	"github.com/RelationalFabric/relational-fabric-sub000/entity"
	"github.com/RelationalFabric/relational-fabric-sub000/logging"
	"github.com/RelationalFabric/relational-fabric-sub000/ref"
	"github.com/RelationalFabric/relational-fabric-sub000/rferr"
	"github.com/RelationalFabric/relational-fabric-sub000/search"
	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

// Kind is a bitset of the operation kinds a TX report covers.
type Kind int

const (
	KindUpsert Kind = 1 << iota
	KindRetract
)

func (k Kind) Has(other Kind) bool { return k&other != 0 }

// TxDatum is one change within a transaction: the operation performed
// and the entity snapshot it produced.
type TxDatum struct {
	Op     string // "upsert" or "retract"
	Entity entity.Change
}

// TxMetadata carries caller-context for a TX report. Stack is optional
// (spec's `stack?`) and reserved for a caller-supplied trace/call-site
// string; commit itself never populates it.
type TxMetadata struct {
	Timestamp time.Time
	Stack     string
}

// TxReport is the persisted structure describing one transaction (§6).
type TxReport struct {
	BasisT   int64
	Kind     Kind
	TxData   []TxDatum
	Metadata TxMetadata
}

// Merge combines two TX reports into one whose Kind is their union and
// whose TxData is their concatenation, keeping the later BasisT.
func (r TxReport) Merge(other TxReport) TxReport {
	basis := r.BasisT
	if other.BasisT > basis {
		basis = other.BasisT
	}
	return TxReport{
		BasisT:   basis,
		Kind:     r.Kind | other.Kind,
		TxData:   append(append([]TxDatum(nil), r.TxData...), other.TxData...),
		Metadata: r.Metadata,
	}
}

// Options configures a new Index.
type Options struct {
	Logger       logging.Logger
	Tracer       *trace.Collector
	Search       search.Adaptor
	MaxReadDepth int
}

// Index is the entity store: type/id-keyed entity and version maps, a
// type_by_id index, basisT, and a transaction log. The zero value is
// not usable; construct with New.
type Index struct {
	mu sync.Mutex

	entityByType map[string]map[string]map[string]any
	version      map[string]map[string]int
	typeByID     map[string]string

	basisT int64
	cond   *sync.Cond

	txLog []TxReport

	batchDepth     int
	pendingReports []TxReport

	logger       logging.Logger
	tracer       *trace.Collector
	search       search.Adaptor
	maxReadDepth int
}

const defaultMaxReadDepth = 64

// New constructs an empty Index.
func New(opts Options) *Index {
	idx := &Index{
		entityByType: map[string]map[string]map[string]any{},
		version:      map[string]map[string]int{},
		typeByID:     map[string]string{},
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		search:       opts.Search,
		maxReadDepth: opts.MaxReadDepth,
	}
	if idx.logger == nil {
		idx.logger = logging.Noop{}
	}
	if idx.search == nil {
		idx.search = search.NewLinearAdaptor()
	}
	if idx.maxReadDepth <= 0 {
		idx.maxReadDepth = defaultMaxReadDepth
	}
	idx.cond = sync.NewCond(&idx.mu)
	return idx
}

// BasisT returns the store's current logical clock value.
func (idx *Index) BasisT() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.basisT
}

// IsReady reports whether the store's observable basisT has reached
// target.
func (idx *Index) IsReady(target int64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.basisT >= target
}

// After blocks the caller until basisT reaches target (§5's only
// suspension points besides UntilReady).
func (idx *Index) After(target int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for idx.basisT < target {
		idx.cond.Wait()
	}
}

// UntilReady blocks until any pending batch commits (basisT advances
// at least once from its value at call time).
func (idx *Index) UntilReady() {
	idx.After(idx.BasisT() + 1)
}

// TxLog returns a copy of the transaction history.
func (idx *Index) TxLog() []TxReport {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return append([]TxReport(nil), idx.txLog...)
}

// Reset clears all state back to a fresh, empty store.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entityByType = map[string]map[string]map[string]any{}
	idx.version = map[string]map[string]int{}
	idx.typeByID = map[string]string{}
	idx.basisT = 0
	idx.txLog = nil
	idx.batchDepth = 0
	idx.pendingReports = nil
}

// ResolveType implements entity.StoreView.
func (idx *Index) ResolveType(id string) (string, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	t, ok := idx.typeByID[id]
	return t, ok
}

// GetAttrs implements entity.StoreView.
func (idx *Index) GetAttrs(typ, id string) (map[string]any, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	byID, ok := idx.entityByType[typ]
	if !ok {
		return nil, false
	}
	attrs, ok := byID[id]
	return attrs, ok
}

// applyChange writes one entity.Change into the indexes, bumping its
// version and the type_by_id entry. Caller must hold idx.mu.
func (idx *Index) applyChange(c entity.Change) {
	if idx.entityByType[c.Type] == nil {
		idx.entityByType[c.Type] = map[string]map[string]any{}
	}
	if idx.version[c.Type] == nil {
		idx.version[c.Type] = map[string]int{}
	}
	idx.entityByType[c.Type][c.ID] = c.Attrs
	idx.version[c.Type][c.ID]++
	idx.typeByID[c.ID] = c.Type
}

// commit appends report to the log, advances basisT if the operation
// produced any changes, and (unless inside a batch) makes the change
// observable immediately.
func (idx *Index) commit(kind Kind, changes []entity.Change, op string) TxReport {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	report := TxReport{
		Kind:     kind,
		Metadata: TxMetadata{Timestamp: time.Now()},
	}
	for _, c := range changes {
		idx.applyChange(c)
		report.TxData = append(report.TxData, TxDatum{Op: op, Entity: c})
		// §5: the search index is kept in sync with every upsert/retract
		// so readers never observe it desynchronized from the entity map.
		_ = idx.search.Index(c.ID, c.Type, c.Attrs)
	}

	if len(changes) > 0 {
		idx.basisT++
	}
	report.BasisT = idx.basisT

	idx.txLog = append(idx.txLog, report)

	if idx.batchDepth > 0 {
		idx.pendingReports = append(idx.pendingReports, report)
	} else {
		idx.notify(report)
	}
	return report
}

// notify emits the observable trace event for a committed report.
// Caller must hold idx.mu.
func (idx *Index) notify(report TxReport) {
	if idx.tracer != nil {
		idx.tracer.Emit(trace.StoreTxCommitted, map[string]any{
			"basisT": report.BasisT,
			"kind":   report.Kind,
		})
	}
	idx.cond.Broadcast()
}

// BeginBatch increments the batch depth; while depth > 0, commits
// still append to the log and mutate indexes immediately (so reads
// within the batch observe in-progress state, per §5), but external
// notification is deferred. The returned function decrements depth;
// once it returns to zero, every report accumulated during the batch
// is emitted as a single coalesced notification.
func (idx *Index) BeginBatch(label string) func() {
	idx.mu.Lock()
	idx.batchDepth++
	idx.mu.Unlock()

	if idx.tracer != nil {
		idx.tracer.Emit(trace.StoreBatchBegin, map[string]any{"label": label})
	}

	return func() {
		idx.mu.Lock()
		idx.batchDepth--
		if idx.batchDepth < 0 {
			idx.batchDepth = 0
		}
		done := idx.batchDepth == 0
		var pending []TxReport
		if done {
			pending = idx.pendingReports
			idx.pendingReports = nil
		}
		idx.mu.Unlock()

		if !done {
			return
		}
		if len(pending) > 0 {
			coalesced := pending[0]
			for _, r := range pending[1:] {
				coalesced = coalesced.Merge(r)
			}
			idx.mu.Lock()
			idx.notify(coalesced)
			idx.mu.Unlock()
		}
		if idx.tracer != nil {
			idx.tracer.Emit(trace.StoreBatchEnd, map[string]any{"label": label})
		}
	}
}

// Add normalizes and upserts entities, each of which must carry both
// id and type at its root (§4.9).
func (idx *Index) Add(entities []map[string]any) (TxReport, error) {
	var all []entity.Change
	for _, e := range entities {
		changes, err := entity.Normalize(e, idx, idx.logger)
		if err != nil {
			return TxReport{}, err
		}
		all = append(all, changes...)
	}
	return idx.commit(KindUpsert, all, "upsert"), nil
}

// Remove deletes the given root entities (each a recognized id+type
// pair) from the indexes, and cascades: every remaining entity's
// references to a removed id are cleaned (array elements removed,
// scalar references nulled), each producing an additional change in
// the same report (§4.9's remove semantics).
func (idx *Index) Remove(entities []map[string]any) (TxReport, error) {
	idx.mu.Lock()
	removedIDs := map[string]bool{}
	for _, e := range entities {
		id, _ := e["id"].(string)
		typ, _ := e["type"].(string)
		if id == "" || typ == "" {
			idx.mu.Unlock()
			return TxReport{}, rferr.New(rferr.MissingId, "remove requires id and type")
		}
		if byID, ok := idx.entityByType[typ]; ok {
			delete(byID, id)
		}
		delete(idx.typeByID, id)
		removedIDs[id] = true
		_ = idx.search.Remove(id, typ)
	}

	var cascaded []entity.Change
	for typ, byID := range idx.entityByType {
		for id, attrs := range byID {
			newAttrs, changed := cleanReferences(attrs, removedIDs)
			if changed {
				byID[id] = newAttrs
				cascaded = append(cascaded, entity.Change{ID: id, Type: typ, Attrs: newAttrs})
			}
		}
	}
	idx.mu.Unlock()

	return idx.commit(KindRetract, cascaded, "upsert"), nil
}

// cleanReferences scans attrs for references to removedIDs, compacting
// arrays and nulling scalar reference attributes (§4.9).
func cleanReferences(attrs map[string]any, removedIDs map[string]bool) (map[string]any, bool) {
	changed := false
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case ref.Ref:
			if val.IsEntity() && removedIDs[val.ID] {
				changed = true
				continue
			}
			out[k] = v
		case []any:
			var filtered []any
			arrChanged := false
			for _, el := range val {
				if r, ok := ref.As(el); ok && r.IsEntity() && removedIDs[r.ID] {
					arrChanged = true
					continue
				}
				filtered = append(filtered, el)
			}
			if arrChanged {
				changed = true
			}
			out[k] = filtered
		default:
			out[k] = v
		}
	}
	return out, changed
}

// Transact applies a mixed list of entities and retract_ref(id) tokens
// (§4.9): retract_ref(id) tokens are collected, rewritten in-tree to
// tombstone_ref(id), and removed; the rewritten entities are then
// added. retract_ref("*") is rejected as InvalidArgument.
func (idx *Index) Transact(ops []any) (TxReport, error) {
	var retractIDs []string
	var entities []map[string]any

	for _, op := range ops {
		if r, ok := ref.As(op); ok && r.IsRetract() {
			if r.IsWildcard() {
				return TxReport{}, rferr.New(rferr.InvalidArgument, "retract_ref(\"*\") is not a valid transaction op")
			}
			retractIDs = append(retractIDs, r.ID)
			continue
		}
		e, ok := op.(map[string]any)
		if !ok {
			return TxReport{}, rferr.New(rferr.InvalidArgument, "transact op must be an entity or retract_ref")
		}
		entities = append(entities, rewriteRetracts(e))
	}

	var merged TxReport
	hasReport := false

	if len(retractIDs) > 0 {
		var removeTargets []map[string]any
		idx.mu.Lock()
		for _, id := range retractIDs {
			if typ, ok := idx.typeByID[id]; ok {
				removeTargets = append(removeTargets, map[string]any{"id": id, "type": typ})
			}
		}
		idx.mu.Unlock()
		if len(removeTargets) > 0 {
			r, err := idx.Remove(removeTargets)
			if err != nil {
				return TxReport{}, err
			}
			merged, hasReport = r, true
		}
	}

	if len(entities) > 0 {
		r, err := idx.Add(entities)
		if err != nil {
			return TxReport{}, err
		}
		if hasReport {
			merged = merged.Merge(r)
		} else {
			merged, hasReport = r, true
		}
	}

	return merged, nil
}

// rewriteRetracts walks e depth-first, replacing any retract_ref
// nested in attribute position with the equivalent tombstone_ref
// (§4.9's transact rewrite rule for nested retraction markers).
func rewriteRetracts(e map[string]any) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = rewriteRetractValue(v)
	}
	return out
}

func rewriteRetractValue(v any) any {
	switch val := v.(type) {
	case ref.Ref:
		if val.IsRetract() {
			return ref.TombstoneRef(val.ID)
		}
		return val
	case map[string]any:
		return rewriteRetracts(val)
	case []any:
		out := make([]any, len(val))
		for i, el := range val {
			out[i] = rewriteRetractValue(el)
		}
		return out
	default:
		return v
	}
}
