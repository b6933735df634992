package store

// Snapshot returns a deep-enough copy of the store's state for a
// persist.Adaptor to serialize (§6's persisted layout: entity,
// version, type_by_id, basisT, tx_log). store intentionally does not
// import the persist package — callers bridge the two (cmd/relfab
// does) so persistence stays an external collaborator, per §9.
func (idx *Index) Snapshot() (entityByType map[string]map[string]map[string]any, version map[string]map[string]int, typeByID map[string]string, basisT int64, txLog []TxReport) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entityByType = make(map[string]map[string]map[string]any, len(idx.entityByType))
	for typ, byID := range idx.entityByType {
		copied := make(map[string]map[string]any, len(byID))
		for id, attrs := range byID {
			copied[id] = attrs
		}
		entityByType[typ] = copied
	}

	version = make(map[string]map[string]int, len(idx.version))
	for typ, byID := range idx.version {
		copied := make(map[string]int, len(byID))
		for id, v := range byID {
			copied[id] = v
		}
		version[typ] = copied
	}

	typeByID = make(map[string]string, len(idx.typeByID))
	for id, typ := range idx.typeByID {
		typeByID[id] = typ
	}

	return entityByType, version, typeByID, idx.basisT, append([]TxReport(nil), idx.txLog...)
}

// LoadSnapshot replaces the store's state wholesale, as when
// rehydrating from a persist.Adaptor.Load result. It does not notify
// observers or emit a TX report of its own; it is a direct state
// restore, not a transaction.
func (idx *Index) LoadSnapshot(entityByType map[string]map[string]map[string]any, version map[string]map[string]int, typeByID map[string]string, basisT int64, txLog []TxReport) {
	if entityByType == nil {
		entityByType = map[string]map[string]map[string]any{}
	}
	if version == nil {
		version = map[string]map[string]int{}
	}
	if typeByID == nil {
		typeByID = map[string]string{}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entityByType = entityByType
	idx.version = version
	idx.typeByID = typeByID
	idx.basisT = basisT
	idx.txLog = txLog
}
