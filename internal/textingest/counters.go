package textingest

import "sync/atomic"

// Counters tracks session-cumulative ingestion statistics. Fields are
// individually atomic rather than guarded by one mutex so concurrent
// documents sharing an Ingester never block each other just to bump a
// counter.
type Counters struct {
	atomsNew        atomic.Int64
	compositionsNew atomic.Int64
	relationsNew    atomic.Int64
	originalBytes   atomic.Int64
	storedBytes     atomic.Int64
	batchesDropped  atomic.Int64
}

// Snapshot is a point-in-time, non-atomic copy of Counters for returning to
// a caller.
type Snapshot struct {
	AtomsNew        int64
	CompositionsNew int64
	RelationsNew    int64
	OriginalBytes   int64
	StoredBytes     int64
	BatchesDropped  int64
}

// Snapshot reads every counter. Individual fields may be momentarily
// inconsistent with each other under concurrent ingestion, which is
// acceptable for a progress report.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		AtomsNew:        c.atomsNew.Load(),
		CompositionsNew: c.compositionsNew.Load(),
		RelationsNew:    c.relationsNew.Load(),
		OriginalBytes:   c.originalBytes.Load(),
		StoredBytes:     c.storedBytes.Load(),
		BatchesDropped:  c.batchesDropped.Load(),
	}
}
