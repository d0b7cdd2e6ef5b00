package textingest

import "github.com/hartonomous/substrate/internal/record"

// estimateStoredBytes approximates the on-disk footprint of one batch:
// 16 bytes per identity column, 32 bytes per centroid (4 float64), the raw
// trajectory blob, 8 bytes per 64-bit numeric column, 4 bytes per 32-bit
// ordinal/occurrence column, and 1 byte per boolean. Good enough for a
// progress counter; not a substitute for the store's actual row sizes.
func estimateStoredBytes(b record.SubstrateBatch) int64 {
	var n int64
	for _, p := range b.Physicalities {
		n += 16 + 32 + int64(len(p.Trajectory)*32) + 16
	}
	n += int64(len(b.Compositions)) * (16 + 16)
	n += int64(len(b.CompositionSequences)) * (16 + 16 + 16 + 8)
	n += int64(len(b.Relations)) * (16 + 16)
	n += int64(len(b.RelationSequences)) * (16 + 16 + 16 + 8)
	n += int64(len(b.RelationRatings)) * (16 + 8 + 8 + 8)
	n += int64(len(b.RelationEvidence)) * (16 + 16 + 16 + 1 + 8 + 8)
	return n
}
