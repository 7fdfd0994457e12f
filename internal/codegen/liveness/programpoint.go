// Package liveness implements program-point numbering, per-block dataflow
// for live-in/live-out sets, and per-register live-range construction over
// a lowered mir.Func. The dataflow step's phi-predecessor-specific live-out
// propagation is one departure from textbook per-block liveness: a phi's
// incoming value is only live-out of the specific predecessor edge it names,
// not of every predecessor uniformly.
package liveness

// Step is the gap a block's instructions are spaced by when first numbered,
// leaving room for instructions a later pass (e.g. a spiller) inserts
// without forcing a renumber of the whole block. A driver can override it
// before calling Compute to trade slot density for headroom.
var Step = 16

// ProgramPoint identifies one instruction's position as (block index in
// layout order, intra-block slot).
type ProgramPoint struct {
	Block int
	Slot  int
}

// Less reports whether p precedes q in program order.
func (p ProgramPoint) Less(q ProgramPoint) bool {
	if p.Block != q.Block {
		return p.Block < q.Block
	}
	return p.Slot < q.Slot
}

// Between returns the midpoint slot between a and b if one exists, or
// (ProgramPoint{}, false) if a and b are adjacent (no integer slot between
// them) or not in the same block.
func Between(a, b ProgramPoint) (ProgramPoint, bool) {
	if a.Block != b.Block || !a.Less(b) {
		return ProgramPoint{}, false
	}
	mid := a.Slot + (b.Slot-a.Slot)/2
	if mid == a.Slot {
		return ProgramPoint{}, false
	}
	return ProgramPoint{Block: a.Block, Slot: mid}, true
}
