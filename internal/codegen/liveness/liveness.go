package liveness

import (
	"github.com/maekawatoshiki/vicis-sub000/internal/arena"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/diag"
)

// RegUnit canonicalises a physical register to the unit liveness should
// track, collapsing aliased sub-registers (e.g. al/eax/rax) to one value.
// It is supplied by the owning ISA package (amd64.ToRegUnit) rather than
// imported directly, so this package stays generic over any target's
// register file.
type RegUnit func(mir.RealReg) mir.RealReg

// vregSet is the per-block register-set shape def(B)/used_in(B)/live_in(B)/
// live_out(B) all share; built on internal/arena's generic id-Set rather
// than a bare map[mir.VReg]bool.
type vregSet = arena.Set[mir.VReg]

// Liveness holds the analysis results for one mir.Func: per-block
// def/used-in/live-in/live-out sets and the per-register live ranges built
// from them.
type Liveness struct {
	fn        *mir.Func
	toUnit    RegUnit
	phiOpcode uint16

	succ map[mir.BlockID][]mir.BlockID

	def     map[mir.BlockID]vregSet
	usedIn  map[mir.BlockID]vregSet
	liveIn  map[mir.BlockID]vregSet
	liveOut map[mir.BlockID]vregSet

	pointOf map[mir.InstID]ProgramPoint
	ranges  map[mir.VReg]*LiveRange
}

// Compute runs the full analysis over fn: program-point numbering, per-block
// dataflow to a fixed point, and live-range construction. phiOpcode
// identifies the target's preserved Phi opcode so
// the phi predecessor-specific live-out rule can be applied without this
// package depending on a concrete ISA package.
func Compute(fn *mir.Func, toUnit RegUnit, phiOpcode uint16) *Liveness {
	lv := &Liveness{
		fn:        fn,
		toUnit:    toUnit,
		phiOpcode: phiOpcode,
		def:       make(map[mir.BlockID]vregSet),
		usedIn:    make(map[mir.BlockID]vregSet),
		liveIn:    make(map[mir.BlockID]vregSet),
		liveOut:   make(map[mir.BlockID]vregSet),
		pointOf:   make(map[mir.InstID]ProgramPoint),
		ranges:    make(map[mir.VReg]*LiveRange),
	}
	log := diag.Func("liveness", fn.Name)
	log.Debug().Msg("liveness started")
	lv.computeSuccessors()
	lv.computeDefUse()
	lv.computeInOut()
	lv.buildRanges()
	log.Debug().Int("ranges", len(lv.ranges)).Msg("liveness finished")
	return lv
}

// unit canonicalises v to its liveness-tracked identity: physical registers
// (regardless of which VRegID was used to mint that particular reference)
// collapse to one key per RealReg unit; virtual registers are their own key.
func (lv *Liveness) unit(v mir.VReg) mir.VReg {
	if v.Assigned() {
		return mir.VRegInvalid.WithRealReg(lv.toUnit(v.RealReg()))
	}
	return v
}

// computeSuccessors derives each block's successors from DataBlock operands
// on its non-phi instructions (a phi's DataBlock operands name predecessors,
// not branch targets, and must be excluded).
func (lv *Liveness) computeSuccessors() {
	lv.succ = make(map[mir.BlockID][]mir.BlockID)
	for _, bid := range lv.fn.Blocks() {
		var succs []mir.BlockID
		for _, iid := range lv.fn.InstsOf(bid) {
			inst := lv.fn.Instr(iid)
			if inst.Opcode == lv.phiOpcode {
				continue
			}
			for _, o := range inst.Operands {
				if o.Kind == mir.DataBlock {
					succs = append(succs, o.Block)
				}
			}
		}
		lv.succ[bid] = succs
	}
}

// computeDefUse computes, per block, the set of registers it defines and
// the set it uses before any local def (upward-exposed uses): def(B) and
// used_in(B). A phi only counts as a def of its destination
// here; its incoming operands are handled by computeLiveOut's predecessor-
// specific propagation instead.
func (lv *Liveness) computeDefUse() {
	for _, bid := range lv.fn.Blocks() {
		defSet := make(vregSet)
		used := make(vregSet)
		for _, iid := range lv.fn.InstsOf(bid) {
			inst := lv.fn.Instr(iid)
			if inst.Opcode == lv.phiOpcode {
				for _, idx := range inst.Outputs() {
					if o := inst.Operands[idx]; o.Kind == mir.DataVReg {
						defSet.Add(lv.unit(o.Reg))
					}
				}
				continue
			}
			for _, idx := range inst.Inputs() {
				o := inst.Operands[idx]
				if o.Kind != mir.DataVReg {
					continue
				}
				k := lv.unit(o.Reg)
				if !defSet.Has(k) {
					used.Add(k)
				}
			}
			for _, idx := range inst.Outputs() {
				if o := inst.Operands[idx]; o.Kind == mir.DataVReg {
					defSet.Add(lv.unit(o.Reg))
				}
			}
		}
		lv.def[bid] = defSet
		lv.usedIn[bid] = used
	}
}

// computeLiveOut computes live_out(B): the union of each successor's
// live_in, plus — for every phi in a successor — the phi's incoming vreg
// for the pair naming B specifically.
func (lv *Liveness) computeLiveOut(bid mir.BlockID) vregSet {
	out := make(vregSet)
	for _, s := range lv.succ[bid] {
		for r := range lv.liveIn[s] {
			out.Add(r)
		}
		for _, iid := range lv.fn.InstsOf(s) {
			inst := lv.fn.Instr(iid)
			if inst.Opcode != lv.phiOpcode {
				continue
			}
			for i := 1; i+1 < len(inst.Operands); i += 2 {
				predOp, valOp := inst.Operands[i], inst.Operands[i+1]
				if predOp.Kind == mir.DataBlock && predOp.Block == bid && valOp.Kind == mir.DataVReg {
					out.Add(lv.unit(valOp.Reg))
				}
			}
		}
	}
	return out
}

// computeInOut iterates the live_in/live_out equations to a least fixed
// point, walking blocks in reverse layout order each round
// (a reasonable approximation of reverse postorder without requiring a
// separate dominance pass).
func (lv *Liveness) computeInOut() {
	blocks := lv.fn.Blocks()
	for _, bid := range blocks {
		lv.liveIn[bid] = make(vregSet)
		lv.liveOut[bid] = make(vregSet)
	}
	for changed := true; changed; {
		changed = false
		for i := len(blocks) - 1; i >= 0; i-- {
			bid := blocks[i]
			out := lv.computeLiveOut(bid)
			in := make(vregSet, len(out)+len(lv.usedIn[bid]))
			for r := range out {
				if !lv.def[bid].Has(r) {
					in.Add(r)
				}
			}
			for r := range lv.usedIn[bid] {
				in.Add(r)
			}
			if !in.Equal(lv.liveIn[bid]) {
				lv.liveIn[bid] = in
				changed = true
			}
			if !out.Equal(lv.liveOut[bid]) {
				lv.liveOut[bid] = out
				changed = true
			}
		}
	}
}

func (lv *Liveness) rangeFor(r mir.VReg) *LiveRange {
	lr, ok := lv.ranges[r]
	if !ok {
		lr = &LiveRange{Reg: r}
		lv.ranges[r] = lr
	}
	return lr
}

// buildRanges implements the range-construction walk: open a segment on
// live-in, extend on use, open a fresh segment on def, and extend to the
// block's tail point on live-out.
func (lv *Liveness) buildRanges() {
	blocks := lv.fn.Blocks()
	for bi, bid := range blocks {
		insts := lv.fn.InstsOf(bid)
		open := make(vregSet)
		for r := range lv.liveIn[bid] {
			pp := ProgramPoint{Block: bi, Slot: 0}
			lv.rangeFor(r).open(pp)
			open.Add(r)
		}

		lastSlot := 0
		for ii, iid := range insts {
			pp := ProgramPoint{Block: bi, Slot: ii * Step}
			lv.pointOf[iid] = pp
			lastSlot = ii * Step
			inst := lv.fn.Instr(iid)

			if inst.Opcode == lv.phiOpcode {
				for _, idx := range inst.Outputs() {
					o := inst.Operands[idx]
					if o.Kind != mir.DataVReg {
						continue
					}
					k := lv.unit(o.Reg)
					lv.rangeFor(k).open(pp)
					open.Add(k)
				}
				continue
			}

			for _, idx := range inst.Inputs() {
				o := inst.Operands[idx]
				if o.Kind != mir.DataVReg {
					continue
				}
				k := lv.unit(o.Reg)
				if open.Has(k) {
					lv.rangeFor(k).addUse(pp)
				}
			}
			for _, idx := range inst.Outputs() {
				o := inst.Operands[idx]
				if o.Kind != mir.DataVReg {
					continue
				}
				k := lv.unit(o.Reg)
				lv.rangeFor(k).open(pp)
				open.Add(k)
			}
		}

		tail := ProgramPoint{Block: bi, Slot: lastSlot + Step}
		for r := range lv.liveOut[bid] {
			if open.Has(r) {
				lv.rangeFor(r).addUse(tail)
			}
		}
	}
}

// PointOf returns the program point assigned to iid.
func (lv *Liveness) PointOf(iid mir.InstID) (ProgramPoint, bool) {
	pp, ok := lv.pointOf[iid]
	return pp, ok
}

// LiveIn returns the live-in set of bid.
func (lv *Liveness) LiveIn(bid mir.BlockID) arena.Set[mir.VReg] { return lv.liveIn[bid] }

// LiveOut returns the live-out set of bid.
func (lv *Liveness) LiveOut(bid mir.BlockID) arena.Set[mir.VReg] { return lv.liveOut[bid] }

// RangeOf returns r's live range, if any register ever referenced it.
func (lv *Liveness) RangeOf(r mir.VReg) (*LiveRange, bool) {
	lr, ok := lv.ranges[lv.unit(r)]
	return lr, ok
}

// Assign merges vreg's live range into unit's range, assumed non-
// interfering, and drops vreg as an independent entry. This is the mutation
// a register allocator calls once it has picked a physical register for
// vreg.
func (lv *Liveness) Assign(unit mir.RealReg, vreg mir.VReg) {
	vr, ok := lv.ranges[vreg]
	if !ok {
		return
	}
	key := mir.VRegInvalid.WithRealReg(lv.toUnit(unit))
	lv.rangeFor(key).Merge(vr)
	delete(lv.ranges, vreg)
}

// RemoveVReg drops vreg's live range and removes it from every def/live-in/
// live-out set.
func (lv *Liveness) RemoveVReg(vreg mir.VReg) {
	delete(lv.ranges, vreg)
	for _, set := range lv.def {
		set.Remove(vreg)
	}
	for _, set := range lv.usedIn {
		set.Remove(vreg)
	}
	for _, set := range lv.liveIn {
		set.Remove(vreg)
	}
	for _, set := range lv.liveOut {
		set.Remove(vreg)
	}
}

// RecomputeProgramPointsAfter re-spaces the program points of pp.Block from
// pp forward using addStep as the new gap, supporting spill-instruction
// insertion once a block's slot gaps are exhausted.
func (lv *Liveness) RecomputeProgramPointsAfter(pp ProgramPoint, addStep int) {
	blocks := lv.fn.Blocks()
	if pp.Block < 0 || pp.Block >= len(blocks) {
		return
	}
	bid := blocks[pp.Block]
	slot := pp.Slot
	for _, iid := range lv.fn.InstsOf(bid) {
		cur, ok := lv.pointOf[iid]
		if !ok || cur.Slot < pp.Slot {
			continue
		}
		lv.pointOf[iid] = ProgramPoint{Block: pp.Block, Slot: slot}
		slot += addStep
	}
}
