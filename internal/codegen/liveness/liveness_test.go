package liveness

import (
	"testing"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/stretchr/testify/require"
)

// Mock opcodes standing in for a concrete ISA's selection, since liveness
// only needs a stable opcode tag to distinguish phis from everything else.
const (
	opPhi uint16 = iota + 1
	opDef
	opUse
	opBr
	opRet
)

func identityUnit(r mir.RealReg) mir.RealReg { return r }

// buildLinearFunc builds entry->mid->exit, defining r0 in entry, consuming
// it (and defining r1) in mid, and consuming r1 in exit.
func buildLinearFunc(t *testing.T) (*mir.Func, mir.VReg, mir.VReg) {
	t.Helper()
	mf := mir.NewFunc("f")
	entry := mf.AppendBlock("entry")
	mid := mf.AppendBlock("mid")
	exit := mf.AppendBlock("exit")

	r0 := mf.AllocVReg()
	r1 := mf.AllocVReg()

	mf.AppendInstr(entry, mf.NewInstr(opDef, []mir.Operand{mir.RegDef(r0)}))
	mf.AppendInstr(entry, mf.NewInstr(opBr, []mir.Operand{mir.BlockOperand(mid)}))

	mf.AppendInstr(mid, mf.NewInstr(opUse, []mir.Operand{mir.RegDef(r1), mir.Reg(r0)}))
	mf.AppendInstr(mid, mf.NewInstr(opBr, []mir.Operand{mir.BlockOperand(exit)}))

	mf.AppendInstr(exit, mf.NewInstr(opRet, []mir.Operand{mir.Reg(r1)}))

	return mf, r0, r1
}

func TestLivenessCrossBlockPropagation(t *testing.T) {
	mf, r0, r1 := buildLinearFunc(t)
	blocks := mf.Blocks()
	entry, mid, exit := blocks[0], blocks[1], blocks[2]

	lv := Compute(mf, identityUnit, opPhi)

	require.True(t, lv.LiveOut(entry).Has(r0))
	require.True(t, lv.LiveIn(mid).Has(r0))
	require.False(t, lv.LiveIn(entry).Has(r0), "r0 is defined in entry, not live-in to it")

	require.True(t, lv.LiveOut(mid).Has(r1))
	require.True(t, lv.LiveIn(exit).Has(r1))
	require.False(t, lv.LiveOut(exit).Has(r1), "r1 has no uses past exit's ret")
}

// TestLivenessSafetyInvariant checks that every use of a vreg at program
// point p falls inside some segment of its live range.
func TestLivenessSafetyInvariant(t *testing.T) {
	mf, r0, r1 := buildLinearFunc(t)
	lv := Compute(mf, identityUnit, opPhi)

	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			inst := mf.Instr(iid)
			pp, ok := lv.PointOf(iid)
			require.True(t, ok)
			for _, idx := range inst.Inputs() {
				o := inst.Operands[idx]
				if o.Kind != mir.DataVReg {
					continue
				}
				lr, ok := lv.RangeOf(o.Reg)
				require.Truef(t, ok, "no live range for used vreg %v", o.Reg)
				require.True(t, inRange(lr, pp), "use of %v at %+v falls outside its live range", o.Reg, pp)
			}
		}
	}
	_ = r0
	_ = r1
}

func inRange(lr *LiveRange, pp ProgramPoint) bool {
	for _, seg := range lr.Segments {
		if !pp.Less(seg.Start) && !seg.End.Less(pp) {
			return true
		}
	}
	return false
}

// TestRemoveVRegDropsEveryTrace confirms the allocator mutation API fully
// retracts a vreg from def/live-in/live-out sets and its range.
func TestRemoveVRegDropsEveryTrace(t *testing.T) {
	mf, r0, _ := buildLinearFunc(t)
	lv := Compute(mf, identityUnit, opPhi)

	lv.RemoveVReg(r0)

	_, ok := lv.RangeOf(r0)
	require.False(t, ok)
	for _, bid := range mf.Blocks() {
		require.False(t, lv.LiveIn(bid).Has(r0))
		require.False(t, lv.LiveOut(bid).Has(r0))
	}
}

// TestAssignMergesRangesForInterference checks that once Assign merges v's
// range into a physical unit, a value whose range overlapped v's before
// assignment interferes with that unit's merged range.
func TestAssignMergesRangesForInterference(t *testing.T) {
	mf := mir.NewFunc("g")
	entry := mf.AppendBlock("entry")

	a := mf.AllocVReg()
	b := mf.AllocVReg()

	// a and b are simultaneously live (both defined, then both used in the
	// same later instruction), so their ranges must overlap.
	mf.AppendInstr(entry, mf.NewInstr(opDef, []mir.Operand{mir.RegDef(a)}))
	mf.AppendInstr(entry, mf.NewInstr(opDef, []mir.Operand{mir.RegDef(b)}))
	mf.AppendInstr(entry, mf.NewInstr(opUse, []mir.Operand{mir.Reg(a), mir.Reg(b)}))
	mf.AppendInstr(entry, mf.NewInstr(opRet, nil))

	lv := Compute(mf, identityUnit, opPhi)

	aRange, ok := lv.RangeOf(a)
	require.True(t, ok)
	bRangeBefore, ok := lv.RangeOf(b)
	require.True(t, ok)
	require.True(t, aRange.Interfere(bRangeBefore), "a and b are simultaneously live before assignment")

	const unit mir.RealReg = 5
	lv.Assign(unit, a)

	merged, ok := lv.RangeOf(mir.VRegInvalid.WithRealReg(unit))
	require.True(t, ok)
	require.True(t, merged.Interfere(bRangeBefore))

	_, stillThere := lv.RangeOf(a)
	require.False(t, stillThere, "Assign should drop the vreg as an independent range entry")
}
