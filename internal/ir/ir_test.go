package ir

import (
	"testing"

	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
	"github.com/stretchr/testify/require"
)

// newTestFunction builds a single-block function returning i32, handy
// scaffolding shared by the invariant tests below.
func newTestFunction(t *testing.T) (*Module, *Function, BlockID) {
	t.Helper()
	mod := NewModule()
	fn := NewFunction(mod, "f", Signature{Ret: mod.Types.I32()})
	mod.AddFunction(fn)
	entry := fn.AppendBlock("entry")
	return mod, fn, entry
}

// TestUseDefInvariant checks that every instruction referencing a value
// appears in that value's users set, and disappears once removed.
func TestUseDefInvariant(t *testing.T) {
	_, fn, entry := newTestFunction(t)
	i32 := fn.Module.Types.I32()

	a := fn.BuildAlloca(entry, "a", i32)
	load := fn.BuildLoad(entry, "b", i32, a)
	loadID := load.InstID()

	require.Contains(t, fn.UsersOf(a), loadID)

	fn.RemoveInst(loadID)
	require.NotContains(t, fn.UsersOf(a), loadID)
}

// TestLayoutInvariant checks that every instruction iterated from a block
// belongs to that block, and appears exactly once.
func TestLayoutInvariant(t *testing.T) {
	_, fn, entry := newTestFunction(t)
	i32 := fn.Module.Types.I32()

	a := fn.BuildAlloca(entry, "a", i32)
	fn.BuildStore(entry, ValueForConst(fn.Module.Consts.Int(i32, 1)), a)
	b := fn.BuildLoad(entry, "b", i32, a)
	fn.BuildRet(entry, b)

	seen := make(map[InstID]int)
	for _, iid := range fn.InstsOf(entry) {
		inst := fn.Inst(iid)
		require.Equal(t, entry, inst.Block)
		seen[iid]++
	}
	for iid, n := range seen {
		require.Equalf(t, 1, n, "instruction %d appeared %d times", iid, n)
	}
	require.Len(t, seen, 4)
}

// TestRemoveInstDetachesFromLayout confirms a removed instruction no
// longer appears in its block's layout walk, while its id remains
// addressable.
func TestRemoveInstDetachesFromLayout(t *testing.T) {
	_, fn, entry := newTestFunction(t)
	i32 := fn.Module.Types.I32()

	a := fn.BuildAlloca(entry, "a", i32)
	load := fn.BuildLoad(entry, "b", i32, a)
	fn.BuildRet(entry, load)

	fn.RemoveInst(load.InstID())
	for _, iid := range fn.InstsOf(entry) {
		require.NotEqual(t, load.InstID(), iid)
	}
	// The record is still addressable even though detached.
	require.Equal(t, OpLoad, fn.Inst(load.InstID()).Opcode)
}

// TestTypeInterningIdentity checks that repeated interning of structurally
// identical pointer/array/struct types yields identical ids.
func TestTypeInterningIdentity(t *testing.T) {
	in := types.New()

	p1 := in.Pointer(in.I32(), 0)
	p2 := in.Pointer(in.I32(), 0)
	require.Equal(t, p1, p2)

	a1 := in.Array(in.I8(), 4)
	a2 := in.Array(in.I8(), 4)
	require.Equal(t, a1, a2)
	a3 := in.Array(in.I8(), 5)
	require.NotEqual(t, a1, a3)

	s1 := in.DeclareStruct("Point")
	s2 := in.DeclareStruct("Point")
	require.Equal(t, s1, s2)
}

// TestForwardReferencePlaceholderResolution exercises the forward-
// reference protocol: a name used before its definition resolves to the
// same Value once ReplaceInst runs, and CheckNoPlaceholdersSurvive only
// fails while a placeholder is still outstanding.
func TestForwardReferencePlaceholderResolution(t *testing.T) {
	_, fn, entry := newTestFunction(t)
	i32 := fn.Module.Types.I32()

	fwd := fn.FindValueByName("later", i32)
	require.Error(t, fn.CheckNoPlaceholdersSurvive())

	real := fn.NewInstruction(OpAdd, i32)
	real.Operand.Values = []Value{
		ValueForConst(fn.Module.Consts.Int(i32, 1)),
		ValueForConst(fn.Module.Consts.Int(i32, 2)),
	}
	fn.ReplaceInst(fwd.InstID(), real)
	fn.AppendInst(entry, fn.Inst(fwd.InstID()))

	require.NoError(t, fn.CheckNoPlaceholdersSurvive())
	resolved := fn.FindValueByName("later", i32)
	require.Equal(t, fwd, resolved)
	require.Equal(t, OpAdd, fn.Inst(resolved.InstID()).Opcode)
}

// TestPhiShapeValidation confirms CheckPhiShape accepts a phi whose
// incoming pairs exactly match its block's predecessor set, and rejects a
// mismatch.
func TestPhiShapeValidation(t *testing.T) {
	_, fn, entry := newTestFunction(t)
	i32 := fn.Module.Types.I32()

	header := fn.AppendBlock("header")
	left := fn.AppendBlock("left")
	right := fn.AppendBlock("right")

	phi := fn.BuildPhi(header, "x", i32)
	fn.BuildBr(entry, left)
	fn.BuildBr(left, header)
	fn.BuildBr(right, header)
	fn.BuildRet(header, ValueForInst(phi))

	fn.AddIncoming(phi, ValueForConst(fn.Module.Consts.Int(i32, 1)), left)
	fn.AddIncoming(phi, ValueForConst(fn.Module.Consts.Int(i32, 2)), right)

	fn.FinalizeCFG()
	require.NoError(t, fn.CheckPhiShape())

	// Drop a predecessor's incoming pair to break the shape invariant.
	inst := fn.Inst(phi)
	inst.Operand.Phis = inst.Operand.Phis[:1]
	require.Error(t, fn.CheckPhiShape())
}
