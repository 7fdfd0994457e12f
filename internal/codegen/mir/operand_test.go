package mir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestZeroVRegIsInvalid pins the sentinel rule the memory-operand encoding
// depends on: a MemOperand literal that never touches Base/Index must
// encode those sub-operands as None, which requires the zero VReg to be
// invalid rather than aliasing "vreg 0 in physical register 0".
func TestZeroVRegIsInvalid(t *testing.T) {
	var zero VReg
	require.False(t, zero.Valid())
	require.False(t, VRegInvalid.Valid())

	f := NewFunc("f")
	v := f.AllocVReg()
	require.True(t, v.Valid())
	require.False(t, v.Assigned())

	assigned := v.WithRealReg(3)
	require.True(t, assigned.Valid())
	require.True(t, assigned.Assigned())
	require.Equal(t, v.ID(), assigned.ID())
	require.Equal(t, RealReg(3), assigned.RealReg())
}

// TestMemOperandEncodeFixedArity checks every encoding carries exactly the
// MemStart sentinel plus the fixed sub-operand run, with unused fields as
// None, and decodes back to the original value.
func TestMemOperandEncodeFixedArity(t *testing.T) {
	f := NewFunc("f")
	base := f.AllocVReg()
	index := f.AllocVReg()

	cases := []MemOperand{
		{Slot: 1},
		{Base: base},
		{Base: base, Disp: -8},
		{Base: base, Index: index, Scale: 4},
		{Label: "sym"},
	}
	for _, m := range cases {
		ops := m.Encode()
		require.Len(t, ops, 1+MemOperandSubOperandCount)
		require.Equal(t, DataMemStart, ops[0].Kind)
		MustValidateMemOperand(ops, 0)

		got, next := DecodeMemOperand(ops, 0)
		require.Equal(t, len(ops), next)
		require.Equal(t, m.Label, got.Label)
		require.Equal(t, m.Slot, got.Slot)
		require.Equal(t, m.Disp, got.Disp)
		require.Equal(t, m.Base.Valid(), got.Base.Valid())
		require.Equal(t, m.Index.Valid(), got.Index.Valid())
		require.Equal(t, m.Scale, got.Scale)
	}
}

// TestMemOperandSlotOnlyHasNoRegisterSubOperands guards against phantom
// register uses leaking into liveness from a slot-only address.
func TestMemOperandSlotOnlyHasNoRegisterSubOperands(t *testing.T) {
	ops := MemOperand{Slot: 2}.Encode()
	for _, o := range ops {
		require.NotEqual(t, DataVReg, o.Kind)
		require.NotEqual(t, DataPhysReg, o.Kind)
	}
}

// TestInstrInputOutputSelection checks the operand role flags drive
// Inputs/Outputs, with implicit operands included (liveness needs them)
// alongside the explicit ones.
func TestInstrInputOutputSelection(t *testing.T) {
	f := NewFunc("f")
	d := f.AllocVReg()
	s := f.AllocVReg()
	imp := f.AllocVReg().WithRealReg(0)

	inst := f.NewInstr(1, []Operand{RegDef(d), Reg(s), ImplicitDef(imp)})
	require.Equal(t, []int{1}, inst.Inputs())
	require.Equal(t, []int{0, 2}, inst.Outputs())

	rw := f.NewInstr(2, []Operand{RegRW(d)})
	require.Equal(t, []int{0}, rw.Inputs())
	require.Equal(t, []int{0}, rw.Outputs())
}
