package amd64

import (
	"testing"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/stretchr/testify/require"
)

func testLabel(b mir.BlockID) string { return ".LBL0_0" }

func testSlotOffset(id mir.SlotID) int64 { return -4 }

func format(t *testing.T, op Op, operands ...mir.Operand) string {
	t.Helper()
	mf := mir.NewFunc("t")
	return FormatInstr(mf.NewInstr(uint16(op), operands), testLabel, testSlotOffset)
}

func preg(r mir.RealReg) mir.VReg {
	return mir.NewVReg(1).WithRealReg(r)
}

// TestFormatStoreImmediatePutsMemoryFirst checks the store shape prints
// destination-first with the operand-size prefix.
func TestFormatStoreImmediatePutsMemoryFirst(t *testing.T) {
	mem := mir.MemOperand{Slot: 1}
	operands := append(mem.Encode(), mir.Imm32(2))
	mf := mir.NewFunc("t")
	got := FormatInstr(mf.NewInstr(uint16(OpMOVmi32), operands), testLabel, testSlotOffset)
	require.Equal(t, "mov dword ptr [rbp-4], 2", got)
}

func TestFormatStoreRegisterPutsMemoryFirst(t *testing.T) {
	mem := mir.MemOperand{Slot: 1}
	operands := append(mem.Encode(), mir.Reg(preg(RCX)))
	mf := mir.NewFunc("t")
	got := FormatInstr(mf.NewInstr(uint16(OpMOVmr32), operands), testLabel, testSlotOffset)
	require.Equal(t, "mov dword ptr [rbp-4], ecx", got)
}

// TestFormatCallSkipsImplicitReturnDef checks the implicit-def operand CALL
// carries for liveness never leaks into the printed text.
func TestFormatCallSkipsImplicitReturnDef(t *testing.T) {
	got := format(t, OpCALL, mir.Lbl("f"), mir.ImplicitDef(preg(RAX)))
	require.Equal(t, "call f", got)
}

// TestFormatMixedWidthOperands checks the widening moves spell their source
// operand at the source width, not the destination width.
func TestFormatMixedWidthOperands(t *testing.T) {
	require.Equal(t, "movzx eax, cl",
		format(t, OpMOVZXr32r8, mir.RegDef(preg(RAX)), mir.Reg(preg(RCX))))
	require.Equal(t, "movsxd rax, ecx",
		format(t, OpMOVSXDr64r32, mir.RegDef(preg(RAX)), mir.Reg(preg(RCX))))
	require.Equal(t, "shl eax, cl",
		format(t, OpSHLrr32, mir.RegRW(preg(RAX)), mir.Reg(preg(RCX))))
}

// TestFormatFusedLoadSextSizesMemoryBySource checks the fused movsx forms
// prefix their memory operand with the loaded width.
func TestFormatFusedLoadSextSizesMemoryBySource(t *testing.T) {
	mem := mir.MemOperand{Base: preg(RCX), Disp: 1}
	operands := append([]mir.Operand{mir.RegDef(preg(RAX))}, mem.Encode()...)
	mf := mir.NewFunc("t")
	got := FormatInstr(mf.NewInstr(uint16(OpMOVSXr32m8), operands), testLabel, testSlotOffset)
	require.Equal(t, "movsx eax, byte ptr [rcx+1]", got)
}

// TestFormatLeaOmitsSizePrefix follows the lea exception: no byte/dword/
// qword ptr prefix on its memory operand.
func TestFormatLeaOmitsSizePrefix(t *testing.T) {
	mem := mir.MemOperand{Slot: 1}
	operands := append([]mir.Operand{mir.RegDef(preg(RAX))}, mem.Encode()...)
	mf := mir.NewFunc("t")
	got := FormatInstr(mf.NewInstr(uint16(OpLEA), operands), testLabel, testSlotOffset)
	require.Equal(t, "lea rax, [rbp-4]", got)
}

// TestFormatScaledIndexAddressing checks the `[base + index*scale]` operand
// spelling.
func TestFormatScaledIndexAddressing(t *testing.T) {
	mem := mir.MemOperand{Base: preg(RCX), Index: preg(RDX), Scale: 4}
	operands := append([]mir.Operand{mir.RegDef(preg(RAX))}, mem.Encode()...)
	mf := mir.NewFunc("t")
	got := FormatInstr(mf.NewInstr(uint16(OpMOVrm32), operands), testLabel, testSlotOffset)
	require.Equal(t, "mov eax, dword ptr [rcx + rdx*4]", got)
}
