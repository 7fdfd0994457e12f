package amd64

import (
	"fmt"
	"strings"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
)

// opWidth is the operand width (bits) each opcode's register/memory
// operands carry — the printer needs this to pick register spellings and
// the byte/dword/qword ptr size prefix.
var opWidth = map[Op]int{
	OpMOVrr8: 8, OpMOVmr8: 8, OpMOVrm8: 8, OpMOVmi8: 8, OpCMPri8: 8,
	OpSETE: 8, OpSETNE: 8, OpSETL: 8, OpSETLE: 8, OpSETG: 8, OpSETGE: 8,
	OpSETB: 8, OpSETBE: 8, OpSETA: 8, OpSETAE: 8,

	OpMOVrr32: 32, OpMOVri32: 32, OpMOVrm32: 32, OpMOVmr32: 32, OpMOVmi32: 32,
	OpADDrr32: 32, OpADDri32: 32, OpSUBrr32: 32, OpSUBri32: 32,
	OpIMULrr32: 32, OpANDrr32: 32, OpANDri32: 32, OpORrr32: 32, OpORri32: 32,
	OpSHLrr32: 32, OpSHLri32: 32, OpASHRrr32: 32, OpASHRri32: 32,
	OpLSHRrr32: 32, OpLSHRri32: 32, OpIDIVr32: 32,
	OpCMPrr32: 32, OpCMPri32: 32,
	OpMOVZXr32r8: 32, OpMOVSXr32r8: 32, OpMOVSXr32m8: 32,

	OpMOVrr64: 64, OpMOVri64: 64, OpMOVrm64: 64, OpMOVmr64: 64, OpMOVmi64: 64,
	OpADDrr64: 64, OpIMULrr64i32: 64, OpMOVSXDr64r32: 64, OpMOVSXDr64m32: 64,
}

// opSrcWidth overrides the width of every register/memory operand past the
// first, for the widening moves and the CL-count shifts whose source
// operand is narrower than their destination.
var opSrcWidth = map[Op]int{
	OpMOVZXr32r8: 8, OpMOVSXr32r8: 8, OpMOVSXr32m8: 8,
	OpMOVSXDr64r32: 32, OpMOVSXDr64m32: 32,
	OpSHLrr32: 8, OpASHRrr32: 8, OpLSHRrr32: 8,
}

func (op Op) width() int {
	if w, ok := opWidth[op]; ok {
		return w
	}
	return 64
}

// srcWidth is the width of op's non-destination operands; identical to
// width() except for the mixed-width opcodes above.
func (op Op) srcWidth() int {
	if w, ok := opSrcWidth[op]; ok {
		return w
	}
	return op.width()
}

// RegText renders v for printing: its assigned physical register's spelling
// at op's operand width, or a symbolic "%vN" placeholder if no register
// allocator has assigned it yet.
func RegText(v mir.VReg, op Op) string {
	return regText(v, op.width())
}

func regText(v mir.VReg, width int) string {
	if v.Assigned() {
		return RegName(v.RealReg(), width)
	}
	return fmt.Sprintf("%%v%d", v.ID())
}

func sizePrefix(width int) string {
	switch width {
	case 8:
		return "byte ptr "
	case 32:
		return "dword ptr "
	default:
		return "qword ptr "
	}
}

// SlotOffset resolves a stack slot to its frame-pointer-relative address.
type SlotOffset func(mir.SlotID) int64

// BlockLabel spells a machine block id as an assembly label.
type BlockLabel func(mir.BlockID) string

// FormatInstr renders one machine instruction as a GAS-compatible
// Intel-syntax line (no trailing newline): memory operands print as
// `[base + imm + index*scale]` or `[label]`, sized with a byte/dword/qword
// ptr prefix except for lea, which omits it.
func FormatInstr(instr *mir.Instr, blockLabel BlockLabel, slotOffset SlotOffset) string {
	op := Op(instr.Opcode)
	if op == OpNop {
		return "nop"
	}
	if op == OpINLINEASM {
		for _, o := range instr.Operands {
			if o.Kind == mir.DataLabel {
				return o.Label
			}
		}
		return ""
	}
	mnem := Mnemonic(op)

	var parts []string
	ops := instr.Operands
	for i := 0; i < len(ops); i++ {
		o := ops[i]
		if o.IsImplicit {
			continue
		}
		// The first printed operand is at the opcode's destination width;
		// everything after it at the (possibly narrower) source width.
		width := op.width()
		if len(parts) > 0 {
			width = op.srcWidth()
		}
		switch o.Kind {
		case mir.DataMemStart:
			mem, next := mir.DecodeMemOperand(ops, i)
			parts = append(parts, formatMem(mem, op, width, blockLabel, slotOffset))
			i = next - 1
		case mir.DataVReg:
			parts = append(parts, regText(o.Reg, width))
		case mir.DataImm8, mir.DataImm32, mir.DataImm64:
			parts = append(parts, fmt.Sprintf("%d", o.Imm))
		case mir.DataBlock:
			parts = append(parts, blockLabel(o.Block))
		case mir.DataLabel:
			parts = append(parts, o.Label)
		case mir.DataGlobalAddress:
			parts = append(parts, "offset "+o.Global)
		case mir.DataNone:
			// nothing to render
		}
	}
	if len(parts) == 0 {
		return mnem
	}
	return mnem + " " + strings.Join(parts, ", ")
}

func formatMem(m mir.MemOperand, op Op, width int, blockLabel BlockLabel, slotOffset SlotOffset) string {
	var sb strings.Builder
	if op != OpLEA {
		sb.WriteString(sizePrefix(width))
	}
	if m.Label != "" {
		sb.WriteString("[" + m.Label + "]")
		return sb.String()
	}
	sb.WriteByte('[')

	wrote := false
	switch {
	case m.Slot != mir.SlotInvalid:
		sb.WriteString(fmt.Sprintf("rbp%+d", slotOffset(m.Slot)))
		wrote = true
	case m.Base.Valid():
		sb.WriteString(RegText(m.Base, OpMOVrr64))
		wrote = true
	}

	if m.Disp != 0 {
		if wrote {
			sb.WriteString(fmt.Sprintf("%+d", m.Disp))
		} else {
			sb.WriteString(fmt.Sprintf("%d", m.Disp))
			wrote = true
		}
	}

	if m.Index.Valid() {
		if wrote {
			sb.WriteString(" + ")
		}
		sb.WriteString(fmt.Sprintf("%s*%d", RegText(m.Index, OpMOVrr64), m.Scale))
	}

	sb.WriteByte(']')
	return sb.String()
}
