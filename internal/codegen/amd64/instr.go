package amd64

import (
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
)

// Op is the concrete amd64 machine opcode, named by mnemonic plus operand
// shape and size suffix ("MOVrr32", "CMPri32", "IMULrr64i32", ...) so each
// constant reads like the instruction it encodes.
type Op uint16

const (
	OpNop Op = iota

	OpMOVrr8
	OpMOVrr32
	OpMOVrr64
	OpMOVri32
	OpMOVri64

	// Address-mode-folded load/store: the memory operand is a MemStart run
	// (mir.MemOperand) rather than a bare register.
	OpMOVrm8
	OpMOVrm32
	OpMOVrm64
	OpMOVmr8
	OpMOVmr32
	OpMOVmr64
	OpMOVmi8
	OpMOVmi32
	OpMOVmi64

	OpMOVSXDr64r32 // sext i32 -> i64, register form
	OpMOVSXDr64m32 // fused load + sext i32 -> i64
	OpMOVSXr32r8   // sext i8 -> i32, register form
	OpMOVSXr32m8   // fused load + sext i8 -> i32
	OpMOVZXr32r8   // zext i8 -> i32

	OpADDrr32
	OpADDri32
	OpADDrr64
	OpSUBrr32
	OpSUBri32
	OpIMULrr32
	OpIMULrr64i32
	OpANDrr32
	OpANDri32
	OpORrr32
	OpORri32
	OpSHLrr32 // count in CL
	OpSHLri32
	OpASHRrr32
	OpASHRri32
	OpLSHRrr32
	OpLSHRri32

	// CDQ/IDIV are the sdiv/srem sequence: cdq sign-extends EAX into
	// EDX:EAX, idiv leaves the quotient in EAX and the remainder in EDX.
	OpCDQ
	OpIDIVr32

	OpCMPrr32
	OpCMPri32
	OpCMPri8

	// SETcc materialises a comparison result as a 0/1 byte, for icmp
	// results consumed by something other than a fused condbr.
	OpSETE
	OpSETNE
	OpSETL
	OpSETLE
	OpSETG
	OpSETGE
	OpSETB
	OpSETBE
	OpSETA
	OpSETAE

	OpLEA

	OpJMP
	OpJE
	OpJNE
	OpJL
	OpJLE
	OpJG
	OpJGE
	OpJB
	OpJBE
	OpJA
	OpJAE

	OpCALL
	OpRET

	// OpPhi is preserved as a machine-level opcode; later allocator passes
	// are responsible for lowering it to copies on predecessor edges.
	OpPhi

	// OpINLINEASM passes an inline-assembly literal straight through to the
	// printer without the back end interpreting it.
	OpINLINEASM
)

var mnemonics = map[Op]string{
	OpNop: "nop",

	OpMOVrr8: "mov", OpMOVrr32: "mov", OpMOVrr64: "mov",
	OpMOVri32: "mov", OpMOVri64: "mov",
	OpMOVrm8: "mov", OpMOVrm32: "mov", OpMOVrm64: "mov",
	OpMOVmr8: "mov", OpMOVmr32: "mov", OpMOVmr64: "mov",
	OpMOVmi8: "mov", OpMOVmi32: "mov", OpMOVmi64: "mov",

	OpMOVSXDr64r32: "movsxd", OpMOVSXDr64m32: "movsxd",
	OpMOVSXr32r8: "movsx", OpMOVSXr32m8: "movsx", OpMOVZXr32r8: "movzx",

	OpADDrr32: "add", OpADDri32: "add", OpADDrr64: "add",
	OpSUBrr32: "sub", OpSUBri32: "sub",
	OpIMULrr32: "imul", OpIMULrr64i32: "imul",
	OpANDrr32: "and", OpANDri32: "and",
	OpORrr32: "or", OpORri32: "or",
	OpSHLrr32: "shl", OpSHLri32: "shl",
	OpASHRrr32: "sar", OpASHRri32: "sar",
	OpLSHRrr32: "shr", OpLSHRri32: "shr",

	OpCDQ: "cdq", OpIDIVr32: "idiv",

	OpCMPrr32: "cmp", OpCMPri32: "cmp", OpCMPri8: "cmp",

	OpSETE: "sete", OpSETNE: "setne",
	OpSETL: "setl", OpSETLE: "setle", OpSETG: "setg", OpSETGE: "setge",
	OpSETB: "setb", OpSETBE: "setbe", OpSETA: "seta", OpSETAE: "setae",

	OpLEA: "lea",

	OpJMP: "jmp", OpJE: "je", OpJNE: "jne", OpJL: "jl", OpJLE: "jle",
	OpJG: "jg", OpJGE: "jge", OpJB: "jb", OpJBE: "jbe", OpJA: "ja", OpJAE: "jae",

	OpCALL: "call", OpRET: "ret",

	OpPhi:       "phi",
	OpINLINEASM: "<inline asm>",
}

// Mnemonic returns the GAS/Intel-syntax mnemonic for op.
func Mnemonic(op Op) string { return mnemonics[Op(op)] }

// condJumpOpcode maps an icmp predicate to the conditional-jump opcode
// that tests the flags a preceding CMP leaves behind, used by the
// icmp+condbr fusion: emit cmp, then the matching conditional jump to the
// true successor.
func condJumpOpcode(cond ir.IntegerCmpCond) Op {
	switch cond {
	case ir.ICmpEQ:
		return OpJE
	case ir.ICmpNE:
		return OpJNE
	case ir.ICmpSLT:
		return OpJL
	case ir.ICmpSLE:
		return OpJLE
	case ir.ICmpSGT:
		return OpJG
	case ir.ICmpSGE:
		return OpJGE
	case ir.ICmpULT:
		return OpJB
	case ir.ICmpULE:
		return OpJBE
	case ir.ICmpUGT:
		return OpJA
	case ir.ICmpUGE:
		return OpJAE
	default:
		panic("BUG: unhandled icmp predicate " + cond.String())
	}
}

// setccOpcode maps an icmp predicate to the SETcc opcode that materialises
// the comparison result as a byte, for icmp results that did not fuse into
// a condbr.
func setccOpcode(cond ir.IntegerCmpCond) Op {
	switch cond {
	case ir.ICmpEQ:
		return OpSETE
	case ir.ICmpNE:
		return OpSETNE
	case ir.ICmpSLT:
		return OpSETL
	case ir.ICmpSLE:
		return OpSETLE
	case ir.ICmpSGT:
		return OpSETG
	case ir.ICmpSGE:
		return OpSETGE
	case ir.ICmpULT:
		return OpSETB
	case ir.ICmpULE:
		return OpSETBE
	case ir.ICmpUGT:
		return OpSETA
	case ir.ICmpUGE:
		return OpSETAE
	default:
		panic("BUG: unhandled icmp predicate " + cond.String())
	}
}

// newInstr is a small convenience wrapper so lower.go reads as "emit(f,
// OpX, operands...)" rather than repeating mir.Func.NewInstr(uint16(...),
// ...) everywhere.
func newInstr(f *mir.Func, op Op, operands ...mir.Operand) *mir.Instr {
	return f.NewInstr(uint16(op), operands)
}
