// Package amd64 implements the x86-64 System V ISA components: register
// info, the concrete machine instruction set with its mnemonics, and the
// lowering engine that pattern-matches IR instructions into it.
package amd64

import (
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// Physical registers, following the System V AMD64 general-purpose
// register file. Each name is the canonical 64-bit unit (GLOSSARY
// "register unit"): al/ax/eax/rax all collapse to RAX for liveness and
// allocation purposes, and the width is instead selected by the
// instruction's own opcode suffix (e.g. MOVrr8 vs MOVrr32 vs MOVrr64).
const (
	RAX mir.RealReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	numRegisters
)

var regNames = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
}

// regName8 and regName32 give the 8- and 32-bit spellings of a RealReg for
// the printer, following GAS/Intel-syntax naming; regNames above holds the
// 64-bit spellings.
var regName8 = [...]string{
	RAX: "al", RCX: "cl", RDX: "dl", RBX: "bl",
	RSP: "spl", RBP: "bpl", RSI: "sil", RDI: "dil",
	R8: "r8b", R9: "r9b", R10: "r10b", R11: "r11b",
	R12: "r12b", R13: "r13b", R14: "r14b", R15: "r15b",
}

var regName32 = [...]string{
	RAX: "eax", RCX: "ecx", RDX: "edx", RBX: "ebx",
	RSP: "esp", RBP: "ebp", RSI: "esi", RDI: "edi",
	R8: "r8d", R9: "r9d", R10: "r10d", R11: "r11d",
	R12: "r12d", R13: "r13d", R14: "r14d", R15: "r15d",
}

func RegName(r mir.RealReg, widthBits int) string {
	switch widthBits {
	case 8:
		return regName8[r]
	case 16, 32:
		if widthBits == 32 {
			return regName32[r]
		}
		return regNames[r] // 16-bit spellings aren't needed by this opcode set
	default:
		return regNames[r]
	}
}

// RegInfo enumerates physical registers, argument registers, class-for-type,
// and the pool of allocatable GPRs per class, plus the register-unit
// canonicaliser and the callee-saved set a future allocator needs.
type RegInfo struct{}

// ArgRegs is the System V integer/pointer argument register sequence:
// rdi, rsi, rdx, rcx, r8, r9.
var ArgRegs = []mir.RealReg{RDI, RSI, RDX, RCX, R8, R9}

// ReturnReg is RAX, narrowed to class by width (al/eax/rax).
const ReturnReg = RAX

// CalleeSaved is the set of registers a function must preserve across
// calls: rbx, r12, r13, r14, r15, rbp.
var CalleeSaved = []mir.RealReg{RBX, R12, R13, R14, R15, RBP}

// CallerSaved (a.k.a. volatile/scratch) registers: everything else that
// isn't RSP.
var CallerSaved = []mir.RealReg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

// Allocatable is the pool of GPRs a register allocator may hand out,
// excluding RSP (the stack pointer) and RBP (the frame pointer, reserved
// by this back end's frame layout).
var Allocatable = []mir.RealReg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

// ClassFor returns the register class that can hold a value of IR type t.
// Every type this opcode set produces (i1..i64, pointers) lives in the
// integer/GPR class; there is no floating-point opcode in this instruction
// set.
func (RegInfo) ClassFor(t types.Type, in *types.Interner) mir.RegClass {
	switch in.Kind(t) {
	case types.KindI1, types.KindI8, types.KindI16, types.KindI32, types.KindI64, types.KindPointer:
		return mir.RegClassInt
	default:
		panic("BUG: no register class for type kind " + in.Kind(t).String())
	}
}

// ToRegUnit canonicalises any width-specific view of r to its unit (a
// no-op here since RealReg is already defined at unit granularity — the
// al/ax/eax/rax aliasing is handled entirely by instruction-opcode width
// selection rather than by distinct RealReg values, unlike e.g. arm64's
// w/x register-file split).
func ToRegUnit(r mir.RealReg) mir.RealReg { return r }

// SizeClass picks the opcode-suffix width (8/32/64) for an IR type,
// following the opcode-chosen-by-size rule used throughout the lowering
// patterns (entry prologue copies, call-argument moves, return-value
// moves).
func SizeClass(t types.Type, in *types.Interner) int {
	switch in.Kind(t) {
	case types.KindI1, types.KindI8:
		return 8
	case types.KindI16, types.KindI32:
		return 32
	case types.KindI64, types.KindPointer:
		return 64
	default:
		panic("BUG: no size class for type kind " + in.Kind(t).String())
	}
}
