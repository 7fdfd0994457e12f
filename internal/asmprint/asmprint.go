// Package asmprint renders a lowered module as GAS-compatible Intel-syntax
// x86-64 text: a whole-file header, one labelled routine per function, and
// the module's global-variable directives. internal/codegen/amd64/print.go
// owns the actual per-instruction mnemonic/operand text this package
// assembles into whole functions and a whole module.
package asmprint

import (
	"fmt"
	"strings"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/amd64"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
)

// Function renders one lowered function as a complete, labelled assembly
// routine, including a minimal standard-frame prologue/epilogue synthesised
// from the slot store's computed frame size. Virtual registers that no
// register allocator has assigned print as "%vN" placeholders (see
// amd64.RegText), so the text assembles only once every one is assigned.
func Function(fnIdx int, mf *mir.Func, slots *mir.Slots) string {
	frameSize := slots.ComputeFrame()
	slotOffset := func(id mir.SlotID) int64 { return slots.Get(id).Offset }
	blockLabel := func(b mir.BlockID) string { return BlockLabel(fnIdx, int(b)) }

	var sb strings.Builder
	fmt.Fprintf(&sb, ".globl %s\n", mf.Name)
	fmt.Fprintf(&sb, "%s:\n", mf.Name)
	sb.WriteString("\tpush rbp\n")
	sb.WriteString("\tmov rbp, rsp\n")
	if frameSize > 0 {
		fmt.Fprintf(&sb, "\tsub rsp, %d\n", frameSize)
	}

	for _, bid := range mf.Blocks() {
		fmt.Fprintf(&sb, "%s:\n", blockLabel(bid))
		for _, iid := range mf.InstsOf(bid) {
			instr := mf.Instr(iid)
			if amd64.Op(instr.Opcode) == amd64.OpRET {
				if frameSize > 0 {
					sb.WriteString("\tmov rsp, rbp\n")
				}
				sb.WriteString("\tpop rbp\n")
			}
			fmt.Fprintf(&sb, "\t%s\n", amd64.FormatInstr(instr, blockLabel, slotOffset))
		}
	}
	return sb.String()
}

// BlockLabel formats a machine block as `.LBL<fn_idx>_<block_idx>`.
func BlockLabel(fnIdx, blockIdx int) string {
	return fmt.Sprintf(".LBL%d_%d", fnIdx, blockIdx)
}

// Module is the whole-file assembly text for a compiled module: the
// `.text`/`.intel_syntax noprefix` header, each lowered function in order,
// and finally the source module's global-variable directives, rendered by
// Globals.
func Module(mod *ir.Module, fns []*mir.Func, slots []*mir.Slots) string {
	var sb strings.Builder
	sb.WriteString(".intel_syntax noprefix\n")
	sb.WriteString(".text\n")
	for i, mf := range fns {
		sb.WriteString(Function(i, mf, slots[i]))
		sb.WriteString("\n")
	}
	if g := Globals(mod); g != "" {
		sb.WriteString(g)
	}
	return sb.String()
}
