package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// InstID is a stable handle into a Function's instruction arena.
type InstID uint32

const instIDInvalid InstID = 0

// PhiIncoming is one (value, predecessor) pair of a phi instruction. A
// phi's incoming pairs must match its block's predecessor set exactly:
// one incoming value per predecessor, no more, no less.
type PhiIncoming struct {
	Value Value
	Pred  BlockID
}

// Operand is the tagged-union payload of an Instruction. Which fields are
// populated is determined entirely by the owning Instruction's Opcode; a
// flat "one struct, opcode picks the fields" layout is favoured here over
// bit-packing or per-opcode structs since this is a back end working with
// a handful of instructions per function, not a hot interpreter loop.
type Operand struct {
	// Generic operand value list: binary-op LHS/RHS, call/invoke args,
	// store (value, pointer), load (pointer), switch scrutinee, ret value,
	// unary-op operand (sext/zext/trunc/bitcast/inttoptr/ptrtoint/
	// extractvalue/insertvalue aggregate+inserted value), GEP base.
	Values []Value

	// Target blocks: Br (single), CondBr (true, false), Switch (default +
	// one per case, parallel to Ints), LandingPad has none.
	Blocks []BlockID

	// Integer immediates: GEP indices (parallel to a GEPVariable mask
	// below), ExtractValue/InsertValue indices, Switch case values, Alloca
	// array-length constant (when the allocated count is a compile-time
	// constant; -1 meaning "see Values[0]" is not used, Values always holds
	// the count operand instead when present).
	Ints []int64

	// Which GEP index operands are runtime values rather than constants:
	// parallel to Ints; when GEPVariable[i] is true, Values holds the
	// actual index value and Ints[i] is unused.
	GEPVariable []bool

	// Result / operand types: Alloca's allocated type, Bitcast/SExt/ZExt/
	// Trunc/IntToPtr/PtrToInt target type, GEP base type, Call/Invoke
	// callee signature param types.
	Types []types.Type

	// Symbolic text: Call/Invoke callee name, GlobalRef already lives in
	// Constants so this is only used for call targets and inline asm text.
	Sym string

	// ICmp predicate.
	Cond IntegerCmpCond

	// Phi incoming list.
	Phis []PhiIncoming
}

// Instruction is one arena-owned IR instruction.
type Instruction struct {
	ID       InstID
	Opcode   Opcode
	Operand  Operand
	Name     string // optional destination name ("" if unnamed/synthesised-only)
	Ty       types.Type
	Block    BlockID
	Metadata map[string]any

	// intra-block intrusive list links.
	prev, next InstID
	// unbound is true once remove_inst has detached this instruction from
	// the layout; the record itself still lives in the arena.
	unbound bool
}

// Format renders a minimal textual form of the instruction, good enough for
// debugging and for round-trip tests; a full IR printer is a separate
// concern.
func (i *Instruction) Format(f *Function) string {
	return f.Module.formatInstruction(i)
}
