package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// ValueKind discriminates the four alternatives of an IR Value: it is
// exactly one of an instruction result, a function argument, a constant,
// or an inline-assembly literal.
type ValueKind byte

const (
	ValueInvalid ValueKind = iota
	ValueInstr
	ValueArg
	ValueConst
	ValueInlineAsm
)

// Value is a lightweight, comparable handle, not an interface: Go
// interfaces would box every value and defeat the arena's goal of O(1)
// comparisons and cheap copies through operand lists. Which field of
// .index is meaningful is determined entirely by Kind, a single kind tag
// plus payload word rather than a discriminated pointer.
type Value struct {
	Kind ValueKind
	// index means: InstID for ValueInstr, argument position for ValueArg,
	// ConstID for ValueConst, InlineAsmID for ValueInlineAsm.
	index uint32
}

// ValueInvalidZero is the zero Value; no constructor below ever returns it.
var ValueInvalidZero Value

func (v Value) Valid() bool { return v.Kind != ValueInvalid }

func valInstr(id InstID) Value { return Value{Kind: ValueInstr, index: uint32(id)} }

// ValueForInst builds the Value naming instruction id's result. Exported for
// callers outside this package (the lowering engine) that need to query
// UsersOf for an instruction they only hold the id of.
func ValueForInst(id InstID) Value { return valInstr(id) }
func valArg(idx int) Value          { return Value{Kind: ValueArg, index: uint32(idx)} }
func valConst(id ConstID) Value     { return Value{Kind: ValueConst, index: uint32(id)} }
func valInlineAsm(id uint32) Value  { return Value{Kind: ValueInlineAsm, index: id} }

// ValueForConst builds the Value naming a module's interned constant id.
// Exported so callers assembling instruction operands (the builder API,
// and tests standing in for an IR text parser) can turn a ConstPool lookup
// into an operand Value without reaching into this package's unexported
// Kind-tagging helpers.
func ValueForConst(id ConstID) Value { return valConst(id) }

// InstID returns the instruction id this value names. Panics if Kind is not
// ValueInstr.
func (v Value) InstID() InstID {
	if v.Kind != ValueInstr {
		panic("BUG: Value.InstID on a non-instruction value")
	}
	return InstID(v.index)
}

// ArgIndex returns the zero-based argument position this value names.
// Panics if Kind is not ValueArg.
func (v Value) ArgIndex() int {
	if v.Kind != ValueArg {
		panic("BUG: Value.ArgIndex on a non-argument value")
	}
	return int(v.index)
}

// ConstID returns the constant id this value names. Panics if Kind is not
// ValueConst.
func (v Value) ConstID() ConstID {
	if v.Kind != ValueConst {
		panic("BUG: Value.ConstID on a non-constant value")
	}
	return ConstID(v.index)
}

// InlineAsmID returns the inline-assembly-literal id this value names.
func (v Value) InlineAsmID() uint32 {
	if v.Kind != ValueInlineAsm {
		panic("BUG: Value.InlineAsmID on a non-inline-asm value")
	}
	return v.index
}

// InlineAsm is the payload of an inline-assembly literal operand: text and
// constraint string pass straight through to the printer without the back
// end ever interpreting them.
type InlineAsm struct {
	Text       string
	Constraint string
	Ty         types.Type
}
