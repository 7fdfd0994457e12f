package ir

import (
	"fmt"

	"github.com/maekawatoshiki/vicis-sub000/internal/arena"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// Signature is a function's parameter/return/variadic shape.
type Signature struct {
	Params   []types.Type
	Ret      types.Type
	Variadic bool
}

// Linkage mirrors the small subset of LLVM linkage kinds an IR text parser
// is expected to recognise. Lowering never branches on them; the global-
// variable printer (asmprint.Globals) uses a global's linkage to skip
// external declarations and to decide which globals get `.globl`.
type Linkage byte

const (
	LinkageExternal Linkage = iota
	LinkageInternal
	LinkagePrivate
	LinkageWeak
)

// Function owns one function's values, instructions, and blocks, plus the
// layout (block/instruction ordering) and the use-def back-link map.
type Function struct {
	Module    *Module
	Name      string
	Sig       Signature
	Linkage   Linkage
	Declared  bool // true for `declare`, false for `define`

	instrs arena.Pool[Instruction]
	blocks arena.Pool[Block]

	firstBlock, lastBlock BlockID

	nameTable      map[string]Value
	blockNameTable map[string]BlockID

	// users maps a Value to the set of instructions referencing it.
	users map[Value]map[InstID]struct{}

	// placeholders tracks forward-reference instructions (OpInvalid) that
	// have not yet been replaced by ReplaceInst. Parsing must fail if any
	// survive.
	placeholders arena.Set[InstID]

	nextSynthName uint64
}

// NewFunction creates an empty function owned by m.
func NewFunction(m *Module, name string, sig Signature) *Function {
	f := &Function{
		Module:         m,
		Name:           name,
		Sig:            sig,
		nameTable:      make(map[string]Value),
		blockNameTable: make(map[string]BlockID),
		users:          make(map[Value]map[InstID]struct{}),
		placeholders:   make(arena.Set[InstID]),
	}
	// Reserve index 0 in both pools so the zero value of InstID/BlockID
	// (used as "unset") never aliases a real record.
	f.instrs.Allocate()
	f.blocks.Allocate()
	return f
}

// Inst returns the instruction referenced by id.
func (f *Function) Inst(id InstID) *Instruction { return f.instrs.Get(arena.ID(id)) }

// Block returns the block referenced by id.
func (f *Function) Block(id BlockID) *Block { return f.blocks.Get(arena.ID(id)) }

// NumBlocks returns the number of allocated blocks, including index 0.
func (f *Function) NumBlocks() int { return f.blocks.Len() }

// ArgValue returns the Value naming the i-th function argument.
func (f *Function) ArgValue(i int) Value { return valArg(i) }

// TypeOf returns the type of v in the context of f.
func (f *Function) TypeOf(v Value) types.Type {
	switch v.Kind {
	case ValueInstr:
		return f.Inst(v.InstID()).Ty
	case ValueArg:
		return f.Sig.Params[v.ArgIndex()]
	case ValueConst:
		return f.Module.Consts.Get(v.ConstID()).Ty
	case ValueInlineAsm:
		return f.Module.InlineAsm(v.InlineAsmID()).Ty
	default:
		panic("BUG: TypeOf on an invalid Value")
	}
}

// AppendBlock allocates a new, empty block at the end of the function's
// block list and returns its id.
func (f *Function) AppendBlock(name string) BlockID {
	id, b := f.blocks.Allocate()
	bid := BlockID(id)
	b.ID = bid
	b.Name = name
	b.firstInst, b.lastInst = instIDInvalid, instIDInvalid
	b.prevBlock, b.nextBlock = blockIDInvalid, blockIDInvalid

	if f.firstBlock == blockIDInvalid {
		f.firstBlock = bid
	} else {
		last := f.Block(f.lastBlock)
		last.nextBlock = bid
		b.prevBlock = f.lastBlock
	}
	f.lastBlock = bid

	if name != "" {
		f.blockNameTable[name] = bid
	}
	return bid
}

// BlockByName resolves a parsed block name to the block AppendBlock
// registered under it, reporting false if there is none. Blocks don't support the same
// Invalid-opcode placeholder trick instructions do since a block has no
// opcode; instead an IR text parser is expected to call AppendBlock up
// front for every label before resolving branch targets.
func (f *Function) BlockByName(name string) (BlockID, bool) {
	id, ok := f.blockNameTable[name]
	return id, ok
}

// Blocks returns block ids in layout order.
func (f *Function) Blocks() []BlockID {
	out := make([]BlockID, 0, f.blocks.Len())
	for id := f.firstBlock; id != blockIDInvalid; id = f.Block(id).nextBlock {
		if f.Block(id).Valid() {
			out = append(out, id)
		}
	}
	return out
}

// synthName returns a fresh synthesised numeric name, e.g. for unnamed
// temporaries.
func (f *Function) synthName() string {
	n := f.nextSynthName
	f.nextSynthName++
	return fmt.Sprintf("%d", n)
}

// addUse records that inst references v, maintaining the use-def back-link
// invariant.
func (f *Function) addUse(v Value, inst InstID) {
	if !v.Valid() {
		return
	}
	set, ok := f.users[v]
	if !ok {
		set = make(map[InstID]struct{})
		f.users[v] = set
	}
	set[inst] = struct{}{}
}

// removeUse undoes addUse.
func (f *Function) removeUse(v Value, inst InstID) {
	if !v.Valid() {
		return
	}
	if set, ok := f.users[v]; ok {
		delete(set, inst)
	}
}

// UsersOf returns the set of instruction ids referencing v.
func (f *Function) UsersOf(v Value) []InstID {
	set := f.users[v]
	out := make([]InstID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// recordOperandUses walks op and registers every Value it references
// against inst.
func (f *Function) recordOperandUses(inst InstID, op Operand) {
	for _, v := range op.Values {
		f.addUse(v, inst)
	}
	for _, p := range op.Phis {
		f.addUse(p.Value, inst)
	}
}

func (f *Function) dropOperandUses(inst InstID, op Operand) {
	for _, v := range op.Values {
		f.removeUse(v, inst)
	}
	for _, p := range op.Phis {
		f.removeUse(p.Value, inst)
	}
}
