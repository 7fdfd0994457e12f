package mir

import "github.com/maekawatoshiki/vicis-sub000/internal/arena"

// InstID is a stable handle into a Func's instruction arena.
type InstID uint32

const instIDInvalid InstID = 0
const blockIDInvalid BlockID = 0

// Instr is a machine instruction: (opcode, operand vector). Opcode is
// target-defined (internal/codegen/amd64 owns the concrete enumeration and
// mnemonics); the mir package only needs a stable numeric tag to route
// generic operations (layout, printing, liveness) that never interpret its
// meaning.
type Instr struct {
	ID       InstID
	Opcode   uint16
	Operands []Operand
	Block    BlockID

	// intra-block intrusive list links, mirroring ir.Instruction.
	prev, next InstID
	unbound    bool
}

// Inputs returns the operand indices marked IsInput (read-only registers
// and immediates/labels/slots the instruction reads).
func (i *Instr) Inputs() []int { return i.selectFlag(func(o Operand) bool { return o.IsInput }) }

// Outputs returns the operand indices marked IsOutput.
func (i *Instr) Outputs() []int { return i.selectFlag(func(o Operand) bool { return o.IsOutput }) }

func (i *Instr) selectFlag(pred func(Operand) bool) []int {
	var out []int
	for idx, o := range i.Operands {
		if pred(o) {
			out = append(out, idx)
		}
	}
	return out
}

// Block is a machine-IR basic block: an intrusive instruction list plus the
// function-level block-list links, mirroring ir.Block.
type Block struct {
	ID   BlockID
	Name string

	firstInst, lastInst InstID
	prevBlock, nextBlock BlockID
}

// Func is the arena owner for one lowered function's instructions and
// blocks, laid out exactly like ir.Function's arena/layout shape so that
// liveness analysis and a future register allocator can walk either IR
// with the same idiom.
type Func struct {
	Name string

	instrs arena.Pool[Instr]
	blocks arena.Pool[Block]

	firstBlock, lastBlock BlockID
	nextVRegID            VRegID
}

// NewFunc returns an empty machine function named name.
func NewFunc(name string) *Func {
	// VRegID 0 is the invalid sentinel (see vreg.go); ids start at 1.
	f := &Func{Name: name, nextVRegID: 1}
	f.instrs.Allocate()
	f.blocks.Allocate()
	return f
}

// AllocVReg returns a fresh, unassigned virtual register.
func (f *Func) AllocVReg() VReg {
	id := f.nextVRegID
	f.nextVRegID++
	return NewVReg(id)
}

// Instr returns the instruction referenced by id.
func (f *Func) Instr(id InstID) *Instr { return f.instrs.Get(arena.ID(id)) }

// Block returns the block referenced by id.
func (f *Func) Block(id BlockID) *Block { return f.blocks.Get(arena.ID(id)) }

// AppendBlock allocates a new, empty block at the end of the function.
func (f *Func) AppendBlock(name string) BlockID {
	id, b := f.blocks.Allocate()
	bid := BlockID(id)
	b.ID = bid
	b.Name = name
	b.firstInst, b.lastInst = instIDInvalid, instIDInvalid
	if f.firstBlock == blockIDInvalid {
		f.firstBlock = bid
	} else {
		f.Block(f.lastBlock).nextBlock = bid
		b.prevBlock = f.lastBlock
	}
	f.lastBlock = bid
	return bid
}

// Blocks returns block ids in layout order.
func (f *Func) Blocks() []BlockID {
	out := make([]BlockID, 0, f.blocks.Len())
	for id := f.firstBlock; id != blockIDInvalid; id = f.Block(id).nextBlock {
		out = append(out, id)
	}
	return out
}

// NewInstr allocates a fresh, unbound instruction.
func (f *Func) NewInstr(opcode uint16, operands []Operand) *Instr {
	id, inst := f.instrs.Allocate()
	inst.ID = InstID(id)
	inst.Opcode = opcode
	inst.Operands = operands
	inst.unbound = true
	return inst
}

// AppendInstr appends inst to the tail of block's instruction list.
func (f *Func) AppendInstr(block BlockID, inst *Instr) {
	b := f.Block(block)
	inst.Block = block
	inst.unbound = false
	if b.lastInst == instIDInvalid {
		b.firstInst = inst.ID
	} else {
		f.Instr(b.lastInst).next = inst.ID
		inst.prev = b.lastInst
	}
	b.lastInst = inst.ID
}

// InsertInstrAfter inserts inst immediately after mark in mark's block; the
// register allocator uses this to splice in spill/reload code.
func (f *Func) InsertInstrAfter(mark InstID, inst *Instr) {
	m := f.Instr(mark)
	b := f.Block(m.Block)
	inst.Block = m.Block
	inst.unbound = false
	inst.prev, inst.next = mark, m.next
	if m.next != instIDInvalid {
		f.Instr(m.next).prev = inst.ID
	} else {
		b.lastInst = inst.ID
	}
	m.next = inst.ID
}

// InsertInstrBefore inserts inst immediately before mark in mark's block.
func (f *Func) InsertInstrBefore(mark InstID, inst *Instr) {
	m := f.Instr(mark)
	b := f.Block(m.Block)
	inst.Block = m.Block
	inst.unbound = false
	inst.prev, inst.next = m.prev, mark
	if m.prev != instIDInvalid {
		f.Instr(m.prev).next = inst.ID
	} else {
		b.firstInst = inst.ID
	}
	m.prev = inst.ID
}

// InstsOf iterates block's instructions in layout order.
func (f *Func) InstsOf(block BlockID) []InstID {
	b := f.Block(block)
	out := make([]InstID, 0)
	for id := b.firstInst; id != instIDInvalid; id = f.Instr(id).next {
		out = append(out, id)
	}
	return out
}
