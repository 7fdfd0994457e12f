package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// This file is the layout: intrusive doubly-linked list operations over
// blocks' instruction sequences, plus the forward-reference placeholder
// protocol and the CFG (pred/succ) construction, which happens once after
// parsing from each block's terminator.

// NewInstruction allocates a fresh, unbound instruction of the given
// opcode/type, not yet attached to any block.
func (f *Function) NewInstruction(op Opcode, ty types.Type) *Instruction {
	id, inst := f.instrs.Allocate()
	inst.ID = InstID(id)
	inst.Opcode = op
	inst.prev, inst.next = instIDInvalid, instIDInvalid
	inst.unbound = true
	return inst
}

// AppendInst appends inst to the tail of block's instruction list.
func (f *Function) AppendInst(block BlockID, inst *Instruction) {
	b := f.Block(block)
	inst.Block = block
	inst.unbound = false
	if b.lastInst == instIDInvalid {
		b.firstInst = inst.ID
	} else {
		tail := f.Inst(b.lastInst)
		tail.next = inst.ID
		inst.prev = b.lastInst
	}
	b.lastInst = inst.ID
	f.recordOperandUses(inst.ID, inst.Operand)
}

// InsertInstBefore inserts inst immediately before mark in mark's block.
func (f *Function) InsertInstBefore(mark InstID, inst *Instruction) {
	m := f.Inst(mark)
	b := f.Block(m.Block)
	inst.Block = m.Block
	inst.unbound = false
	inst.prev, inst.next = m.prev, mark
	if m.prev != instIDInvalid {
		f.Inst(m.prev).next = inst.ID
	} else {
		b.firstInst = inst.ID
	}
	m.prev = inst.ID
	f.recordOperandUses(inst.ID, inst.Operand)
}

// InsertInstAfter inserts inst immediately after mark in mark's block.
func (f *Function) InsertInstAfter(mark InstID, inst *Instruction) {
	m := f.Inst(mark)
	b := f.Block(m.Block)
	inst.Block = m.Block
	inst.unbound = false
	inst.prev, inst.next = mark, m.next
	if m.next != instIDInvalid {
		f.Inst(m.next).prev = inst.ID
	} else {
		b.lastInst = inst.ID
	}
	m.next = inst.ID
	f.recordOperandUses(inst.ID, inst.Operand)
}

// InsertInstAtStart inserts inst at the head of block's instruction list.
func (f *Function) InsertInstAtStart(block BlockID, inst *Instruction) {
	b := f.Block(block)
	if b.firstInst == instIDInvalid {
		f.AppendInst(block, inst)
		return
	}
	f.InsertInstBefore(b.firstInst, inst)
}

// RemoveInst detaches id from the layout: it is unlinked from its block's
// instruction list and its layout back-pointers are marked unbound, but the
// record remains in the arena so outstanding ids elsewhere stay valid.
// Passes iterating by layout no longer see it; the use-def back-links for
// its operands are dropped.
func (f *Function) RemoveInst(id InstID) {
	inst := f.Inst(id)
	if inst.unbound {
		return
	}
	b := f.Block(inst.Block)
	if inst.prev != instIDInvalid {
		f.Inst(inst.prev).next = inst.next
	} else {
		b.firstInst = inst.next
	}
	if inst.next != instIDInvalid {
		f.Inst(inst.next).prev = inst.prev
	} else {
		b.lastInst = inst.prev
	}
	f.dropOperandUses(id, inst.Operand)
	inst.prev, inst.next = instIDInvalid, instIDInvalid
	inst.unbound = true
}

// InstsOf iterates block's instructions in layout order.
func (f *Function) InstsOf(block BlockID) []InstID {
	b := f.Block(block)
	out := make([]InstID, 0)
	for id := b.firstInst; id != instIDInvalid; id = f.Inst(id).next {
		out = append(out, id)
	}
	return out
}

// NewPlaceholder materialises a forward-reference placeholder for a name
// an IR text parser saw used before it was defined: opcode OpInvalid,
// bound into the name table, not yet attached to any block. The definition
// site later calls ReplaceInst with the same id.
func (f *Function) NewPlaceholder(name string, ty types.Type) Value {
	id, inst := f.instrs.Allocate()
	inst.ID = InstID(id)
	inst.Opcode = OpInvalid
	inst.Name = name
	inst.unbound = true
	f.placeholders[inst.ID] = struct{}{}
	v := valInstr(inst.ID)
	if name != "" {
		f.nameTable[name] = v
	}
	return v
}

// ReplaceInst mutates the placeholder (or any other already-allocated
// instruction) at id in place with real's contents, preserving id so
// earlier uses recorded against it remain valid. real must not itself be
// attached to a block yet; the caller is expected to have built it via
// NewInstruction and populated its Operand/Ty, then call AppendInst-
// equivalent insertion through this function instead of real's own
// (discarded) id.
func (f *Function) ReplaceInst(id InstID, real *Instruction) {
	dst := f.Inst(id)
	wasPlaceholder := dst.Opcode == OpInvalid
	name := dst.Name
	dst.Opcode = real.Opcode
	dst.Operand = real.Operand
	dst.Ty = real.Ty
	dst.Metadata = real.Metadata
	if wasPlaceholder {
		delete(f.placeholders, id)
	}
	dst.Name = name
	f.recordOperandUses(id, dst.Operand)
}

// CheckNoPlaceholdersSurvive fails loudly if any forward-reference
// placeholder was never resolved.
func (f *Function) CheckNoPlaceholdersSurvive() error {
	if len(f.placeholders) == 0 {
		return nil
	}
	for id := range f.placeholders {
		return &UnresolvedForwardRefError{Func: f.Name, Inst: id, Name: f.Inst(id).Name}
	}
	return nil
}

// UnresolvedForwardRefError reports a forward-referenced name that was
// never defined.
type UnresolvedForwardRefError struct {
	Func string
	Inst InstID
	Name string
}

func (e *UnresolvedForwardRefError) Error() string {
	return "BUG: unresolved forward reference %" + e.Name + " in function @" + e.Func
}

// FinalizeCFG computes each block's Preds/Succs from its terminator
// instruction. Call once after all of a function's blocks and
// instructions have been constructed.
func (f *Function) FinalizeCFG() {
	for _, bid := range f.Blocks() {
		b := f.Block(bid)
		b.Succs = b.Succs[:0]
		b.Preds = b.Preds[:0]
	}
	for _, bid := range f.Blocks() {
		b := f.Block(bid)
		if b.lastInst == instIDInvalid {
			continue
		}
		term := f.Inst(b.lastInst)
		targets := term.Operand.Blocks
		for _, succ := range targets {
			sb := f.Block(succ)
			b.Succs = append(b.Succs, succ)
			sb.Preds = append(sb.Preds, bid)
		}
	}
}
