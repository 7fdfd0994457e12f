package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// This file is the construction-facing API an IR text parser (and tests,
// standing in for one) uses to populate a Function's instruction and block
// state. Each Build* method allocates an Instruction, fills in its Operand
// according to the opcode's meaning, appends it to block, and — for
// value-producing opcodes — returns the Value naming its result.

func (f *Function) newNamedValue(block BlockID, op Opcode, ty types.Type, name string) (*Instruction, Value) {
	inst := f.NewInstruction(op, ty)
	inst.Ty = ty
	if name == "" {
		name = f.synthName()
	}
	inst.Name = name
	f.AppendInst(block, inst)
	v := valInstr(inst.ID)
	f.nameTable[name] = v
	return inst, v
}

// BuildAlloca emits `alloca allocType`. The result is always a pointer to
// allocType in address space 0.
func (f *Function) BuildAlloca(block BlockID, name string, allocType types.Type) Value {
	ptrTy := f.Module.Types.Pointer(allocType, 0)
	inst, v := f.newNamedValue(block, OpAlloca, ptrTy, name)
	inst.Operand.Types = []types.Type{allocType}
	return v
}

// BuildLoad emits `load ty, ptr`.
func (f *Function) BuildLoad(block BlockID, name string, ty types.Type, ptr Value) Value {
	inst, v := f.newNamedValue(block, OpLoad, ty, name)
	inst.Operand.Values = []Value{ptr}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildStore emits `store val, ptr`. Stores produce no value.
func (f *Function) BuildStore(block BlockID, val, ptr Value) {
	inst := f.NewInstruction(OpStore, types.Type{})
	inst.Operand.Values = []Value{val, ptr}
	f.AppendInst(block, inst)
}

// BuildBinOp emits a binary arithmetic/bitwise instruction
// (add/sub/mul/sdiv/srem/and/or/shl/ashr/lshr).
func (f *Function) BuildBinOp(block BlockID, op Opcode, name string, ty types.Type, lhs, rhs Value) Value {
	inst, v := f.newNamedValue(block, op, ty, name)
	inst.Operand.Values = []Value{lhs, rhs}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildICmp emits `icmp cond, lhs, rhs`; the result is always i1.
func (f *Function) BuildICmp(block BlockID, name string, cond IntegerCmpCond, lhs, rhs Value) Value {
	inst, v := f.newNamedValue(block, OpICmp, f.Module.Types.I1(), name)
	inst.Operand.Values = []Value{lhs, rhs}
	inst.Operand.Cond = cond
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildConvert emits a unary conversion instruction (sext/zext/bitcast/
// trunc/inttoptr/ptrtoint).
func (f *Function) BuildConvert(block BlockID, op Opcode, name string, destTy types.Type, operand Value) Value {
	inst, v := f.newNamedValue(block, op, destTy, name)
	inst.Operand.Values = []Value{operand}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// GEPIndex is one index of a getelementptr instruction: either a compile-
// time constant or a runtime Value.
type GEPIndex struct {
	IsConst bool
	Const   int64
	Var     Value
}

// BuildGEP emits `getelementptr baseTy, base, indices...`.
func (f *Function) BuildGEP(block BlockID, name string, baseTy, resultTy types.Type, base Value, indices []GEPIndex) Value {
	inst, v := f.newNamedValue(block, OpGetElementPtr, resultTy, name)
	inst.Operand.Types = []types.Type{baseTy}
	inst.Operand.Values = append(inst.Operand.Values, base)
	inst.Operand.Ints = make([]int64, len(indices))
	inst.Operand.GEPVariable = make([]bool, len(indices))
	for i, idx := range indices {
		if idx.IsConst {
			inst.Operand.Ints[i] = idx.Const
		} else {
			inst.Operand.GEPVariable[i] = true
			inst.Operand.Values = append(inst.Operand.Values, idx.Var)
		}
	}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildInsertValue emits `insertvalue agg, val, idx`.
func (f *Function) BuildInsertValue(block BlockID, name string, ty types.Type, agg, val Value, idx int64) Value {
	inst, v := f.newNamedValue(block, OpInsertValue, ty, name)
	inst.Operand.Values = []Value{agg, val}
	inst.Operand.Ints = []int64{idx}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildExtractValue emits `extractvalue agg, idx`.
func (f *Function) BuildExtractValue(block BlockID, name string, ty types.Type, agg Value, idx int64) Value {
	inst, v := f.newNamedValue(block, OpExtractValue, ty, name)
	inst.Operand.Values = []Value{agg}
	inst.Operand.Ints = []int64{idx}
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildCall emits `call sig, @callee, args...`. If retTy is the module's
// Void type, the result Value's Kind is still ValueInstr but has no
// meaningful users beyond the side effect.
func (f *Function) BuildCall(block BlockID, name, callee string, retTy types.Type, args []Value) Value {
	inst, v := f.newNamedValue(block, OpCall, retTy, name)
	inst.Operand.Sym = callee
	inst.Operand.Values = append([]Value(nil), args...)
	f.recordOperandUses(inst.ID, inst.Operand)
	return v
}

// BuildRet emits `ret val` (or `ret void` if val is invalid).
func (f *Function) BuildRet(block BlockID, val Value) {
	inst := f.NewInstruction(OpRet, types.Type{})
	if val.Valid() {
		inst.Operand.Values = []Value{val}
	}
	f.AppendInst(block, inst)
}

// BuildUnreachable emits `unreachable`.
func (f *Function) BuildUnreachable(block BlockID) {
	inst := f.NewInstruction(OpUnreachable, types.Type{})
	f.AppendInst(block, inst)
}

// BuildBr emits an unconditional branch `br label target`.
func (f *Function) BuildBr(block BlockID, target BlockID) {
	inst := f.NewInstruction(OpBr, types.Type{})
	inst.Operand.Blocks = []BlockID{target}
	f.AppendInst(block, inst)
}

// BuildCondBr emits `br i1 cond, label trueBlk, label falseBlk`.
func (f *Function) BuildCondBr(block BlockID, cond Value, trueBlk, falseBlk BlockID) {
	inst := f.NewInstruction(OpCondBr, types.Type{})
	inst.Operand.Values = []Value{cond}
	inst.Operand.Blocks = []BlockID{trueBlk, falseBlk}
	f.AppendInst(block, inst)
}

// SwitchCase is one (value, target) arm of a switch instruction.
type SwitchCase struct {
	Value  int64
	Target BlockID
}

// BuildSwitch emits `switch val, label default [ case, label target ]*`.
func (f *Function) BuildSwitch(block BlockID, val Value, def BlockID, cases []SwitchCase) {
	inst := f.NewInstruction(OpSwitch, types.Type{})
	inst.Operand.Values = []Value{val}
	inst.Operand.Blocks = append([]BlockID{def}, make([]BlockID, len(cases))...)
	inst.Operand.Ints = make([]int64, len(cases))
	for i, c := range cases {
		inst.Operand.Blocks[i+1] = c.Target
		inst.Operand.Ints[i] = c.Value
	}
	f.AppendInst(block, inst)
}

// BuildPhi emits an initially-empty phi instruction; incoming pairs are
// added with AddIncoming as predecessors become known, matching how a
// parser discovers a block's predecessors incrementally while reading its
// phis before having seen every branch into it.
func (f *Function) BuildPhi(block BlockID, name string, ty types.Type) InstID {
	inst, _ := f.newNamedValue(block, OpPhi, ty, name)
	return inst.ID
}

// AddIncoming appends one (value, predecessor) pair to a phi instruction.
func (f *Function) AddIncoming(phi InstID, val Value, pred BlockID) {
	inst := f.Inst(phi)
	inst.Operand.Phis = append(inst.Operand.Phis, PhiIncoming{Value: val, Pred: pred})
	f.addUse(val, phi)
}

// CheckPhiShape validates that every phi's incoming set matches its block's
// predecessor set exactly. Call after FinalizeCFG.
func (f *Function) CheckPhiShape() error {
	for _, bid := range f.Blocks() {
		b := f.Block(bid)
		for _, iid := range f.InstsOf(bid) {
			inst := f.Inst(iid)
			if inst.Opcode != OpPhi {
				continue
			}
			if len(inst.Operand.Phis) != len(b.Preds) {
				return &PhiShapeError{Inst: iid, Block: bid}
			}
			seen := make(map[BlockID]bool, len(b.Preds))
			for _, p := range b.Preds {
				seen[p] = true
			}
			for _, in := range inst.Operand.Phis {
				if !seen[in.Pred] {
					return &PhiShapeError{Inst: iid, Block: bid}
				}
			}
		}
	}
	return nil
}

// PhiShapeError reports a phi whose incoming set doesn't match its block's
// predecessor set.
type PhiShapeError struct {
	Inst  InstID
	Block BlockID
}

func (e *PhiShapeError) Error() string {
	return "BUG: phi shape mismatch in block"
}

// FindValueByName resolves a previously bound textual or synthesised name,
// materialising a forward-reference placeholder if it hasn't been defined
// yet.
func (f *Function) FindValueByName(name string, expected types.Type) Value {
	if v, ok := f.nameTable[name]; ok {
		return v
	}
	return f.NewPlaceholder(name, expected)
}
