package amd64

import (
	"fmt"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/diag"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// This file is the lowering engine: it walks one ir.Function in layout
// order and emits a mir.Func, folding address modes as it goes, driven by
// a per-block "lower on demand" loop with a fixed fusion precedence
// (gep+load/store, load+sext, icmp+condbr).

// TodoError reports a lowering pattern the selector does not recognise. No
// partial machine IR is committed for a failing function: the caller
// receives this error from Lower before any mir.Func is returned.
type TodoError struct {
	Func string
	Msg  string
}

func (e *TodoError) Error() string { return "Todo: " + e.Msg + " (in @" + e.Func + ")" }

func todo(fn, format string, args ...any) error {
	return &TodoError{Func: fn, Msg: fmt.Sprintf(format, args...)}
}

// Lowerer holds the per-function state the lowering engine threads through
// its recursive, on-demand materialisation: the slot store, the
// inst->vreg/slot maps, the merged-inst set, and the entry-block argument
// vregs.
type Lowerer struct {
	fn      *ir.Function
	dl      *ir.DataLayout
	typeIDs *types.Interner
	mf      *mir.Func
	slots   *mir.Slots

	blockOf  map[ir.BlockID]mir.BlockID
	instVReg map[ir.InstID]mir.VReg
	instSlot map[ir.InstID]mir.SlotID
	merged   map[ir.InstID]bool
	argVRegs []mir.VReg

	cur   ir.BlockID
	curMB mir.BlockID

	foldAddressModes bool
}

// Option tunes one Lower call away from its default behaviour. Callers that
// don't need the default (cmd/vicis's --no-fold-address flag) pass one in;
// everything else, including every existing call site and test, is
// unaffected.
type Option func(*Lowerer)

// WithFoldAddressModes toggles the GEP/alloca-escape address-mode folding
// fusions. Lower defaults to folding enabled; passing false makes every
// load/store address materialise into its own register instead, useful
// for comparing codegen shape or isolating a folding bug.
func WithFoldAddressModes(enabled bool) Option {
	return func(l *Lowerer) { l.foldAddressModes = enabled }
}

// Lower translates fn into a machine function, using dl for alloca/GEP
// size-and-offset queries.
func Lower(fn *ir.Function, dl *ir.DataLayout, opts ...Option) (*mir.Func, *mir.Slots, error) {
	log := diag.Func("lower", fn.Name)
	log.Debug().Msg("lowering started")

	l := &Lowerer{
		fn:               fn,
		dl:               dl,
		typeIDs:          fn.Module.Types,
		mf:               mir.NewFunc(fn.Name),
		slots:            mir.NewSlots(),
		blockOf:          make(map[ir.BlockID]mir.BlockID),
		instVReg:         make(map[ir.InstID]mir.VReg),
		instSlot:         make(map[ir.InstID]mir.SlotID),
		merged:           make(map[ir.InstID]bool),
		foldAddressModes: true,
	}
	for _, opt := range opts {
		opt(l)
	}

	blocks := fn.Blocks()
	if len(blocks) == 0 {
		log.Debug().Msg("lowering finished (empty function)")
		return l.mf, l.slots, nil
	}
	for _, bid := range blocks {
		l.blockOf[bid] = l.mf.AppendBlock(fn.Block(bid).Name)
	}
	if err := l.lowerPrologue(blocks[0]); err != nil {
		log.Error().Err(err).Msg("lowering failed in entry prologue")
		return nil, nil, err
	}
	for _, bid := range blocks {
		if err := l.lowerBlock(bid); err != nil {
			log.Error().Err(err).Int("block", int(bid)).Msg("lowering failed")
			return nil, nil, err
		}
	}
	log.Debug().Int("blocks", len(blocks)).Msg("lowering finished")
	return l.mf, l.slots, nil
}

// lowerPrologue copies each parameter out of its ABI register into a fresh
// vreg, the entry-block prologue every function gets.
func (l *Lowerer) lowerPrologue(entry ir.BlockID) error {
	mb := l.blockOf[entry]
	l.argVRegs = make([]mir.VReg, len(l.fn.Sig.Params))
	if len(l.fn.Sig.Params) > len(ArgRegs) {
		return todo(l.fn.Name, "functions with more than %d integer/pointer parameters are not supported (no stack-argument ABI)", len(ArgRegs))
	}
	for i, pty := range l.fn.Sig.Params {
		dst := l.mf.AllocVReg()
		width := SizeClass(pty, l.typeIDs)
		src := l.physReg(ArgRegs[i])
		l.emit(mb, movOpForWidth(width), mir.RegDef(dst), mir.Reg(src))
		l.argVRegs[i] = dst
	}
	return nil
}

// lowerBlock lowers one block: allocas and phis first, then the remaining
// instructions in layout order, skipping anything deferred to lazy
// materialisation or already folded into another instruction.
func (l *Lowerer) lowerBlock(bid ir.BlockID) error {
	l.cur = bid
	l.curMB = l.blockOf[bid]

	for _, iid := range l.fn.InstsOf(bid) {
		inst := l.fn.Inst(iid)
		switch inst.Opcode {
		case ir.OpAlloca:
			l.lowerAlloca(iid, inst)
		case ir.OpPhi:
			if err := l.lowerPhiDecl(iid, inst); err != nil {
				return err
			}
		}
	}

	for _, iid := range l.fn.InstsOf(bid) {
		inst := l.fn.Inst(iid)
		if inst.Opcode == ir.OpAlloca || inst.Opcode == ir.OpPhi {
			continue
		}
		if l.merged[iid] {
			continue
		}
		if l.shouldDefer(iid, inst) {
			continue
		}
		if err := l.lowerInst(iid); err != nil {
			return err
		}
	}
	return nil
}

// shouldDefer reports whether iid should be skipped in program order and
// lowered lazily on first demand.
func (l *Lowerer) shouldDefer(iid ir.InstID, inst *ir.Instruction) bool {
	if inst.Opcode.HasSideEffects() {
		return false
	}
	for _, uid := range l.fn.UsersOf(ir.ValueForInst(iid)) {
		if l.fn.Inst(uid).Block != l.cur {
			return false
		}
	}
	return true
}

// getInstOutput returns the vreg holding iid's result, lowering it now if
// it's a not-yet-materialised, side-effect-free instruction in the current
// block.
func (l *Lowerer) getInstOutput(iid ir.InstID) (mir.VReg, error) {
	if vr, ok := l.instVReg[iid]; ok {
		return vr, nil
	}
	inst := l.fn.Inst(iid)
	if inst.Block != l.cur || inst.Opcode.HasSideEffects() {
		vr := l.mf.AllocVReg()
		l.instVReg[iid] = vr
		return vr, nil
	}
	if err := l.lowerInst(iid); err != nil {
		return 0, err
	}
	vr, ok := l.instVReg[iid]
	if !ok {
		return 0, fmt.Errorf("BUG: lowering %s produced no result vreg", inst.Opcode)
	}
	return vr, nil
}

// destVReg returns iid's destination vreg, reusing one already reserved by
// an earlier cross-block forward demand instead of allocating a fresh one.
func (l *Lowerer) destVReg(iid ir.InstID) mir.VReg {
	if vr, ok := l.instVReg[iid]; ok {
		return vr
	}
	vr := l.mf.AllocVReg()
	l.instVReg[iid] = vr
	return vr
}

func (l *Lowerer) emit(b mir.BlockID, op Op, operands ...mir.Operand) *mir.Instr {
	inst := newInstr(l.mf, op, operands...)
	l.mf.AppendInstr(b, inst)
	return inst
}

func (l *Lowerer) emitMem(op Op, first mir.Operand, mem mir.MemOperand) *mir.Instr {
	operands := append([]mir.Operand{first}, mem.Encode()...)
	return l.emit(l.curMB, op, operands...)
}

// emitToMem is emitMem with the memory operand in destination position, the
// store shape: `mov [mem], src`.
func (l *Lowerer) emitToMem(op Op, mem mir.MemOperand, src mir.Operand) *mir.Instr {
	operands := append(mem.Encode(), src)
	return l.emit(l.curMB, op, operands...)
}

// physReg models a fixed physical-register reference (an ABI argument slot,
// the return register, a call's implicit clobber) as a freshly allocated
// vreg pre-assigned to r — the same representation a register allocator
// would leave behind after coalescing, so liveness and printing need no
// separate "bare physical register operand" case.
func (l *Lowerer) physReg(r mir.RealReg) mir.VReg {
	return l.mf.AllocVReg().WithRealReg(r)
}

func movOpForWidth(w int) Op {
	switch w {
	case 8:
		return OpMOVrr8
	case 32:
		return OpMOVrr32
	case 64:
		return OpMOVrr64
	default:
		panic("BUG: unexpected register width class")
	}
}

func loadOpForWidth(w int) Op {
	switch w {
	case 8:
		return OpMOVrm8
	case 32:
		return OpMOVrm32
	case 64:
		return OpMOVrm64
	default:
		panic("BUG: unexpected load width class")
	}
}

func storeOpForWidth(w int) Op {
	switch w {
	case 8:
		return OpMOVmr8
	case 32:
		return OpMOVmr32
	case 64:
		return OpMOVmr64
	default:
		panic("BUG: unexpected store width class")
	}
}

func storeImmOpForWidth(w int) Op {
	switch w {
	case 8:
		return OpMOVmi8
	case 32:
		return OpMOVmi32
	case 64:
		return OpMOVmi64
	default:
		panic("BUG: unexpected store width class")
	}
}

// lowerInst dispatches a single not-yet-materialised instruction to its
// pattern. Called either in program order by lowerBlock or recursively by
// getInstOutput.
func (l *Lowerer) lowerInst(iid ir.InstID) error {
	inst := l.fn.Inst(iid)
	switch inst.Opcode {
	case ir.OpLoad:
		return l.lowerLoad(iid, inst)
	case ir.OpStore:
		return l.lowerStore(iid, inst)
	case ir.OpAdd, ir.OpSub, ir.OpMul:
		return l.lowerBinOp(iid, inst)
	case ir.OpAnd, ir.OpOr:
		return l.lowerBinOp(iid, inst)
	case ir.OpSDiv, ir.OpSRem:
		return l.lowerDivRem(iid, inst)
	case ir.OpShl, ir.OpAShr, ir.OpLShr:
		return l.lowerShift(iid, inst)
	case ir.OpICmp:
		return l.lowerICmp(iid, inst)
	case ir.OpSExt, ir.OpZExt:
		return l.lowerExtend(iid, inst)
	case ir.OpBitcast:
		return l.lowerBitcast(iid, inst)
	case ir.OpTrunc:
		return l.lowerTrunc(iid, inst)
	case ir.OpIntToPtr, ir.OpPtrToInt:
		return l.lowerNoopConvert(iid, inst)
	case ir.OpGetElementPtr:
		return l.lowerGetElementPtr(iid, inst)
	case ir.OpCall:
		return l.lowerCall(iid, inst)
	case ir.OpInsertValue, ir.OpExtractValue:
		return todo(l.fn.Name, "%s on aggregate values is not implemented", inst.Opcode)
	case ir.OpBr:
		return l.lowerBr(inst)
	case ir.OpCondBr:
		return l.lowerCondBr(iid, inst)
	case ir.OpSwitch:
		return todo(l.fn.Name, "switch lowering is not implemented")
	case ir.OpRet:
		return l.lowerRet(inst)
	case ir.OpUnreachable:
		l.emit(l.curMB, OpNop)
		return nil
	case ir.OpLandingPad, ir.OpResume, ir.OpInvoke:
		return todo(l.fn.Name, "%s is not implemented by this back end", inst.Opcode)
	default:
		return todo(l.fn.Name, "unrecognised opcode %s", inst.Opcode)
	}
}

// lowerAlloca records a frame slot; no machine instruction is emitted unless
// the alloca's address escapes, in which case it's materialised via lea.
func (l *Lowerer) lowerAlloca(iid ir.InstID, inst *ir.Instruction) {
	allocTy := inst.Operand.Types[0]
	slot := l.slots.Add(iid, l.dl.SizeOf(allocTy), l.dl.AlignOf(allocTy))
	l.instSlot[iid] = slot
	// With address-mode folding disabled, tryFoldPointer never resolves a
	// direct alloca reference, so every alloca must materialise its address
	// up front rather than relying on the per-use escape analysis below.
	if !l.foldAddressModes || l.allocaEscapes(iid) {
		l.slots.MarkEscaped(slot)
		dst := l.destVReg(iid)
		l.emitMem(OpLEA, mir.RegDef(dst), mir.MemOperand{Slot: slot})
	}
}

// allocaEscapes approximates capture analysis: the slot's address escapes
// unless every use is a load addressing it, a getelementptr that may fold
// further, or a store that targets it (rather than storing its address as a
// value).
func (l *Lowerer) allocaEscapes(iid ir.InstID) bool {
	for _, uid := range l.fn.UsersOf(ir.ValueForInst(iid)) {
		u := l.fn.Inst(uid)
		switch u.Opcode {
		case ir.OpLoad, ir.OpGetElementPtr:
		case ir.OpStore:
			if u.Operand.Values[0].Kind == ir.ValueInstr && u.Operand.Values[0].InstID() == iid {
				return true
			}
		default:
			return true
		}
	}
	return false
}

// lowerPhiDecl pre-declares a phi's destination and emits a machine-level
// Phi instruction carrying (predecessor, incoming-vreg) pairs, preserved for
// a later allocator pass to lower to copies on predecessor edges.
func (l *Lowerer) lowerPhiDecl(iid ir.InstID, inst *ir.Instruction) error {
	dst := l.destVReg(iid)
	operands := []mir.Operand{mir.RegDef(dst)}
	for _, inc := range inst.Operand.Phis {
		predMB, ok := l.blockOf[inc.Pred]
		if !ok {
			return fmt.Errorf("BUG: phi incoming from an unknown predecessor block")
		}
		vr, err := l.materialize(inc.Value)
		if err != nil {
			return err
		}
		operands = append(operands, mir.BlockOperand(predMB), mir.Reg(vr))
	}
	l.emit(l.curMB, OpPhi, operands...)
	return nil
}

// tryFoldPointer attempts to resolve ptr into a structured memory operand
// without materialising an address register: directly for an alloca slot,
// or by folding a getelementptr whose sole user is this load/store and
// that hasn't been materialised yet.
func (l *Lowerer) tryFoldPointer(ptr ir.Value, user ir.InstID) (mir.MemOperand, bool, error) {
	if !l.foldAddressModes {
		return mir.MemOperand{}, false, nil
	}
	if ptr.Kind == ir.ValueInstr {
		if slot, ok := l.instSlot[ptr.InstID()]; ok {
			return mir.MemOperand{Slot: slot}, true, nil
		}
	}
	if ptr.Kind == ir.ValueInstr {
		gid := ptr.InstID()
		gep := l.fn.Inst(gid)
		if gep.Opcode == ir.OpGetElementPtr && !l.merged[gid] {
			if _, done := l.instVReg[gid]; !done {
				users := l.fn.UsersOf(ir.ValueForInst(gid))
				if len(users) == 1 && users[0] == user {
					mem, err := l.gepMemOperand(gep)
					if err != nil {
						return mir.MemOperand{}, false, err
					}
					l.merged[gid] = true
					return mem, true, nil
				}
			}
		}
	}
	return mir.MemOperand{}, false, nil
}

// gepMemOperand computes the folded memory operand for the two index-shape
// patterns this lowerer handles: (const idx0, const idx1) and (const idx0,
// variable idx1). Both require idx0 constant; anything else is a Todo.
func (l *Lowerer) gepMemOperand(gep *ir.Instruction) (mir.MemOperand, error) {
	op := gep.Operand
	baseTy := op.Types[0]
	baseVal := op.Values[0]

	var mem mir.MemOperand
	if baseVal.Kind == ir.ValueInstr {
		if slot, ok := l.instSlot[baseVal.InstID()]; ok {
			mem.Slot = slot
		}
	}
	if mem.Slot == mir.SlotInvalid {
		base, err := l.materialize(baseVal)
		if err != nil {
			return mir.MemOperand{}, err
		}
		mem.Base = base
	}

	if len(op.Ints) != 2 {
		return mir.MemOperand{}, todo(l.fn.Name, "getelementptr fusion only handles exactly two indices, got %d", len(op.Ints))
	}
	if op.GEPVariable[0] {
		return mir.MemOperand{}, todo(l.fn.Name, "getelementptr fusion requires the first index to be constant")
	}
	mem.Disp += int32(op.Ints[0] * int64(l.dl.SizeOf(baseTy)))

	if !op.GEPVariable[1] {
		var offset uint64
		if l.typeIDs.Kind(baseTy) == types.KindStruct {
			offset = l.dl.FieldOffset(baseTy, int(op.Ints[1]))
		} else {
			offset = uint64(op.Ints[1]) * l.dl.SizeOf(l.typeIDs.ElementAt(baseTy, 0))
		}
		mem.Disp += int32(offset)
		return mem, nil
	}

	if l.typeIDs.Kind(baseTy) == types.KindStruct {
		return mir.MemOperand{}, todo(l.fn.Name, "getelementptr fusion requires a constant field index into a struct")
	}
	elemTy := l.typeIDs.ElementAt(baseTy, 0)
	scale := l.dl.SizeOf(elemTy)
	if scale != 1 && scale != 2 && scale != 4 && scale != 8 {
		return mir.MemOperand{}, todo(l.fn.Name, "getelementptr element size %d is not a valid x86 addressing scale", scale)
	}
	idxVal := op.Values[1] // Values[0] is the base; idx0 is constant so idx1's runtime value is Values[1].
	idxVReg, err := l.materialize(idxVal)
	if err != nil {
		return mir.MemOperand{}, err
	}
	mem.Index = idxVReg
	mem.Scale = int32(scale)
	return mem, nil
}

func (l *Lowerer) lowerLoad(iid ir.InstID, inst *ir.Instruction) error {
	ptr := inst.Operand.Values[0]
	mem, folded, err := l.tryFoldPointer(ptr, iid)
	if err != nil {
		return err
	}
	if !folded {
		base, err := l.materialize(ptr)
		if err != nil {
			return err
		}
		mem = mir.MemOperand{Base: base}
	}
	dst := l.destVReg(iid)
	l.emitMem(loadOpForWidth(SizeClass(inst.Ty, l.typeIDs)), mir.RegDef(dst), mem)
	return nil
}

func (l *Lowerer) lowerStore(iid ir.InstID, inst *ir.Instruction) error {
	val, ptr := inst.Operand.Values[0], inst.Operand.Values[1]
	mem, folded, err := l.tryFoldPointer(ptr, iid)
	if err != nil {
		return err
	}
	if !folded {
		base, err := l.materialize(ptr)
		if err != nil {
			return err
		}
		mem = mir.MemOperand{Base: base}
	}
	width := SizeClass(l.fn.TypeOf(val), l.typeIDs)
	// A 64-bit store-immediate sign-extends a 32-bit immediate; wider
	// constants must go through a register.
	if imm, ok := l.constImmediate(val); ok && int64(int32(imm)) == imm {
		immOp := mir.Imm32(int32(imm))
		if width == 8 {
			immOp = mir.Imm8(int8(imm))
		}
		l.emitToMem(storeImmOpForWidth(width), mem, immOp)
		return nil
	}
	src, err := l.materialize(val)
	if err != nil {
		return err
	}
	l.emitToMem(storeOpForWidth(width), mem, mir.Reg(src))
	return nil
}

func binOpcode(op ir.Opcode, imm bool) Op {
	switch op {
	case ir.OpAdd:
		if imm {
			return OpADDri32
		}
		return OpADDrr32
	case ir.OpSub:
		if imm {
			return OpSUBri32
		}
		return OpSUBrr32
	case ir.OpMul:
		return OpIMULrr32
	case ir.OpAnd:
		if imm {
			return OpANDri32
		}
		return OpANDrr32
	case ir.OpOr:
		if imm {
			return OpORri32
		}
		return OpORrr32
	default:
		panic("BUG: binOpcode called with an unhandled opcode")
	}
}

// lowerBinOp implements the add/sub/mul/and/or pattern: copy the left
// operand into the result vreg, then apply the destructive two-operand form
// against the right operand.
func (l *Lowerer) lowerBinOp(iid ir.InstID, inst *ir.Instruction) error {
	lhs, rhs := inst.Operand.Values[0], inst.Operand.Values[1]
	lhsVReg, err := l.materialize(lhs)
	if err != nil {
		return err
	}
	if SizeClass(inst.Ty, l.typeIDs) == 64 {
		// Only 64-bit add has a two-operand form in this opcode set, used
		// by pointer arithmetic the GEP patterns didn't fold.
		if inst.Opcode != ir.OpAdd {
			return todo(l.fn.Name, "64-bit %s is not implemented", inst.Opcode)
		}
		rhsVReg, err := l.materialize(rhs)
		if err != nil {
			return err
		}
		dst := l.destVReg(iid)
		l.emit(l.curMB, OpMOVrr64, mir.RegDef(dst), mir.Reg(lhsVReg))
		l.emit(l.curMB, OpADDrr64, mir.RegRW(dst), mir.Reg(rhsVReg))
		return nil
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVrr32, mir.RegDef(dst), mir.Reg(lhsVReg))

	// mul's right operand must be a vreg (IMULrr32); the immediate-folding
	// optimisation only applies to add/sub/and/or.
	if inst.Opcode != ir.OpMul {
		if imm, ok := l.constImmediate(rhs); ok {
			l.emit(l.curMB, binOpcode(inst.Opcode, true), mir.RegRW(dst), mir.Imm32(int32(imm)))
			return nil
		}
	}
	rhsVReg, err := l.materialize(rhs)
	if err != nil {
		return err
	}
	l.emit(l.curMB, binOpcode(inst.Opcode, false), mir.RegRW(dst), mir.Reg(rhsVReg))
	return nil
}

// lowerICmp handles an icmp whose result did not fuse into a condbr: emit
// the CMP, then SETcc into the result vreg's low byte.
func (l *Lowerer) lowerICmp(iid ir.InstID, inst *ir.Instruction) error {
	if err := l.emitCmp(inst); err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, setccOpcode(inst.Operand.Cond), mir.RegDef(dst))
	return nil
}

// lowerTrunc is a plain register copy at the destination width: x86 narrows
// by using the sub-register, so no instruction beyond the move is needed.
func (l *Lowerer) lowerTrunc(iid ir.InstID, inst *ir.Instruction) error {
	srcVReg, err := l.materialize(inst.Operand.Values[0])
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, movOpForWidth(SizeClass(inst.Ty, l.typeIDs)), mir.RegDef(dst), mir.Reg(srcVReg))
	return nil
}

func shiftOpcode(op ir.Opcode, imm bool) Op {
	switch op {
	case ir.OpShl:
		if imm {
			return OpSHLri32
		}
		return OpSHLrr32
	case ir.OpAShr:
		if imm {
			return OpASHRri32
		}
		return OpASHRrr32
	case ir.OpLShr:
		if imm {
			return OpLSHRri32
		}
		return OpLSHRrr32
	default:
		panic("BUG: shiftOpcode called with an unhandled opcode")
	}
}

// lowerShift copies the left operand into the result vreg, then shifts it
// by an immediate count or by CL, the one register the variable-count forms
// accept.
func (l *Lowerer) lowerShift(iid ir.InstID, inst *ir.Instruction) error {
	if SizeClass(inst.Ty, l.typeIDs) != 32 {
		return todo(l.fn.Name, "%s is only implemented for 32-bit operands", inst.Opcode)
	}
	lhs, rhs := inst.Operand.Values[0], inst.Operand.Values[1]
	lhsVReg, err := l.materialize(lhs)
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVrr32, mir.RegDef(dst), mir.Reg(lhsVReg))

	if imm, ok := l.constImmediate(rhs); ok {
		l.emit(l.curMB, shiftOpcode(inst.Opcode, true), mir.RegRW(dst), mir.Imm8(int8(imm)))
		return nil
	}
	countVReg, err := l.materialize(rhs)
	if err != nil {
		return err
	}
	cl := l.physReg(RCX)
	l.emit(l.curMB, OpMOVrr32, mir.RegDef(cl), mir.Reg(countVReg))
	l.emit(l.curMB, shiftOpcode(inst.Opcode, false), mir.RegRW(dst), mir.Reg(cl))
	return nil
}

// lowerDivRem emits the cdq/idiv sequence: the dividend is pinned to EAX,
// cdq sign-extends it into EDX:EAX, idiv leaves the quotient in EAX and the
// remainder in EDX, and the one this instruction wants is copied out.
func (l *Lowerer) lowerDivRem(iid ir.InstID, inst *ir.Instruction) error {
	if SizeClass(inst.Ty, l.typeIDs) != 32 {
		return todo(l.fn.Name, "%s is only implemented for 32-bit operands", inst.Opcode)
	}
	lhs, rhs := inst.Operand.Values[0], inst.Operand.Values[1]
	lhsVReg, err := l.materialize(lhs)
	if err != nil {
		return err
	}
	// idiv has no immediate form.
	rhsVReg, err := l.materialize(rhs)
	if err != nil {
		return err
	}

	ax := l.physReg(RAX)
	dx := l.physReg(RDX)
	l.emit(l.curMB, OpMOVrr32, mir.RegDef(ax), mir.Reg(lhsVReg))
	l.emit(l.curMB, OpCDQ, mir.ImplicitUse(ax), mir.ImplicitDef(dx))
	l.emit(l.curMB, OpIDIVr32, mir.Reg(rhsVReg),
		mir.ImplicitUse(ax), mir.ImplicitUse(dx), mir.ImplicitDef(ax), mir.ImplicitDef(dx))

	dst := l.destVReg(iid)
	src := ax
	if inst.Opcode == ir.OpSRem {
		src = dx
	}
	l.emit(l.curMB, OpMOVrr32, mir.RegDef(dst), mir.Reg(src))
	return nil
}

func (l *Lowerer) emitCmp(cInst *ir.Instruction) error {
	lhs, rhs := cInst.Operand.Values[0], cInst.Operand.Values[1]
	lhsVReg, err := l.materialize(lhs)
	if err != nil {
		return err
	}
	if imm, ok := l.constImmediate(rhs); ok {
		l.emit(l.curMB, OpCMPri32, mir.Reg(lhsVReg), mir.Imm32(int32(imm)))
		return nil
	}
	rhsVReg, err := l.materialize(rhs)
	if err != nil {
		return err
	}
	l.emit(l.curMB, OpCMPrr32, mir.Reg(lhsVReg), mir.Reg(rhsVReg))
	return nil
}

// lowerCondBr implements the icmp+condbr and trunc-i1+condbr fusions;
// anything else materialises cond as a 0/1 byte and compares it against
// zero.
func (l *Lowerer) lowerCondBr(iid ir.InstID, inst *ir.Instruction) error {
	cond := inst.Operand.Values[0]
	trueMB := l.blockOf[inst.Operand.Blocks[0]]
	falseMB := l.blockOf[inst.Operand.Blocks[1]]

	if cond.Kind == ir.ValueInstr {
		cIID := cond.InstID()
		cInst := l.fn.Inst(cIID)
		_, alreadyDone := l.instVReg[cIID]
		if cInst.Block == l.cur && !l.merged[cIID] && !alreadyDone {
			users := l.fn.UsersOf(ir.ValueForInst(cIID))
			if len(users) == 1 && users[0] == iid {
				switch cInst.Opcode {
				case ir.OpICmp:
					if err := l.emitCmp(cInst); err != nil {
						return err
					}
					l.merged[cIID] = true
					l.emit(l.curMB, condJumpOpcode(cInst.Operand.Cond), mir.BlockOperand(trueMB))
					l.emit(l.curMB, OpJMP, mir.BlockOperand(falseMB))
					return nil
				case ir.OpTrunc:
					srcTy := l.fn.TypeOf(cInst.Operand.Values[0])
					if l.typeIDs.Kind(cInst.Ty) == types.KindI1 && l.typeIDs.Kind(srcTy) == types.KindI8 {
						src, err := l.materialize(cInst.Operand.Values[0])
						if err != nil {
							return err
						}
						l.emit(l.curMB, OpCMPri8, mir.Reg(src), mir.Imm8(0))
						l.merged[cIID] = true
						l.emit(l.curMB, OpJNE, mir.BlockOperand(trueMB))
						l.emit(l.curMB, OpJMP, mir.BlockOperand(falseMB))
						return nil
					}
				}
			}
		}
	}

	condVReg, err := l.materialize(cond)
	if err != nil {
		return err
	}
	l.emit(l.curMB, OpCMPri8, mir.Reg(condVReg), mir.Imm8(0))
	l.emit(l.curMB, OpJNE, mir.BlockOperand(trueMB))
	l.emit(l.curMB, OpJMP, mir.BlockOperand(falseMB))
	return nil
}

// sextOpcodes picks the (register-form, fused-memory-form) opcode pair for
// a sign extension from src to dst kind. ok is false for a width pair this
// selector has no pattern for.
func sextOpcodes(src, dst types.Kind) (rr, rm Op, ok bool) {
	switch {
	case src == types.KindI32 && dst == types.KindI64:
		return OpMOVSXDr64r32, OpMOVSXDr64m32, true
	case src == types.KindI8 && dst == types.KindI32:
		return OpMOVSXr32r8, OpMOVSXr32m8, true
	default:
		return 0, 0, false
	}
}

// lowerExtend implements sign/zero extension, fusing `load` + `sext` into a
// single memory-operand movsx/movsxd when the sext is the load's sole user.
// The single-user requirement is a conservative rule: fusing when the load
// has other consumers would duplicate the load.
func (l *Lowerer) lowerExtend(iid ir.InstID, inst *ir.Instruction) error {
	src := inst.Operand.Values[0]
	srcKind := l.typeIDs.Kind(l.fn.TypeOf(src))
	dstKind := l.typeIDs.Kind(inst.Ty)

	if inst.Opcode == ir.OpSExt {
		rr, rm, ok := sextOpcodes(srcKind, dstKind)
		if !ok {
			return todo(l.fn.Name, "sext from %s to %s is not implemented", srcKind, dstKind)
		}
		dst := l.destVReg(iid)
		if src.Kind == ir.ValueInstr {
			lIID := src.InstID()
			lInst := l.fn.Inst(lIID)
			_, alreadyDone := l.instVReg[lIID]
			if lInst.Opcode == ir.OpLoad && lInst.Block == l.cur && !l.merged[lIID] && !alreadyDone {
				users := l.fn.UsersOf(ir.ValueForInst(lIID))
				if len(users) == 1 && users[0] == iid {
					ptr := lInst.Operand.Values[0]
					mem, folded, err := l.tryFoldPointer(ptr, lIID)
					if err != nil {
						return err
					}
					if !folded {
						base, err := l.materialize(ptr)
						if err != nil {
							return err
						}
						mem = mir.MemOperand{Base: base}
					}
					l.merged[lIID] = true
					l.emitMem(rm, mir.RegDef(dst), mem)
					return nil
				}
			}
		}
		srcVReg, err := l.materialize(src)
		if err != nil {
			return err
		}
		l.emit(l.curMB, rr, mir.RegDef(dst), mir.Reg(srcVReg))
		return nil
	}

	// zext: only the i1/i8 -> i32 widening has a pattern; anything wider is
	// a zero-cost move on x86-64 (writes to a 32-bit register clear the
	// upper half), handled by the same movzx for uniformity.
	if srcKind != types.KindI1 && srcKind != types.KindI8 {
		return todo(l.fn.Name, "zext from %s to %s is not implemented", srcKind, dstKind)
	}
	srcVReg, err := l.materialize(src)
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVZXr32r8, mir.RegDef(dst), mir.Reg(srcVReg))
	return nil
}

// lowerBitcast requires equal, 8-byte operand sizes and is emitted as a
// plain register copy.
func (l *Lowerer) lowerBitcast(iid ir.InstID, inst *ir.Instruction) error {
	src := inst.Operand.Values[0]
	srcTy := l.fn.TypeOf(src)
	if l.dl.SizeOf(srcTy) != 8 || l.dl.SizeOf(inst.Ty) != 8 {
		return todo(l.fn.Name, "bitcast requires 8-byte operands on both sides")
	}
	srcVReg, err := l.materialize(src)
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVrr64, mir.RegDef(dst), mir.Reg(srcVReg))
	return nil
}

// lowerNoopConvert lowers inttoptr/ptrtoint, both no-op 8-byte register
// copies on this target.
func (l *Lowerer) lowerNoopConvert(iid ir.InstID, inst *ir.Instruction) error {
	src := inst.Operand.Values[0]
	srcVReg, err := l.materialize(src)
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVrr64, mir.RegDef(dst), mir.Reg(srcVReg))
	return nil
}

// lowerGetElementPtr lowers a getelementptr that tryFoldPointer did not (or
// could not) fold into a caller's memory operand: a running-pointer sequence
// of LEA, and for non-power-of-two scales, IMULrr64i32 + ADDrr64.
func (l *Lowerer) lowerGetElementPtr(iid ir.InstID, inst *ir.Instruction) error {
	op := inst.Operand
	baseTy := op.Types[0]
	baseVReg, err := l.materialize(op.Values[0])
	if err != nil {
		return err
	}
	dst := l.destVReg(iid)
	l.emit(l.curMB, OpMOVrr64, mir.RegDef(dst), mir.Reg(baseVReg))

	varIdx := 1
	curTy := baseTy
	for i, constIdx := range op.Ints {
		scale := l.dl.SizeOf(curTy)
		if !op.GEPVariable[i] {
			if disp := constIdx * int64(scale); disp != 0 {
				l.emitMem(OpLEA, mir.RegDef(dst), mir.MemOperand{Base: dst, Disp: int32(disp)})
			}
		} else {
			idxVReg, err := l.materialize(op.Values[varIdx])
			if err != nil {
				return err
			}
			varIdx++
			switch scale {
			case 1, 2, 4, 8:
				l.emitMem(OpLEA, mir.RegDef(dst), mir.MemOperand{Base: dst, Index: idxVReg, Scale: int32(scale)})
			default:
				tmp := l.mf.AllocVReg()
				l.emit(l.curMB, OpIMULrr64i32, mir.RegDef(tmp), mir.Reg(idxVReg), mir.Imm32(int32(scale)))
				l.emit(l.curMB, OpADDrr64, mir.RegRW(dst), mir.Reg(tmp))
			}
		}
		switch l.typeIDs.Kind(curTy) {
		case types.KindStruct:
			curTy = l.typeIDs.ElementAt(curTy, int(constIdx))
		case types.KindArray, types.KindPointer:
			curTy = l.typeIDs.ElementAt(curTy, 0)
		}
	}
	return nil
}

// lowerCall moves arguments into ABI registers, emits CALL with an implicit
// def of the return register, then copies the return register to the call's
// result vreg if it has any users.
func (l *Lowerer) lowerCall(iid ir.InstID, inst *ir.Instruction) error {
	args := inst.Operand.Values
	if len(args) > len(ArgRegs) {
		return todo(l.fn.Name, "calls with more than %d arguments are not supported (no stack-argument ABI)", len(ArgRegs))
	}
	for i, a := range args {
		aVReg, err := l.materialize(a)
		if err != nil {
			return err
		}
		width := SizeClass(l.fn.TypeOf(a), l.typeIDs)
		argDst := l.physReg(ArgRegs[i])
		l.emit(l.curMB, movOpForWidth(width), mir.RegDef(argDst), mir.Reg(aVReg))
	}

	retDef := l.physReg(ReturnReg)
	l.emit(l.curMB, OpCALL, mir.Lbl(inst.Operand.Sym), mir.ImplicitDef(retDef))

	if l.typeIDs.Kind(inst.Ty) != types.KindVoid && len(l.fn.UsersOf(ir.ValueForInst(iid))) > 0 {
		dst := l.destVReg(iid)
		l.emit(l.curMB, movOpForWidth(SizeClass(inst.Ty, l.typeIDs)), mir.RegDef(dst), mir.Reg(retDef))
	}
	return nil
}

func (l *Lowerer) lowerRet(inst *ir.Instruction) error {
	if len(inst.Operand.Values) == 1 {
		v := inst.Operand.Values[0]
		vVReg, err := l.materialize(v)
		if err != nil {
			return err
		}
		dst := l.physReg(ReturnReg)
		l.emit(l.curMB, movOpForWidth(SizeClass(l.fn.TypeOf(v), l.typeIDs)), mir.RegDef(dst), mir.Reg(vVReg))
	}
	l.emit(l.curMB, OpRET)
	return nil
}

func (l *Lowerer) lowerBr(inst *ir.Instruction) error {
	l.emit(l.curMB, OpJMP, mir.BlockOperand(l.blockOf[inst.Operand.Blocks[0]]))
	return nil
}

// materialize forces v into a vreg, recursing through the lazy
// materialisation protocol for instruction results.
func (l *Lowerer) materialize(v ir.Value) (mir.VReg, error) {
	switch v.Kind {
	case ir.ValueInstr:
		return l.getInstOutput(v.InstID())
	case ir.ValueArg:
		return l.argVRegs[v.ArgIndex()], nil
	case ir.ValueConst:
		return l.materializeConst(v.ConstID())
	case ir.ValueInlineAsm:
		return l.lowerInlineAsm(v.InlineAsmID())
	default:
		return 0, fmt.Errorf("BUG: materialize called on an invalid Value")
	}
}

// constImmediate reports whether v is a constant that can stay an immediate
// operand rather than being loaded into a register first.
func (l *Lowerer) constImmediate(v ir.Value) (int64, bool) {
	if v.Kind != ir.ValueConst {
		return 0, false
	}
	c := l.fn.Module.Consts.Get(v.ConstID())
	switch c.Kind {
	case ir.ConstInt:
		return c.IntVal, true
	case ir.ConstNull:
		return 0, true
	default:
		return 0, false
	}
}

// lowerInlineAsm passes an inline-assembly-literal operand through to the
// printer verbatim as an INLINEASM pseudo-instruction. The instruction
// defines a fresh vreg so callers that expect a register result for every
// Value still get one, even though the pseudo-instruction itself is never
// interpreted by the lowerer again.
func (l *Lowerer) lowerInlineAsm(id uint32) (mir.VReg, error) {
	asm := l.fn.Module.InlineAsm(id)
	dst := l.mf.AllocVReg()
	l.emit(l.curMB, OpINLINEASM, mir.RegDef(dst), mir.Lbl(asm.Text))
	return dst, nil
}

// materializeConst materialises a constant needing a register: MOVri32/
// MOVri64 of the immediate, MOVri64 of a GlobalAddress operand for a
// global reference, and MOVri64 0 for null.
func (l *Lowerer) materializeConst(cid ir.ConstID) (mir.VReg, error) {
	c := l.fn.Module.Consts.Get(cid)
	dst := l.mf.AllocVReg()
	switch c.Kind {
	case ir.ConstInt, ir.ConstUndef, ir.ConstAggregateZero:
		if SizeClass(c.Ty, l.typeIDs) == 64 {
			l.emit(l.curMB, OpMOVri64, mir.RegDef(dst), mir.Imm64(c.IntVal))
		} else {
			l.emit(l.curMB, OpMOVri32, mir.RegDef(dst), mir.Imm32(int32(c.IntVal)))
		}
	case ir.ConstNull:
		l.emit(l.curMB, OpMOVri64, mir.RegDef(dst), mir.Imm64(0))
	case ir.ConstGlobal:
		l.emit(l.curMB, OpMOVri64, mir.RegDef(dst), mir.GlobalAddr(c.GlobalName))
	default:
		return 0, todo(l.fn.Name, "constant kind %d (array/struct/constexpr) is not supported outside a global initialiser", c.Kind)
	}
	return dst, nil
}
