package mir

// DataKind discriminates the alternatives an Operand's data can hold:
// physical register, virtual register, integer immediate (8/32/64), slot
// id, block id, symbolic label, global address, MemStart sentinel, or
// none.
type DataKind byte

const (
	DataNone DataKind = iota
	DataPhysReg
	DataVReg
	DataImm8
	DataImm32
	DataImm64
	DataSlot
	DataBlock
	DataLabel
	DataGlobalAddress
	DataMemStart
)

// SlotID names a stack-frame slot, owned by the Slots store.
type SlotID uint32

// SlotInvalid marks "not a frame slot" in memory operands.
const SlotInvalid SlotID = 0

// BlockID is a machine-IR block handle (mirrors ir.BlockID for the
// machine-level CFG built during lowering).
type BlockID uint32

// Operand is one operand slot of an Instr. The IsInput/IsOutput/
// IsImplicit flags are orthogonal to Kind/Data: an operand's role (read,
// written, or implicitly clobbered — e.g. CALL's implicit-def of the
// return register) is independent of what kind of location it names.
type Operand struct {
	Kind DataKind

	Reg    VReg    // DataPhysReg (RealReg packed as VReg) / DataVReg
	Imm    int64   // DataImm8/32/64
	Slot   SlotID  // DataSlot
	Block  BlockID // DataBlock
	Label  string  // DataLabel
	Global string  // DataGlobalAddress

	IsInput    bool
	IsOutput   bool
	IsImplicit bool
}

// Reg builds a plain register-read operand.
func Reg(v VReg) Operand { return Operand{Kind: DataVReg, Reg: v, IsInput: true} }

// RegDef builds a register-write operand.
func RegDef(v VReg) Operand { return Operand{Kind: DataVReg, Reg: v, IsOutput: true} }

// ImplicitDef builds an implicitly-clobbered register-write operand, used
// e.g. for CALL's implicit def of AL/EAX/RAX.
func ImplicitDef(v VReg) Operand {
	return Operand{Kind: DataVReg, Reg: v, IsOutput: true, IsImplicit: true}
}

// ImplicitUse builds an implicitly-read register operand, e.g. IDIV's read
// of EDX:EAX.
func ImplicitUse(v VReg) Operand {
	return Operand{Kind: DataVReg, Reg: v, IsInput: true, IsImplicit: true}
}

// RegRW builds a read-modify-write register operand, for the destructive
// two-operand x86 forms the lowering engine emits (e.g. `add dst, src`
// reads and writes dst in the same operand slot).
func RegRW(v VReg) Operand { return Operand{Kind: DataVReg, Reg: v, IsInput: true, IsOutput: true} }

// Imm8/Imm32/Imm64 build immediate-operand reads.
func Imm8(v int8) Operand   { return Operand{Kind: DataImm8, Imm: int64(v), IsInput: true} }
func Imm32(v int32) Operand { return Operand{Kind: DataImm32, Imm: int64(v), IsInput: true} }
func Imm64(v int64) Operand { return Operand{Kind: DataImm64, Imm: v, IsInput: true} }

// Lbl builds a symbolic-label operand read (e.g. CALL's target).
func Lbl(name string) Operand { return Operand{Kind: DataLabel, Label: name, IsInput: true} }

// GlobalAddr builds a global-address operand read.
func GlobalAddr(name string) Operand {
	return Operand{Kind: DataGlobalAddress, Global: name, IsInput: true}
}

// BlockOperand builds a branch-target operand read.
func BlockOperand(b BlockID) Operand { return Operand{Kind: DataBlock, Block: b, IsInput: true} }

// None builds an explicit "no operand here" placeholder, used to fill
// unused MemOperand sub-slots.
func None() Operand { return Operand{Kind: DataNone} }

// MemOperand is the structured memory-operand form an x86-64 addressing
// mode needs: "[base + imm + index*scale]" or "[label]", optionally rooted
// at a frame slot instead of a base register. The encoding fixes a six-
// sub-operand arity:
//
//	[0] Label  (DataLabel or DataNone)   — RIP-relative / symbol addressing
//	[1] Slot   (DataSlot or DataNone)    — frame-slot addressing
//	[2] Disp   (DataImm32)               — displacement, 0 if unused
//	[3] Base   (DataVReg/DataPhysReg or DataNone)
//	[4] Index  (DataVReg/DataPhysReg or DataNone)
//	[5] Scale  (DataImm32: 1, 2, 4, or 8; 0 means "no index")
//
// A fixed arity rather than a variable-length encoding keeps every operand
// at a known index regardless of which fields are in use; the choice is
// recorded in DESIGN.md and does not affect externally observable
// assembly.
type MemOperand struct {
	Label string
	Slot  SlotID
	Disp  int32
	Base  VReg
	Index VReg
	Scale int32
}

// MemOperandSubOperandCount is the fixed arity following a DataMemStart
// sentinel.
const MemOperandSubOperandCount = 6

// Encode expands m into a DataMemStart sentinel followed by exactly
// MemOperandSubOperandCount sub-operands, ready to be spliced into an
// Instr's operand vector.
func (m MemOperand) Encode() []Operand {
	ops := make([]Operand, 0, 1+MemOperandSubOperandCount)
	ops = append(ops, Operand{Kind: DataMemStart})

	if m.Label != "" {
		ops = append(ops, Operand{Kind: DataLabel, Label: m.Label, IsInput: true})
	} else {
		ops = append(ops, None())
	}

	if m.Slot != SlotInvalid {
		ops = append(ops, Operand{Kind: DataSlot, Slot: m.Slot, IsInput: true})
	} else {
		ops = append(ops, None())
	}

	ops = append(ops, Operand{Kind: DataImm32, Imm: int64(m.Disp), IsInput: true})

	if m.Base.Valid() {
		ops = append(ops, Reg(m.Base))
	} else {
		ops = append(ops, None())
	}

	if m.Index.Valid() {
		ops = append(ops, Reg(m.Index))
	} else {
		ops = append(ops, None())
	}

	if m.Scale != 0 {
		ops = append(ops, Operand{Kind: DataImm32, Imm: int64(m.Scale), IsInput: true})
	} else {
		ops = append(ops, None())
	}

	return ops
}

// DecodeMemOperand reads back a MemOperand encoded at ops[i] (which must
// hold a DataMemStart sentinel), returning the decoded value and the index
// just past its sub-operands. The amd64 printer uses it to render memory
// operands; MustValidateMemOperand checks the arity separately.
func DecodeMemOperand(ops []Operand, i int) (MemOperand, int) {
	if ops[i].Kind != DataMemStart {
		panic("BUG: DecodeMemOperand called on a non-MemStart operand")
	}
	sub := ops[i+1 : i+1+MemOperandSubOperandCount]
	var m MemOperand
	if sub[0].Kind == DataLabel {
		m.Label = sub[0].Label
	}
	if sub[1].Kind == DataSlot {
		m.Slot = sub[1].Slot
	}
	m.Disp = int32(sub[2].Imm)
	if sub[3].Kind != DataNone {
		m.Base = sub[3].Reg
	} else {
		m.Base = VRegInvalid
	}
	if sub[4].Kind != DataNone {
		m.Index = sub[4].Reg
	} else {
		m.Index = VRegInvalid
	}
	if sub[5].Kind != DataNone {
		m.Scale = int32(sub[5].Imm)
	}
	return m, i + 1 + MemOperandSubOperandCount
}

// MustValidateMemOperand panics unless ops[i:] has the fixed MemStart arity
// available.
func MustValidateMemOperand(ops []Operand, i int) {
	if ops[i].Kind != DataMemStart {
		panic("BUG: expected MemStart sentinel")
	}
	if i+1+MemOperandSubOperandCount > len(ops) {
		panic("BUG: MemStart sentinel missing its fixed sub-operand run")
	}
}
