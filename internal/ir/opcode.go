package ir

// Opcode enumerates the fixed instruction set this back end understands:
// an LLVM-like scalar instruction set rather than a WebAssembly one.
type Opcode uint16

const (
	// OpInvalid marks a forward-reference placeholder or an otherwise
	// unset Instruction. Any pass encountering it after parsing has
	// completed has found a bug, not a recoverable condition.
	OpInvalid Opcode = iota

	OpAlloca
	OpPhi
	OpLoad
	OpStore
	OpInsertValue
	OpExtractValue

	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpSRem
	OpAnd
	OpOr
	OpShl
	OpAShr
	OpLShr

	OpICmp

	OpSExt
	OpZExt
	OpBitcast
	OpTrunc
	OpIntToPtr
	OpPtrToInt

	OpGetElementPtr

	OpCall
	OpInvoke

	OpLandingPad
	OpResume

	OpBr
	OpCondBr
	OpSwitch

	OpRet
	OpUnreachable
)

var opcodeNames = map[Opcode]string{
	OpInvalid:       "<invalid>",
	OpAlloca:        "alloca",
	OpPhi:           "phi",
	OpLoad:          "load",
	OpStore:         "store",
	OpInsertValue:   "insertvalue",
	OpExtractValue:  "extractvalue",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpSDiv:          "sdiv",
	OpSRem:          "srem",
	OpAnd:           "and",
	OpOr:            "or",
	OpShl:           "shl",
	OpAShr:          "ashr",
	OpLShr:          "lshr",
	OpICmp:          "icmp",
	OpSExt:          "sext",
	OpZExt:          "zext",
	OpBitcast:       "bitcast",
	OpTrunc:         "trunc",
	OpIntToPtr:      "inttoptr",
	OpPtrToInt:      "ptrtoint",
	OpGetElementPtr: "getelementptr",
	OpCall:          "call",
	OpInvoke:        "invoke",
	OpLandingPad:    "landingpad",
	OpResume:        "resume",
	OpBr:            "br",
	OpCondBr:        "condbr",
	OpSwitch:        "switch",
	OpRet:           "ret",
	OpUnreachable:   "unreachable",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return "<unknown opcode>"
}

// IsTerminator reports whether o ends a basic block. Every block must end
// in exactly one terminator.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpBr, OpCondBr, OpSwitch, OpRet, OpUnreachable, OpResume:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether o's result (if any) cannot be reordered or
// dropped freely. Used by the lowering engine's lazy-materialisation rule:
// an instruction with side effects always gets an eagerly allocated vreg
// rather than being deferred to its first use.
func (o Opcode) HasSideEffects() bool {
	switch o {
	case OpStore, OpCall, OpInvoke, OpAlloca, OpLandingPad, OpResume,
		OpBr, OpCondBr, OpSwitch, OpRet, OpUnreachable:
		return true
	default:
		return false
	}
}

// IntegerCmpCond enumerates `icmp` predicates.
type IntegerCmpCond byte

const (
	ICmpEQ IntegerCmpCond = iota
	ICmpNE
	ICmpSLT
	ICmpSLE
	ICmpSGT
	ICmpSGE
	ICmpULT
	ICmpULE
	ICmpUGT
	ICmpUGE
)

func (c IntegerCmpCond) String() string {
	switch c {
	case ICmpEQ:
		return "eq"
	case ICmpNE:
		return "ne"
	case ICmpSLT:
		return "slt"
	case ICmpSLE:
		return "sle"
	case ICmpSGT:
		return "sgt"
	case ICmpSGE:
		return "sge"
	case ICmpULT:
		return "ult"
	case ICmpULE:
		return "ule"
	case ICmpUGT:
		return "ugt"
	case ICmpUGE:
		return "uge"
	default:
		return "<invalid icmp cond>"
	}
}

// Signed reports whether c is a signed comparison predicate.
func (c IntegerCmpCond) Signed() bool {
	switch c {
	case ICmpSLT, ICmpSLE, ICmpSGT, ICmpSGE:
		return true
	default:
		return false
	}
}

// Swap returns the predicate for (b cmp a) given c is (a cmp b).
func (c IntegerCmpCond) Swap() IntegerCmpCond {
	switch c {
	case ICmpSLT:
		return ICmpSGT
	case ICmpSLE:
		return ICmpSGE
	case ICmpSGT:
		return ICmpSLT
	case ICmpSGE:
		return ICmpSLE
	case ICmpULT:
		return ICmpUGT
	case ICmpULE:
		return ICmpUGE
	case ICmpUGT:
		return ICmpULT
	case ICmpUGE:
		return ICmpULE
	default:
		return c
	}
}
