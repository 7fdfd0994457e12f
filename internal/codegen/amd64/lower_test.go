package amd64

import (
	"testing"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/fixtures"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
	"github.com/stretchr/testify/require"
)

// lowerFixture looks up a registered fixture by name and returns its
// module, failing the test if no such fixture exists; callers lower the
// functions they need themselves.
func lowerFixture(t *testing.T, name string) *ir.Module {
	t.Helper()
	p, ok := fixtures.ByName(name)
	require.True(t, ok, "fixture %q not registered", name)
	return p.Module
}

func TestLowerAllFixturesWithoutError(t *testing.T) {
	for _, p := range fixtures.All() {
		p := p
		t.Run(p.Name, func(t *testing.T) {
			dl := ir.NewDataLayout(p.Module.Types)
			for _, fn := range p.Module.Functions {
				if fn.Declared {
					continue
				}
				mf, slots, err := Lower(fn, dl)
				require.NoErrorf(t, err, "lowering @%s", fn.Name)
				require.NotNil(t, mf)
				require.NotNil(t, slots)
				require.NotEmpty(t, mf.Blocks())
			}
		})
	}
}

// TestLowerMainReturns7EmitsExpectedArithmeticShape confirms the alloca/
// store/load/add program lowers to a body with at least one add and a ret
// terminator. The alloca gets a stack slot that the store and load address
// directly; no lea is emitted since its address never escapes.
func TestLowerMainReturns7EmitsExpectedArithmeticShape(t *testing.T) {
	mod := lowerFixture(t, "main-returns-7")
	dl := ir.NewDataLayout(mod.Types)

	var mainFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	require.NotNil(t, mainFn)

	mf, _, err := Lower(mainFn, dl)
	require.NoError(t, err)

	var haveAdd, haveRet bool
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			switch Op(mf.Instr(iid).Opcode) {
			case OpADDrr32, OpADDri32:
				haveAdd = true
			case OpRET:
				haveRet = true
			}
		}
	}
	require.True(t, haveAdd, "expected at least one add in the lowered body")
	require.True(t, haveRet, "expected a ret terminator")
}

// TestLowerIcmpCondBrFusesWithoutMaterializedI1 checks that a standalone
// icmp feeding a condbr lowers straight to CMP + a single conditional
// jump, never materialising the i1 into a GPR.
func TestLowerIcmpCondBrFusesWithoutMaterializedI1(t *testing.T) {
	mod := lowerFixture(t, "icmp-condbr")
	dl := ir.NewDataLayout(mod.Types)

	var gFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "g" {
			gFn = fn
		}
	}
	require.NotNil(t, gFn)

	mf, _, err := Lower(gFn, dl)
	require.NoError(t, err)

	var haveCmp bool
	var condJumps int
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			switch Op(mf.Instr(iid).Opcode) {
			case OpCMPrr32, OpCMPri32, OpCMPri8:
				haveCmp = true
			case OpJL, OpJLE, OpJG, OpJGE, OpJE, OpJNE, OpJB, OpJBE, OpJA, OpJAE:
				condJumps++
			}
		}
	}
	require.True(t, haveCmp, "icmp should lower to a CMP instruction")
	require.Equal(t, 1, condJumps, "icmp+condbr should fuse to exactly one conditional jump")
}

// TestLowerStringLoadSextFusesLoadAndSignExtend exercises the load+sext
// fusion: an i8 load immediately sign-extended to i32 should become one
// memory-operand movsx instruction addressing the string directly, not a
// separate load followed by a register-to-register sext.
func TestLowerStringLoadSextFusesLoadAndSignExtend(t *testing.T) {
	mod := lowerFixture(t, "string-load-sext")
	dl := ir.NewDataLayout(mod.Types)

	var mainFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	require.NotNil(t, mainFn)

	mf, _, err := Lower(mainFn, dl)
	require.NoError(t, err)

	var haveFusedSext, haveStandaloneSext, haveStandaloneLoad bool
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			switch Op(mf.Instr(iid).Opcode) {
			case OpMOVSXr32m8, OpMOVSXDr64m32:
				haveFusedSext = true
			case OpMOVSXr32r8, OpMOVSXDr64r32:
				haveStandaloneSext = true
			case OpMOVrm8:
				haveStandaloneLoad = true
			}
		}
	}
	require.True(t, haveFusedSext, "expected the fused load+sext opcode")
	require.False(t, haveStandaloneSext, "load+sext should fuse rather than emit a standalone sext")
	require.False(t, haveStandaloneLoad, "the i8 load should be absorbed into the fused movsx")
}

// TestLowerCrossFunctionCallEmitsCallAndArgumentMove confirms a call
// instruction is emitted with the argument placed in the System V first
// integer argument register before the CALL.
func TestLowerCrossFunctionCallEmitsCallAndArgumentMove(t *testing.T) {
	mod := lowerFixture(t, "cross-function-call")
	dl := ir.NewDataLayout(mod.Types)

	var mainFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	require.NotNil(t, mainFn)

	mf, _, err := Lower(mainFn, dl)
	require.NoError(t, err)

	var haveCall, haveArgMove bool
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			instr := mf.Instr(iid)
			switch Op(instr.Opcode) {
			case OpCALL:
				haveCall = true
			case OpMOVrr32:
				if dst := instr.Operands[0].Reg; !haveCall && dst.Assigned() && dst.RealReg() == RDI {
					haveArgMove = true
				}
			}
		}
	}
	require.True(t, haveCall, "expected a CALL instruction")
	require.True(t, haveArgMove, "expected the argument moved into edi before the CALL")
}

// TestLowerFibonacciProducesRecursiveCalls checks the recursive fixture
// lowers two CALL sites (one per recursive branch) in its "rec" block.
func TestLowerFibonacciProducesRecursiveCalls(t *testing.T) {
	mod := lowerFixture(t, "fibonacci")
	dl := ir.NewDataLayout(mod.Types)

	var fibFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "fib" {
			fibFn = fn
		}
	}
	require.NotNil(t, fibFn)

	mf, _, err := Lower(fibFn, dl)
	require.NoError(t, err)

	calls := 0
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			if Op(mf.Instr(iid).Opcode) == OpCALL {
				calls++
			}
		}
	}
	require.Equal(t, 2, calls, "fib's recursive block should lower to two calls")
}

// TestLowerWithFoldAddressModesDisabledMaterializesAllocaAddress checks the
// --no-fold-address escape hatch: with folding off, the sole alloca in
// main-returns-7 must materialise its slot address through a LEA instead of
// the load/store folding straight into the slot's memory operand.
func TestLowerWithFoldAddressModesDisabledMaterializesAllocaAddress(t *testing.T) {
	mod := lowerFixture(t, "main-returns-7")
	dl := ir.NewDataLayout(mod.Types)

	var mainFn *ir.Function
	for _, fn := range mod.Functions {
		if fn.Name == "main" {
			mainFn = fn
		}
	}
	require.NotNil(t, mainFn)

	mf, _, err := Lower(mainFn, dl, WithFoldAddressModes(false))
	require.NoError(t, err)

	var haveLEA bool
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			if Op(mf.Instr(iid).Opcode) == OpLEA {
				haveLEA = true
			}
		}
	}
	require.True(t, haveLEA, "expected the alloca's address to materialise via LEA with folding disabled")
}

// buildUnaryI32Fn is scaffolding for the pattern tests below: a function
// `i32 f(i32 %x)` whose body the caller fills in before lowering it.
func buildUnaryI32Fn(t *testing.T) (*ir.Module, *ir.Function, ir.BlockID) {
	t.Helper()
	mod := ir.NewModule()
	fn := ir.NewFunction(mod, "f", ir.Signature{Params: []types.Type{mod.Types.I32()}, Ret: mod.Types.I32()})
	mod.AddFunction(fn)
	entry := fn.AppendBlock("entry")
	return mod, fn, entry
}

func lowerFn(t *testing.T, mod *ir.Module, fn *ir.Function) *mir.Func {
	t.Helper()
	fn.FinalizeCFG()
	mf, _, err := Lower(fn, ir.NewDataLayout(mod.Types))
	require.NoError(t, err)
	return mf
}

func opcodes(mf *mir.Func) []Op {
	var out []Op
	for _, bid := range mf.Blocks() {
		for _, iid := range mf.InstsOf(bid) {
			out = append(out, Op(mf.Instr(iid).Opcode))
		}
	}
	return out
}

// TestLowerStoreImmediateFoldsIntoMemoryForm checks that storing a constant
// into an alloca slot lowers to a single store-immediate rather than a
// register materialisation followed by a register store.
func TestLowerStoreImmediateFoldsIntoMemoryForm(t *testing.T) {
	mod, fn, entry := buildUnaryI32Fn(t)
	i32 := mod.Types.I32()
	a := fn.BuildAlloca(entry, "a", i32)
	fn.BuildStore(entry, ir.ValueForConst(mod.Consts.Int(i32, 2)), a)
	b := fn.BuildLoad(entry, "b", i32, a)
	fn.BuildRet(entry, b)

	ops := opcodes(lowerFn(t, mod, fn))
	require.Contains(t, ops, OpMOVmi32, "constant store should use the store-immediate form")
	require.NotContains(t, ops, OpMOVmr32)
	require.NotContains(t, ops, OpMOVri32, "the stored constant should never touch a register")
}

// TestLowerShiftImmediateAndVariableCount covers both shift forms: a
// constant count stays an immediate, a runtime count is pinned to CL.
func TestLowerShiftImmediateAndVariableCount(t *testing.T) {
	mod, fn, entry := buildUnaryI32Fn(t)
	i32 := mod.Types.I32()
	x := fn.ArgValue(0)
	byImm := fn.BuildBinOp(entry, ir.OpShl, "byimm", i32, x, ir.ValueForConst(mod.Consts.Int(i32, 3)))
	byVar := fn.BuildBinOp(entry, ir.OpAShr, "byvar", i32, byImm, x)
	fn.BuildRet(entry, byVar)

	ops := opcodes(lowerFn(t, mod, fn))
	require.Contains(t, ops, OpSHLri32)
	require.Contains(t, ops, OpASHRrr32, "runtime shift count should use the CL-count form")
	require.NotContains(t, ops, OpSHLrr32)
}

// TestLowerSDivSRemEmitCdqIdivSequence checks the sdiv/srem pattern: one
// cdq/idiv pair per instruction, with the dividend staged through EAX.
func TestLowerSDivSRemEmitCdqIdivSequence(t *testing.T) {
	mod, fn, entry := buildUnaryI32Fn(t)
	i32 := mod.Types.I32()
	x := fn.ArgValue(0)
	ten := ir.ValueForConst(mod.Consts.Int(i32, 10))
	q := fn.BuildBinOp(entry, ir.OpSDiv, "q", i32, x, ten)
	r := fn.BuildBinOp(entry, ir.OpSRem, "r", i32, x, ten)
	sum := fn.BuildBinOp(entry, ir.OpAdd, "sum", i32, q, r)
	fn.BuildRet(entry, sum)

	ops := opcodes(lowerFn(t, mod, fn))
	var cdq, idiv int
	for _, op := range ops {
		switch op {
		case OpCDQ:
			cdq++
		case OpIDIVr32:
			idiv++
		}
	}
	require.Equal(t, 2, cdq)
	require.Equal(t, 2, idiv)
}

// TestLowerStandaloneICmpMaterializesWithSetcc checks an icmp whose result
// is consumed by something other than a condbr (here a zext) lowers to
// CMP + SETcc instead of fusing away.
func TestLowerStandaloneICmpMaterializesWithSetcc(t *testing.T) {
	mod, fn, entry := buildUnaryI32Fn(t)
	i32 := mod.Types.I32()
	x := fn.ArgValue(0)
	cond := fn.BuildICmp(entry, "cond", ir.ICmpSGT, x, ir.ValueForConst(mod.Consts.Int(i32, 0)))
	wide := fn.BuildConvert(entry, ir.OpZExt, "wide", i32, cond)
	fn.BuildRet(entry, wide)

	ops := opcodes(lowerFn(t, mod, fn))
	require.Contains(t, ops, OpSETG)
	require.Contains(t, ops, OpMOVZXr32r8)
}

// TestLowerTruncIsRegisterCopy checks trunc outside a condbr fusion lowers
// to a plain move at the destination width.
func TestLowerTruncIsRegisterCopy(t *testing.T) {
	mod, fn, entry := buildUnaryI32Fn(t)
	i8 := mod.Types.I8()
	narrow := fn.BuildConvert(entry, ir.OpTrunc, "narrow", i8, fn.ArgValue(0))
	wide := fn.BuildConvert(entry, ir.OpSExt, "wide", mod.Types.I32(), narrow)
	fn.BuildRet(entry, wide)

	ops := opcodes(lowerFn(t, mod, fn))
	require.Contains(t, ops, OpMOVrr8, "trunc to i8 should be an 8-bit register copy")
	require.Contains(t, ops, OpMOVSXr32r8)
}

func TestRegInfoClassForIntegerAndPointerKinds(t *testing.T) {
	in := mod(t).Types
	var ri RegInfo
	require.Equal(t, mir.RegClassInt, ri.ClassFor(in.I32(), in))
	require.Equal(t, mir.RegClassInt, ri.ClassFor(in.I1(), in))
	require.Equal(t, mir.RegClassInt, ri.ClassFor(in.Pointer(in.I8(), 0), in))
}

func mod(t *testing.T) *ir.Module {
	t.Helper()
	p, ok := fixtures.ByName("main-returns-7")
	require.True(t, ok)
	return p.Module
}
