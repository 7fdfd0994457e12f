// Package fixtures builds small, hand-assembled ir.Module programs that
// stand in for a textual-IR parser's output, built directly against the
// ir.Builder API since a full LLVM-IR text parser is out of scope.
// cmd/vicis's compile/dump subcommands and the package tests both drive
// these same programs, so the CLI can demonstrate the pipeline without a
// parser to feed it.
package fixtures

import (
	"fmt"

	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// Program is one named fixture: a module plus the name of the function a
// caller should treat as the entry point for compilation or interpretation.
type Program struct {
	Name   string
	Entry  string
	Module *ir.Module
}

// All returns every fixture, in scenario order.
func All() []Program {
	return []Program{
		MainReturns7(),
		SumLoop(),
		StringLoadSext(),
		CrossFunctionCall(),
		IcmpCondBr(),
		Fibonacci(),
	}
}

// ByName looks up a fixture by its Program.Name.
func ByName(name string) (Program, bool) {
	for _, p := range All() {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

func finalize(fn *ir.Function) {
	fn.FinalizeCFG()
	if err := fn.CheckPhiShape(); err != nil {
		panic(fmt.Sprintf("BUG: fixture %q has malformed phis: %v", fn.Name, err))
	}
}

// MainReturns7 is a single-block function that stores, reloads, and
// combines a constant through three adds. Interpreted, `main` returns 7.
func MainReturns7() Program {
	mod := ir.NewModule()
	i32 := mod.Types.I32()

	fn := ir.NewFunction(mod, "main", ir.Signature{Ret: i32})
	mod.AddFunction(fn)

	entry := fn.AppendBlock("entry")
	a := fn.BuildAlloca(entry, "a", i32)
	fn.BuildStore(entry, ir.ValueForConst(mod.Consts.Int(i32, 2)), a)
	b := fn.BuildLoad(entry, "b", i32, a)
	c := fn.BuildBinOp(entry, ir.OpAdd, "c", i32, b, ir.ValueForConst(mod.Consts.Int(i32, 1)))
	d := fn.BuildBinOp(entry, ir.OpAdd, "d", i32, b, ir.ValueForConst(mod.Consts.Int(i32, 2)))
	e := fn.BuildBinOp(entry, ir.OpAdd, "e", i32, c, d)
	fn.BuildRet(entry, e)

	finalize(fn)
	return Program{Name: "main-returns-7", Entry: "main", Module: mod}
}

// SumLoop is a four-block loop (entry, header, body, exit) with a single
// header->body->header back-edge, accumulating 1..10. Interpreted, `sum`
// returns 55.
func SumLoop() Program {
	mod := ir.NewModule()
	i32 := mod.Types.I32()

	fn := ir.NewFunction(mod, "sum", ir.Signature{Ret: i32})
	mod.AddFunction(fn)

	entry := fn.AppendBlock("entry")
	header := fn.AppendBlock("header")
	body := fn.AppendBlock("body")
	exit := fn.AppendBlock("exit")

	iPhi := fn.BuildPhi(header, "i", i32)
	accPhi := fn.BuildPhi(header, "acc", i32)
	iVal := ir.ValueForInst(iPhi)
	accVal := ir.ValueForInst(accPhi)

	cond := fn.BuildICmp(header, "cond", ir.ICmpSLE, iVal, ir.ValueForConst(mod.Consts.Int(i32, 10)))
	fn.BuildCondBr(header, cond, body, exit)

	acc2 := fn.BuildBinOp(body, ir.OpAdd, "acc2", i32, accVal, iVal)
	i2 := fn.BuildBinOp(body, ir.OpAdd, "i2", i32, iVal, ir.ValueForConst(mod.Consts.Int(i32, 1)))
	fn.BuildBr(body, header)

	fn.AddIncoming(iPhi, ir.ValueForConst(mod.Consts.Int(i32, 1)), entry)
	fn.AddIncoming(iPhi, i2, body)
	fn.AddIncoming(accPhi, ir.ValueForConst(mod.Consts.Int(i32, 0)), entry)
	fn.AddIncoming(accPhi, acc2, body)

	fn.BuildBr(entry, header)
	fn.BuildRet(exit, accVal)

	finalize(fn)
	return Program{Name: "sum-loop", Entry: "sum", Module: mod}
}

// StringLoadSext loads a `c"hello world\00"` global through a
// getelementptr and sign-extends the result to i32. Index 1 is 'e' (ASCII
// 101); interpreted, `main` returns 101, and the printer emits
// `.string "hello world"` for `@s`.
func StringLoadSext() Program {
	mod := ir.NewModule()
	i8 := mod.Types.I8()
	i32 := mod.Types.I32()

	literal := []byte("hello world\x00")
	arrTy := mod.Types.Array(i8, uint64(len(literal)))
	elems := make([]ir.ConstID, len(literal))
	for i, b := range literal {
		elems[i] = mod.Consts.Int(i8, int64(b))
	}
	arrConst := mod.Consts.Array(arrTy, elems, true)
	mod.AddGlobal(&ir.Global{
		Name:        "s",
		Ty:          arrTy,
		Linkage:     ir.LinkageInternal,
		Initializer: arrConst,
		HasInit:     true,
		IsConstant:  true,
	})

	fn := ir.NewFunction(mod, "main", ir.Signature{Ret: i32})
	mod.AddFunction(fn)
	entry := fn.AppendBlock("entry")

	ptrToArr := mod.Types.Pointer(arrTy, 0)
	base := ir.ValueForConst(mod.Consts.Global(ptrToArr, "s"))
	elemPtr := fn.BuildGEP(entry, "p", arrTy, mod.Types.Pointer(i8, 0), base, []ir.GEPIndex{
		{IsConst: true, Const: 0},
		{IsConst: true, Const: 1},
	})
	loaded := fn.BuildLoad(entry, "b", i8, elemPtr)
	widened := fn.BuildConvert(entry, ir.OpSExt, "c", i32, loaded)
	fn.BuildRet(entry, widened)

	finalize(fn)
	return Program{Name: "string-load-sext", Entry: "main", Module: mod}
}

// CrossFunctionCall has `main` call `f(1)` and return its result,
// exercising the System V argument-register prologue and the call/return
// value flow through `eax`.
func CrossFunctionCall() Program {
	mod := ir.NewModule()
	i32 := mod.Types.I32()

	f := ir.NewFunction(mod, "f", ir.Signature{Params: []types.Type{i32}, Ret: i32})
	mod.AddFunction(f)
	fEntry := f.AppendBlock("entry")
	f.BuildRet(fEntry, f.ArgValue(0))
	finalize(f)

	main := ir.NewFunction(mod, "main", ir.Signature{Ret: i32})
	mod.AddFunction(main)
	mEntry := main.AppendBlock("entry")
	r := main.BuildCall(mEntry, "r", "f", i32, []ir.Value{ir.ValueForConst(mod.Consts.Int(i32, 1))})
	main.BuildRet(mEntry, r)
	finalize(main)

	return Program{Name: "cross-function-call", Entry: "main", Module: mod}
}

// IcmpCondBr is an `icmp slt`-and-`condbr` pair that the lowering engine
// fuses into a single `cmp`/`jl` without ever materialising the i1 icmp
// result.
func IcmpCondBr() Program {
	mod := ir.NewModule()
	i32 := mod.Types.I32()

	fn := ir.NewFunction(mod, "g", ir.Signature{Params: []types.Type{i32}, Ret: i32})
	mod.AddFunction(fn)

	entry := fn.AppendBlock("entry")
	neg := fn.AppendBlock("neg")
	nonneg := fn.AppendBlock("nonneg")

	t := fn.BuildICmp(entry, "t", ir.ICmpSLT, fn.ArgValue(0), ir.ValueForConst(mod.Consts.Int(i32, 0)))
	fn.BuildCondBr(entry, t, neg, nonneg)

	fn.BuildRet(neg, ir.ValueForConst(mod.Consts.Int(i32, 1)))
	fn.BuildRet(nonneg, ir.ValueForConst(mod.Consts.Int(i32, 0)))

	finalize(fn)
	return Program{Name: "icmp-condbr", Entry: "g", Module: mod}
}

// Fibonacci is a recursive `fib(n) = fib(n-1) + fib(n-2)` whose base case
// returns 1 for n<=1. Interpreted, `main` returns 89 (fib(10)), exercising
// nested calls, `eax` return-value flow, and slot reuse across recursive
// activations.
func Fibonacci() Program {
	mod := ir.NewModule()
	i32 := mod.Types.I32()

	fib := ir.NewFunction(mod, "fib", ir.Signature{Params: []types.Type{i32}, Ret: i32})
	mod.AddFunction(fib)

	entry := fib.AppendBlock("entry")
	base := fib.AppendBlock("base")
	rec := fib.AppendBlock("rec")

	n := fib.ArgValue(0)
	cond := fib.BuildICmp(entry, "cond", ir.ICmpSLE, n, ir.ValueForConst(mod.Consts.Int(i32, 1)))
	fib.BuildCondBr(entry, cond, base, rec)

	fib.BuildRet(base, ir.ValueForConst(mod.Consts.Int(i32, 1)))

	n1 := fib.BuildBinOp(rec, ir.OpSub, "n1", i32, n, ir.ValueForConst(mod.Consts.Int(i32, 1)))
	r1 := fib.BuildCall(rec, "r1", "fib", i32, []ir.Value{n1})
	n2 := fib.BuildBinOp(rec, ir.OpSub, "n2", i32, n, ir.ValueForConst(mod.Consts.Int(i32, 2)))
	r2 := fib.BuildCall(rec, "r2", "fib", i32, []ir.Value{n2})
	sum := fib.BuildBinOp(rec, ir.OpAdd, "sum", i32, r1, r2)
	fib.BuildRet(rec, sum)

	finalize(fib)

	main := ir.NewFunction(mod, "main", ir.Signature{Ret: i32})
	mod.AddFunction(main)
	mEntry := main.AppendBlock("entry")
	result := main.BuildCall(mEntry, "result", "fib", i32, []ir.Value{ir.ValueForConst(mod.Consts.Int(i32, 10))})
	main.BuildRet(mEntry, result)
	finalize(main)

	return Program{Name: "fibonacci", Entry: "main", Module: mod}
}
