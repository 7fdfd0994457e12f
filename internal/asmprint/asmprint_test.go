package asmprint

import (
	"strings"
	"testing"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/amd64"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/fixtures"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/stretchr/testify/require"
)

// compileFixture lowers every defined function of a fixture module and
// renders the whole module, the same sequence cmd/vicis's compile command
// drives.
func compileFixture(t *testing.T, name string) string {
	t.Helper()
	p, ok := fixtures.ByName(name)
	require.True(t, ok, "fixture %q not registered", name)
	dl := ir.NewDataLayout(p.Module.Types)

	var fns []*mir.Func
	var slots []*mir.Slots
	for _, fn := range p.Module.Functions {
		if fn.Declared {
			continue
		}
		mf, sl, err := amd64.Lower(fn, dl)
		require.NoErrorf(t, err, "lowering @%s", fn.Name)
		fns = append(fns, mf)
		slots = append(slots, sl)
	}
	return Module(p.Module, fns, slots)
}

func TestModuleHeaderAndFrameForEveryFixture(t *testing.T) {
	for _, p := range fixtures.All() {
		p := p
		t.Run(p.Name, func(t *testing.T) {
			asm := compileFixture(t, p.Name)
			require.True(t, strings.HasPrefix(asm, ".intel_syntax noprefix\n.text\n"))
			require.Contains(t, asm, ".globl "+p.Entry)
			require.Contains(t, asm, p.Entry+":\n")
			require.Contains(t, asm, "push rbp")
			require.Contains(t, asm, "pop rbp")
		})
	}
}

// TestMainReturns7AssemblyShape pins the store-immediate and frame shape
// of the alloca/store/load program: the constant 2 lands in the slot with
// one store-immediate, and the frame rounds up to the 16-byte call
// boundary.
func TestMainReturns7AssemblyShape(t *testing.T) {
	asm := compileFixture(t, "main-returns-7")
	require.Contains(t, asm, "mov dword ptr [rbp-4], 2")
	require.Contains(t, asm, "sub rsp, 16")
	require.Contains(t, asm, "dword ptr [rbp-4]") // the reload addresses the same slot
}

// TestSumLoopBranchShape checks the loop header's fused compare-and-branch:
// cmp, a jle into the body, and an unconditional jmp to the exit.
func TestSumLoopBranchShape(t *testing.T) {
	asm := compileFixture(t, "sum-loop")
	require.Contains(t, asm, "\tcmp ")
	require.Contains(t, asm, "jle .LBL")
	require.Contains(t, asm, "jmp .LBL")
}

// TestBlockLabelsAreFunctionScoped confirms BlockLabel's `.LBL<fn>_<block>`
// scheme keeps labels from different functions in the same module from
// colliding even when both functions number their blocks from zero.
func TestBlockLabelsAreFunctionScoped(t *testing.T) {
	require.Equal(t, ".LBL0_0", BlockLabel(0, 0))
	require.Equal(t, ".LBL1_0", BlockLabel(1, 0))
	require.NotEqual(t, BlockLabel(0, 0), BlockLabel(1, 0))
}

// TestGlobalsEmitsStringDirectiveForStringLoadSext checks that the
// module-level @s global backing the `c"hello world\x00"` constant renders
// as a `.string` directive carrying the literal text.
func TestGlobalsEmitsStringDirectiveForStringLoadSext(t *testing.T) {
	p, ok := fixtures.ByName("string-load-sext")
	require.True(t, ok)

	out := Globals(p.Module)
	require.Contains(t, out, "s:\n")
	require.Contains(t, out, `.string "hello world"`)
}

// TestGlobalsSkipsExternalDeclarationsWithoutInitializer confirms an
// externally-linked global with no initializer produces no directives at
// all, matching the original printer's skip rule.
func TestGlobalsSkipsExternalDeclarationsWithoutInitializer(t *testing.T) {
	mod := ir.NewModule()
	i32 := mod.Types.I32()
	mod.AddGlobal(&ir.Global{Name: "extern_only", Ty: i32, Linkage: ir.LinkageExternal, HasInit: false})

	out := Globals(mod)
	require.Empty(t, out)
}
