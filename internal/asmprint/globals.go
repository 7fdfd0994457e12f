package asmprint

import (
	"fmt"
	"strings"

	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// Globals renders the module's global-variable definitions: string
// literals, zero-initialized data, and scalar integers, plus the
// `llvm.global_ctors` convention LLVM front ends use to request a
// constructor run before main. Externally-linked declarations and
// initializer-less globals are skipped.
func Globals(mod *ir.Module) string {
	layout := ir.NewDataLayout(mod.Types)
	var sb strings.Builder
	var ctorName string

	for _, g := range mod.Globals {
		if g.Linkage == ir.LinkageExternal && !g.HasInit {
			continue
		}
		if !g.HasInit {
			continue
		}

		c := mod.Consts.Get(g.Initializer)
		switch c.Kind {
		case ir.ConstArray:
			if g.Name == "llvm.global_ctors" {
				if name, ok := globalCtorTarget(mod, c); ok {
					ctorName = name
				}
				continue
			}
			if !c.IsString {
				continue
			}
			fmt.Fprintf(&sb, "%s:\n", g.Name)
			fmt.Fprintf(&sb, "\t.string \"%s\"\n", cStringLiteral(mod, c))

		case ir.ConstAggregateZero:
			size := layout.SizeOf(c.Ty)
			align := layout.AlignOf(c.Ty)
			fmt.Fprintf(&sb, "\t.comm %s,%d,%d\n", g.Name, size, align)

		case ir.ConstInt:
			if g.Linkage != ir.LinkageInternal && g.Linkage != ir.LinkagePrivate {
				fmt.Fprintf(&sb, "\t.globl %s\n", g.Name)
			}
			size := layout.SizeOf(c.Ty)
			fmt.Fprintf(&sb, "%s:\n", g.Name)
			fmt.Fprintf(&sb, "\t.%s %d\n", intDirective(mod.Types, c.Ty), c.IntVal)
			fmt.Fprintf(&sb, "\t.size %s, %d\n", g.Name, size)

		default:
			// Struct/GEP/bitcast-initialised globals aren't emitted by the
			// original printer either; left for a future extension.
		}
	}

	if ctorName != "" {
		sb.WriteString("\t.section .init_array\n")
		fmt.Fprintf(&sb, "\t.quad %s\n", ctorName)
	}

	return sb.String()
}

// intDirective maps a scalar integer type to the GAS directive that stores
// one value of that width.
func intDirective(in *types.Interner, t types.Type) string {
	switch in.Kind(t) {
	case types.KindI1, types.KindI8:
		return "byte"
	case types.KindI16:
		return "short"
	case types.KindI32:
		return "long"
	default:
		return "quad"
	}
}

// cStringLiteral renders a `c"..."` constant array's byte elements as an
// escaped, nul-trimmed string literal suitable for `.string`.
func cStringLiteral(mod *ir.Module, c *ir.Constant) string {
	bytes := make([]byte, 0, len(c.Elems))
	for _, eid := range c.Elems {
		bytes = append(bytes, byte(mod.Consts.Get(eid).IntVal))
	}
	for len(bytes) > 0 && bytes[len(bytes)-1] == 0 {
		bytes = bytes[:len(bytes)-1]
	}
	var sb strings.Builder
	for _, b := range bytes {
		switch b {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// globalCtorTarget extracts the constructor function name from an
// `llvm.global_ctors` array: each element is a `{ i32, void ()*, i8* }`
// struct whose second field names the constructor to run.
func globalCtorTarget(mod *ir.Module, arr *ir.Constant) (string, bool) {
	if len(arr.Elems) == 0 {
		return "", false
	}
	entry := mod.Consts.Get(arr.Elems[0])
	if entry.Kind != ir.ConstStruct || len(entry.Elems) < 2 {
		return "", false
	}
	fn := mod.Consts.Get(entry.Elems[1])
	if fn.Kind != ir.ConstGlobal {
		return "", false
	}
	return fn.GlobalName, true
}
