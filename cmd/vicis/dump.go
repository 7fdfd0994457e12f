package main

import (
	"fmt"
	"strings"

	"github.com/maekawatoshiki/vicis-sub000/internal/fixtures"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the built-in fixture programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range fixtures.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(entry @%s)\n", p.Name, p.Entry)
			}
			return nil
		},
	}
}

func dumpIRCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-ir <fixture>",
		Short: "print a fixture's IR in layout order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := fixtures.ByName(args[0])
			if !ok {
				return fmt.Errorf("unknown fixture %q (see `vicis list`)", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), dumpModule(p.Module))
			return nil
		},
	}
}

// dumpModule renders a debugging-only textual form of mod's functions: one
// line per instruction, in layout order, grouped by block. This is a
// driver-level convenience, not the full IR printer.
func dumpModule(mod *ir.Module) string {
	var sb strings.Builder
	for _, g := range mod.Globals {
		fmt.Fprintf(&sb, "@%s = global %s\n", g.Name, mod.Types.String(g.Ty))
	}
	for _, fn := range mod.Functions {
		kw := "define"
		if fn.Declared {
			kw = "declare"
		}
		fmt.Fprintf(&sb, "%s %s @%s(", kw, mod.Types.String(fn.Sig.Ret), fn.Name)
		for i, p := range fn.Sig.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %%%d", mod.Types.String(p), i)
		}
		sb.WriteString(") {\n")
		for _, bid := range fn.Blocks() {
			b := fn.Block(bid)
			name := b.Name
			if name == "" {
				name = fmt.Sprintf("bb%d", bid)
			}
			fmt.Fprintf(&sb, "%s:\n", name)
			for _, iid := range fn.InstsOf(bid) {
				inst := fn.Inst(iid)
				dst := ""
				if inst.Name != "" {
					dst = "%" + inst.Name + " = "
				}
				fmt.Fprintf(&sb, "  %s%s\n", dst, inst.Opcode.String())
			}
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}
