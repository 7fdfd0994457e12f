package main

import (
	"fmt"

	"github.com/maekawatoshiki/vicis-sub000/internal/asmprint"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/amd64"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/fixtures"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/spf13/cobra"
)

// compileCmd lowers every defined function of a fixture module and prints
// the resulting assembly, driving the pipeline: DataLayout -> amd64.Lower
// -> asmprint.Module.
func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "compile <fixture>",
		Aliases: []string{"dump-asm"},
		Short:   "lower a fixture to x86-64 assembly and print it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := fixtures.ByName(args[0])
			if !ok {
				return fmt.Errorf("unknown fixture %q (see `vicis list`)", args[0])
			}
			asm, err := compileModule(p.Module)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), asm)
			return nil
		},
	}
}

func compileModule(mod *ir.Module) (string, error) {
	dl := ir.NewDataLayout(mod.Types)

	var fns []*mir.Func
	var slots []*mir.Slots
	for _, fn := range mod.Functions {
		if fn.Declared {
			continue
		}
		mf, sl, err := amd64.Lower(fn, dl, amd64.WithFoldAddressModes(!noFoldAddress))
		if err != nil {
			return "", fmt.Errorf("lowering @%s: %w", fn.Name, err)
		}
		fns = append(fns, mf)
		slots = append(slots, sl)
	}
	return asmprint.Module(mod, fns, slots), nil
}
