package main

import (
	"fmt"
	"strings"

	"github.com/maekawatoshiki/vicis-sub000/internal/arena"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/amd64"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/liveness"
	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
	"github.com/maekawatoshiki/vicis-sub000/internal/fixtures"
	"github.com/maekawatoshiki/vicis-sub000/internal/ir"
	"github.com/spf13/cobra"
)

// dumpLivenessCmd lowers a fixture and runs liveness analysis over each of
// its functions, printing per-block live-in/live-out sets; per-vreg live
// ranges are computed but not printed. This is the only driver that wires internal/codegen/liveness end
// to end; everywhere else it's exercised by its own package tests, since
// the register allocator that would consume it is out of scope here.
func dumpLivenessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-liveness <fixture>",
		Short: "lower a fixture and print its per-function liveness analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := fixtures.ByName(args[0])
			if !ok {
				return fmt.Errorf("unknown fixture %q (see `vicis list`)", args[0])
			}
			out, err := dumpLiveness(p.Module)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func dumpLiveness(mod *ir.Module) (string, error) {
	dl := ir.NewDataLayout(mod.Types)
	var sb strings.Builder
	for _, fn := range mod.Functions {
		if fn.Declared {
			continue
		}
		mf, _, err := amd64.Lower(fn, dl, amd64.WithFoldAddressModes(!noFoldAddress))
		if err != nil {
			return "", fmt.Errorf("lowering @%s: %w", fn.Name, err)
		}
		lv := liveness.Compute(mf, amd64.ToRegUnit, uint16(amd64.OpPhi))

		fmt.Fprintf(&sb, "@%s:\n", fn.Name)
		for _, bid := range mf.Blocks() {
			fmt.Fprintf(&sb, "  block %d:\n", bid)
			fmt.Fprintf(&sb, "    live-in:  %s\n", formatVRegSet(lv.LiveIn(bid)))
			fmt.Fprintf(&sb, "    live-out: %s\n", formatVRegSet(lv.LiveOut(bid)))
		}
	}
	return sb.String(), nil
}

func formatVRegSet(set arena.Set[mir.VReg]) string {
	if len(set) == 0 {
		return "{}"
	}
	var parts []string
	for v := range set {
		if v.Assigned() {
			parts = append(parts, fmt.Sprintf("r%d", v.RealReg()))
			continue
		}
		parts = append(parts, fmt.Sprintf("v%d", v.ID()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
