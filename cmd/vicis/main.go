// Command vicis drives the back end this module implements over its
// built-in fixture programs (internal/fixtures), standing in for a textual
// IR parser: list, dump-ir, dump-asm/compile, and dump-liveness subcommands built on the
// cobra+pflag RunE/Flags() idiom.
package main

import (
	"fmt"
	"os"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/liveness"
	"github.com/maekawatoshiki/vicis-sub000/internal/diag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// noFoldAddress mirrors the --no-fold-address flag; compileCmd reads it to
// build the amd64.Option it passes to Lower.
var noFoldAddress bool

// programPointStep is a pflag.Value wrapping the liveness program-point
// gap, rejecting non-positive values at flag-parse time instead of letting
// a bad --step silently produce degenerate program points.
type programPointStep struct{ v *int }

func (s programPointStep) String() string { return fmt.Sprintf("%d", *s.v) }
func (s programPointStep) Type() string   { return "int" }
func (s programPointStep) Set(raw string) error {
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return fmt.Errorf("invalid --step %q: %w", raw, err)
	}
	if n <= 0 {
		return fmt.Errorf("--step must be positive, got %d", n)
	}
	*s.v = n
	return nil
}

func main() {
	var debug bool
	var logFile string

	var step int = 16

	root := &cobra.Command{
		Use:   "vicis",
		Short: "x86-64 back end driver over the module's built-in IR fixtures",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var extra *os.File
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				extra = f
			}
			if extra != nil {
				diag.Init(debug, extra)
			} else {
				diag.Init(debug, nil)
			}
			liveness.Step = step
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level structured logging")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON log lines to this file")

	var stepFlag pflag.Value = programPointStep{v: &step}
	root.PersistentFlags().Var(stepFlag, "step", "gap between liveness program points, for dump-liveness")
	root.PersistentFlags().BoolVar(&noFoldAddress, "no-fold-address", false, "disable GEP/alloca address-mode folding during lowering")

	root.AddCommand(listCmd(), dumpIRCmd(), compileCmd(), dumpLivenessCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
