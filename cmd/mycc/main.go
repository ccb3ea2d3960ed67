// Command mycc drives the compiler pipeline end to end: code generation,
// register allocation, branch predication, and assembly emission, with a
// dump flag for every intermediate stage. There is no C front end in this
// build, so CG-IR must be supplied directly with --cg-import.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/cg/branchpred"
	"github.com/markuszzz/mycc/pkg/cg/cgtext"
	"github.com/markuszzz/mycc/pkg/cg/emit"
	"github.com/markuszzz/mycc/pkg/cg/regalloc"
	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/spf13/cobra"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(diag.Bug)
			if !ok {
				panic(r)
			}
			reportAndExit(diag.New(diag.Internal, "%s", b.Msg))
		}
	}()
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		reportAndExit(err)
	}
}

// newRootCmd builds the single top-level command. Split out of main so
// tests can drive it directly without touching os.Exit.
func newRootCmd() *cobra.Command {
	var (
		dumpAll   bool
		dumpAST   bool
		dumpIR    bool
		dumpCG    bool
		simIR     string
		cgMaxRegs int
		cgImport  string
		cgDump    string
		cgRunRA   bool
		cgRunPred bool
		cgRunEmit string
		verbose   bool
	)

	rootCmd := &cobra.Command{
		Use:   "mycc <input>",
		Short: "mycc — a small C compiler back end (instruction selection, SSA regalloc, branch predication, ARM-style emission)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diag.ConfigureLogging(verbose)

			var input string
			if len(args) == 1 {
				input = args[0]
			}

			tu, err := loadTU(input, cgImport)
			if err != nil {
				return err
			}

			if dumpAll || dumpAST {
				return diag.New(diag.Unsupported,
					"--dump-ast: no C front end in this build; supply CG IR directly with --cg-import")
			}
			if dumpAll || dumpIR {
				return diag.New(diag.Unsupported,
					"--dump-ir: no C front end in this build; supply CG IR directly with --cg-import")
			}
			if simIR != "" {
				return diag.New(diag.Unsupported,
					"--sim-ir: no C front end in this build; there is no pre-codegen IR to simulate without one")
			}

			if cgRunRA {
				for _, f := range tu.Funcs {
					if err := regalloc.Allocate(f, regalloc.Config{MaxRegs: cgMaxRegs}); err != nil {
						return diag.Wrap(diag.KindOf(err), err, "register allocation failed for %s", f.Name)
					}
				}
			}
			if cgRunPred {
				for _, f := range tu.Funcs {
					branchpred.Run(f)
				}
			}

			if dumpAll || dumpCG {
				fmt.Print(cgtext.Print(tu))
			}
			if cgDump != "" {
				if err := writeFile(cgDump, cgtext.Print(tu)); err != nil {
					return diag.Wrap(diag.InputFailure, err, "writing --cg-dump output")
				}
			}

			if cgRunEmit != "" {
				out, err := os.Create(cgRunEmit)
				if err != nil {
					return diag.Wrap(diag.InputFailure, err, "creating --cg-run-emit output %q", cgRunEmit)
				}
				defer out.Close()
				if err := emit.Write(tu, out); err != nil {
					return diag.Wrap(diag.KindOf(err), err, "emitting assembly")
				}
			}

			return nil
		},
	}

	rootCmd.Flags().BoolVar(&dumpAll, "dump-all", false, "dump every intermediate stage")
	rootCmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "dump the parsed AST")
	rootCmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "dump the IR after front-end lowering")
	rootCmd.Flags().BoolVar(&dumpCG, "dump-cg", false, "dump the CG-IR to stdout in textual form")
	rootCmd.Flags().StringVar(&simIR, "sim-ir", "", "interpret the IR with pkg/irsim; this build has no front end producing IR, so the flag is rejected as unsupported")
	rootCmd.Flags().IntVar(&cgMaxRegs, "cg-max-regs", 13, "general-purpose register budget for register allocation")
	rootCmd.Flags().StringVar(&cgImport, "cg-import", "", "read CG-IR directly from a textual file instead of compiling from source")
	rootCmd.Flags().StringVar(&cgDump, "cg-dump", "", "write the CG-IR in textual form to a file")
	rootCmd.Flags().BoolVar(&cgRunRA, "cg-run-ra", false, "run register allocation over the CG-IR")
	rootCmd.Flags().BoolVar(&cgRunPred, "cg-run-branch-predication", false, "fold eligible diamonds/triangles into predicated instructions")
	rootCmd.Flags().StringVar(&cgRunEmit, "cg-run-emit", "", "emit target assembly to a file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose pass tracing")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	return rootCmd
}

// loadTU resolves this run's *cg.TU. Only --cg-import has a working
// implementation in this build: there is no C front end anywhere in this
// codebase (lexing, parsing, AST construction, AST-to-IR lowering, and
// mem2reg are all out of scope), so compiling input directly is always an
// Unsupported error.
func loadTU(input, cgImport string) (*cg.TU, error) {
	if cgImport != "" {
		f, err := os.Open(cgImport)
		if err != nil {
			return nil, diag.Wrap(diag.InputFailure, err, "opening --cg-import file %q", cgImport)
		}
		defer f.Close()
		return cgtext.Parse(f)
	}
	if input == "" {
		return nil, diag.New(diag.InputFailure, "no input: pass a source path or --cg-import")
	}
	return nil, diag.New(diag.Unsupported,
		"no C front end in this build; use --cg-import to supply CG IR directly for %q", input)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func reportAndExit(err error) {
	if diag.KindOf(err) == diag.Internal {
		fmt.Fprintln(os.Stderr, "internal error:", err)
		fmt.Fprintln(os.Stderr, string(debug.Stack()))
	} else {
		fmt.Fprintln(os.Stderr, "mycc:", err)
	}
	os.Exit(diag.KindOf(err).ExitCode())
}
