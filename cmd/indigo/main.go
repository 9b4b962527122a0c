package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyc2026/indigo/pkg/codegen"
	"github.com/hyc2026/indigo/pkg/mir"
)

var (
	outputFile    string
	backendName   string
	vizFile       string
	verbose       bool
	allowCondExec bool
	listBackends  bool
)

var rootCmd = &cobra.Command{
	Use:   "indigo [input.mir]",
	Short: "Indigo MIR-to-ARM code generator",
	Long: `Indigo lowers a MIR package to ARMv7-A assembly over virtual
registers, leaving register allocation to a later pass.

EXAMPLES:
  indigo prog.mir               # Lower to prog.s
  indigo prog.mir -o out.s      # Choose the output path
  indigo prog.mir --viz cfg.dot # Dump the MIR control-flow graph
  indigo --list-backends        # List registered backends`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if listBackends {
			fmt.Println("Available backends:")
			for _, b := range codegen.ListBackends() {
				fmt.Printf("  - %s\n", b)
			}
			return nil
		}
		if len(args) == 0 {
			return cmd.Help()
		}
		return compile(args[0])
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: input with backend extension)")
	rootCmd.Flags().StringVarP(&backendName, "backend", "b", "arm", "code generation backend")
	rootCmd.Flags().StringVar(&vizFile, "viz", "", "write a Graphviz DOT dump of the MIR to this file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace code generation passes")
	rootCmd.Flags().BoolVar(&allowCondExec, "allow-cond-exec", true, "let later passes use conditional execution")
	rootCmd.Flags().BoolVar(&listBackends, "list-backends", false, "list available backends")
}

func compile(input string) error {
	pkg, err := mir.ParseFile(input)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", input, err)
	}

	if vizFile != "" {
		if err := writeViz(pkg); err != nil {
			return err
		}
	}

	backend := codegen.GetBackend(backendName, &codegen.BackendOptions{
		AllowConditionalExec: allowCondExec,
		Verbose:              verbose,
	})
	if backend == nil {
		return fmt.Errorf("unknown backend %q (try --list-backends)", backendName)
	}

	extra := codegen.NewExtraData()
	funcs, err := backend.Generate(pkg, extra)
	if err != nil {
		return err
	}

	out := outputFile
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + backend.FileExtension()
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, fn := range funcs {
		if err := fn.WriteTo(f); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f); err != nil {
			return err
		}
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "indigo: wrote %d function(s) to %s\n", len(funcs), out)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func writeViz(pkg *mir.Package) error {
	f, err := os.Create(vizFile)
	if err != nil {
		return err
	}
	defer f.Close()
	return mir.NewVisualizer(f).Visualize(pkg)
}
