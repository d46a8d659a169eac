// Command xcomp is the batch front end for the assembler pipeline: it
// wires source.Manager, grammar.Parser, preprocessor.Expand, and
// codegen.Generator together behind a cobra command tree, the way
// beevik/go6502's own main.go drives asm.AssembleFile -- reworked into
// subcommands instead of a single -a flag because the pipeline now has
// three independently useful outputs (image, decompiled text, symbol
// table) instead of one.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	var configPath string

	root := &cobra.Command{
		Use:   "xcomp",
		Short: "A two-pass macro assembler for the NMOS 6502",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(log.InfoLevel)
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
			log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "xcomp.toml", "path to an optional config file")

	root.AddCommand(newBuildCmd(&configPath))
	root.AddCommand(newDecompileCmd(&configPath))
	root.AddCommand(newSymbolsCmd(&configPath))
	return root
}
