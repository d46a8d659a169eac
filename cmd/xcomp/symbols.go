package main

import (
	"fmt"
	"os"

	"github.com/beevik/term"
	"github.com/spf13/cobra"

	"github.com/eanderton/xcomp/codegen"
)

func newSymbolsCmd(configPath *string) *cobra.Command {
	var (
		includes []string
		prefix   string
	)

	cmd := &cobra.Command{
		Use:   "symbols <file>",
		Short: "Assemble a source file and list its published symbols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			includePaths := append(append([]string{}, cfg.Include...), includes...)
			src, stmts, err := reduce(includePaths, args[0])
			if err != nil {
				return err
			}
			gen := codegen.New(src)
			if err := gen.Run(stmts); err != nil {
				return err
			}

			names := gen.Symbols.Names()
			if prefix != "" {
				names = gen.Symbols.Prefix(prefix)
			}
			bold := term.IsTerminal(int(os.Stdout.Fd()))
			for _, name := range names {
				addr, _ := gen.Symbols.Get(name)
				if bold {
					fmt.Printf("\x1b[1m%04x\x1b[0m  %s\n", addr, name)
				} else {
					fmt.Printf("%04x  %s\n", addr, name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&includes, "include", "I", nil, "additional include search path")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list symbols beginning with this prefix")
	return cmd
}
