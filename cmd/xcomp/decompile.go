package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/eanderton/xcomp/printer"
)

func newDecompileCmd(configPath *string) *cobra.Command {
	var includes []string

	cmd := &cobra.Command{
		Use:   "decompile <file>",
		Short: "Reduce and expand a source file, printing it back as canonical assembly text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			includePaths := append(append([]string{}, cfg.Include...), includes...)
			_, stmts, err := reduce(includePaths, args[0])
			if err != nil {
				return err
			}
			return printer.Print(os.Stdout, stmts)
		},
	}
	cmd.Flags().StringSliceVarP(&includes, "include", "I", nil, "additional include search path")
	return cmd
}
