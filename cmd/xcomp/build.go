package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eanderton/xcomp/codegen"
)

func newBuildCmd(configPath *string) *cobra.Command {
	var (
		outPath     string
		symbolsPath string
		format      string
		includes    []string
	)

	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "Assemble a source file into a memory image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			includePaths := append(append([]string{}, cfg.Include...), includes...)
			if format == "" {
				format = cfg.Format
			}
			if format == "" {
				format = "raw"
			}

			src, stmts, err := reduce(includePaths, args[0])
			if err != nil {
				return err
			}
			gen := codegen.New(src)
			if err := gen.Run(stmts); err != nil {
				return err
			}

			image, start, err := frame(gen, format)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = args[0] + ".bin"
			}
			if err := os.WriteFile(outPath, image, 0644); err != nil {
				return err
			}
			log.Infof("wrote %s (%d bytes, start $%04x)", outPath, len(image), start)

			if symbolsPath != "" {
				if err := writeSymbols(gen, symbolsPath); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file path (default: <file>.bin)")
	cmd.Flags().StringVar(&format, "fmt", "", "output format: raw or prg")
	cmd.Flags().StringVar(&symbolsPath, "symbols", "", "write the symbol table to this path")
	cmd.Flags().StringSliceVarP(&includes, "include", "I", nil, "additional include search path")
	return cmd
}

// frame extracts the populated byte range of the compiled image and, for
// the "prg" format, prepends the little-endian C64 PRG load address taken
// from the c64_prg_start pragma (defaulting to $0801, the standard BASIC
// stub entry point).
func frame(gen *codegen.Generator, format string) ([]byte, int, error) {
	start, end := gen.Bounds()
	body := append([]byte(nil), gen.Image[start:end]...)

	switch format {
	case "raw":
		return body, start, nil
	case "prg":
		loadAddr := 0x0801
		if v, ok := gen.Pragmas["c64_prg_start"]; ok {
			if iv, ok := v.(int); ok {
				loadAddr = iv
			}
		}
		out := []byte{byte(loadAddr), byte(loadAddr >> 8)}
		return append(out, body...), loadAddr, nil
	default:
		return nil, 0, fmt.Errorf("unknown output format %q", format)
	}
}

func writeSymbols(gen *codegen.Generator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, name := range gen.Symbols.Names() {
		addr, _ := gen.Symbols.Get(name)
		fmt.Fprintf(f, "%s: %04x\n", name, addr)
	}
	return nil
}
