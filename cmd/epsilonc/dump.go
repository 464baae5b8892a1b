package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	epsilon "github.com/xirelogy/go-epsilon"
)

func newDumpCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <artifact>",
		Short: "Decode an artifact and print its disassembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := epsilon.DisassembleFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, listing)
			return nil
		},
	}
}
