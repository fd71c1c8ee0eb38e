package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rookieCookies/azurite-sub000/internal/artifact"
	"github.com/rookieCookies/azurite-sub000/internal/emitter"
)

var disassembleCmd = &cobra.Command{
	Use:   "disassemble <artifact.zip>",
	Short: "Print a human-readable listing of an artifact's bytecode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		art, err := artifact.Open(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), emitter.Disassemble(art.Bytecode))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disassembleCmd)
}
