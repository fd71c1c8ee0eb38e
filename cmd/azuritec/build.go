package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// buildCmd documents the integration point spec.md §1/§6 describe
// without implementing it: compiling source text into an artifact
// requires the lexer, parser and type-checker, all explicitly out of
// scope for this module. The subcommand exists so the CLI's shape
// matches spec.md §6 exactly.
var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Compile a source file into an artifact (out of scope: no front end in this module)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return errors.New("build: no lexer/parser/type-checker is wired into this module; " +
			"hand internal/irbuilder a typed AST and internal/artifact.Write the result instead")
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
