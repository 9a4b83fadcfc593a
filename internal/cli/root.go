// Package cli wires the quiz server components together behind a
// cobra command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizroom",
		Short: "Line-protocol quiz server with an operator dashboard",
	}

	cmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
	cmd.AddCommand(newServeCmd(&envFile))
	return cmd
}
