// Package cli builds ShareFlow's cobra command tree, grounded on
// helixml-helix/api/cmd/helix's root.go/serve.go shape.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the shareflow command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shareflow",
		Short: "ShareFlow",
		Long:  "LAN peer-to-peer keyboard and mouse sharing.",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the command tree, exiting the process on error.
func Execute() {
	root := NewRootCmd()
	root.SetContext(context.Background())
	root.SetOut(os.Stdout)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
