// Package cli is the billing command line: the HTTP server and a few maintenance commands.
package cli

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "billing",
		Short:         "Retail billing terminal",
		Long:          "Runs the retail billing API and inspects the saved-bill archive.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newBillsCmd())
	cmd.AddCommand(newCatalogCmd())
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
