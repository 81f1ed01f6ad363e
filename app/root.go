// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pamauth",
	Short: "pamauth is an external authentication service for wiki farms",
	Long: `pamauth authenticates wiki users against an external authority
and keeps their wiki profiles synchronized with the authority's view
of the user.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
