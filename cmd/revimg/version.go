package main

import (
	"github.com/spf13/cobra"
	"github.com/use-agent/revimg/api/handler"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("revimg version %s\n", handler.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
