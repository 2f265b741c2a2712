package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamarack-opt/tamarack"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the tamarack version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), tamarack.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
