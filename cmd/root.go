package cmd

import (
	"fmt"
	"log"
	"os"

	"MSMA/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "msma_server",
	Short: "MSMA is a track catalog service with automated pre-moderation.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting MSMA server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
