package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noesis-ai/noesis/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "noesisd",
		Short: "Noesis knowledge engine daemon and CLI",
		Long:  "Noesis daemon for running the knowledge engine API server and managing API keys, categories, and corpus re-embedding",
	}

	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.ReembedCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.APIKeyCmd())
	rootCmd.AddCommand(cli.CategoryCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
