package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Jewelry storefront cart and checkout service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory containing config.toml")

	root.AddCommand(newServeCmd(&configDir))
	root.AddCommand(newQuoteCmd(&configDir))
	return root
}

func configPaths(dir string) []string {
	if dir == "" {
		return nil
	}
	return []string{dir}
}
