package main

import (
	"github.com/fjod/style_cart/pkg/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stylectl",
		Short:         "Style Cart - catalog and bag pricing CLI",
		Long:          "Browse the product catalog the way the storefront grid does and price a bag offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadDotEnv()
		},
	}

	root.PersistentFlags().String("format", "table", "Output format: table, json")

	root.AddCommand(newProductsCmd(), newQuoteCmd())
	return root
}
