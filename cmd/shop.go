package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xm4dn355x/webpilot/internal/tools"
)

func newShopCmd() *cobra.Command {
	var query string

	shopCmd := &cobra.Command{
		Use:   "shop [task]",
		Short: "Run a product purchase workflow that halts at the irreversible checkout stage",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindChangedFlags(cmd, map[string]string{
				"base-url":  "sites.shop_base_url",
				"max-price": "guard.max_price",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := reloadConfig(); err != nil {
				return err
			}

			task := fmt.Sprintf(
				"Search the shop for %q, open a suitable result under the price limit of %.2f, add it to the cart and proceed toward checkout. Never place the order.",
				query, cfg.Guard.MaxPrice)
			if len(args) > 0 {
				task = args[0]
			}

			rt, err := newRuntime(cmd.Context(), tools.GeneralCatalog, tools.ShopCatalog)
			if err != nil {
				return err
			}
			// The checkout guard status is terminal and counts as the
			// intended end state of this workflow.
			return runTask(cmd.Context(), rt, "shop", task, defaultLoopConfig(""))
		},
	}

	shopCmd.Flags().String("base-url", "", "shop site base URL")
	shopCmd.Flags().Float64("max-price", 0, "spending ceiling for this run")
	shopCmd.Flags().StringVar(&query, "query", "wireless mouse", "product search query used in the default task")
	return shopCmd
}

func init() {
	rootCmd.AddCommand(newShopCmd())
}
