package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xm4dn355x/webpilot/internal/tools"
)

func newBankCmd() *cobra.Command {
	var successStatus string

	bankCmd := &cobra.Command{
		Use:   "bank [task]",
		Short: "Run a banking workflow: log in, read the balance, reach the transfer page",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindChangedFlags(cmd, map[string]string{
				"base-url": "sites.bank_base_url",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := reloadConfig(); err != nil {
				return err
			}
			if cfg.Sites.BankBaseURL == "" {
				return fmt.Errorf("a bank base URL is required (--base-url or sites.bank_base_url)")
			}

			task := "Log in to the bank, confirm the dashboard, read the account balance, then navigate to the transfer page."
			if len(args) > 0 {
				task = args[0]
			}
			task = fmt.Sprintf("%s The bank site is at %s.", task, cfg.Sites.BankBaseURL)

			rt, err := newRuntime(cmd.Context(), tools.GeneralCatalog, tools.BankCatalog)
			if err != nil {
				return err
			}
			return runTask(cmd.Context(), rt, "bank", task, defaultLoopConfig(successStatus))
		},
	}

	bankCmd.Flags().String("base-url", "", "bank site base URL")
	bankCmd.Flags().StringVar(&successStatus, "success-status", "transfer_page=True", "status string that ends the run as a success")
	return bankCmd
}

func init() {
	rootCmd.AddCommand(newBankCmd())
}
