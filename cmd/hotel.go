package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xm4dn355x/webpilot/internal/tools"
)

func newHotelCmd() *cobra.Command {
	var successStatus string

	hotelCmd := &cobra.Command{
		Use:   "hotel [task]",
		Short: "Run a hotel search workflow and stop at the reservation CTA",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindChangedFlags(cmd, map[string]string{
				"base-url": "sites.hotel_base_url",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := reloadConfig(); err != nil {
				return err
			}

			task := "Search for a hotel, pick dates and guests, apply a star filter, open the best result and reach the reserve button. Never confirm a booking."
			if len(args) > 0 {
				task = args[0]
			}

			rt, err := newRuntime(cmd.Context(), tools.GeneralCatalog, tools.HotelCatalog)
			if err != nil {
				return err
			}
			return runTask(cmd.Context(), rt, "hotel", task, defaultLoopConfig(successStatus))
		},
	}

	hotelCmd.Flags().String("base-url", "", "hotel site base URL")
	hotelCmd.Flags().StringVar(&successStatus, "success-status", "Clicked Reserve/Book/Continue CTA.", "status string that ends the run as a success")
	return hotelCmd
}

func init() {
	rootCmd.AddCommand(newHotelCmd())
}
