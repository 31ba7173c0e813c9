package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	restockCount    int32
	restockDiscount float64
	restockClear    bool
)

var restockCmd = &cobra.Command{
	Use:   "restock <isbn>",
	Short: "Adjust stock or discount for a book",
	Long: `Adjust the stock counter of a book, and optionally its discount.

Examples:
  bookstore restock 978-0441013593 --count 10
  bookstore restock 978-0441013593 --count -2
  bookstore restock 978-0441013593 --discount 0.25
  bookstore restock 978-0441013593 --clear-discount`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		isbn := args[0]

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if restockCount != 0 {
			if err := a.Restock(cmd.Context(), isbn, restockCount); err != nil {
				return err
			}
			fmt.Printf("Stock adjusted by %+d\n", restockCount)
		}

		if restockClear {
			if err := a.SetDiscount(cmd.Context(), isbn, nil); err != nil {
				return err
			}
			fmt.Println("Discount cleared")
		} else if cmd.Flags().Changed("discount") {
			if err := a.SetDiscount(cmd.Context(), isbn, &restockDiscount); err != nil {
				return err
			}
			fmt.Printf("Discount set to %.0f%%\n", restockDiscount*100)
		}
		return nil
	},
}

func init() {
	restockCmd.Flags().Int32VarP(&restockCount, "count", "n", 0, "Stock delta (may be negative)")
	restockCmd.Flags().Float64Var(&restockDiscount, "discount", 0, "Discount fraction (0.25 = 25% off)")
	restockCmd.Flags().BoolVar(&restockClear, "clear-discount", false, "Remove the discount")

	rootCmd.AddCommand(restockCmd)
}
