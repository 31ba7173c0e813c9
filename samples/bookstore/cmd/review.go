package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docent-go/docent/samples/bookstore/app"
)

var (
	reviewStars   int32
	reviewComment string
)

var reviewCmd = &cobra.Command{
	Use:   "review <isbn> <reviewer>",
	Short: "Add a review to a book",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewStars < 1 || reviewStars > 5 {
			return fmt.Errorf("stars must be between 1 and 5")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		r := app.Review{Reviewer: args[1], Stars: reviewStars, Comment: reviewComment}
		if err := a.AddReview(cmd.Context(), args[0], r); err != nil {
			return err
		}
		fmt.Printf("Review by %s recorded\n", args[1])
		return nil
	},
}

func init() {
	reviewCmd.Flags().Int32VarP(&reviewStars, "stars", "s", 5, "Star rating (1-5)")
	reviewCmd.Flags().StringVarP(&reviewComment, "comment", "m", "", "Review text")

	rootCmd.AddCommand(reviewCmd)
}
