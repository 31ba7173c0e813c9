package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docent-go/docent/samples/bookstore/app"
)

var findAuthor string

var findCmd = &cobra.Command{
	Use:   "find [pattern]",
	Short: "Find books by title pattern, tag, or author",
	Long: `Find books. With a pattern argument, matches titles by regular
expression and tags by exact value. With --author, lists that author's books
newest first.

Examples:
  bookstore find "(?i)left hand"
  bookstore find --author "Frank Herbert"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if findAuthor == "" && len(args) == 0 {
			return fmt.Errorf("give a pattern or --author")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var books []app.Book
		if findAuthor != "" {
			books, err = a.FindByAuthor(cmd.Context(), findAuthor)
		} else {
			books, err = a.SearchBooks(cmd.Context(), args[0])
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(books) == 0 {
			fmt.Println("No books found.")
			return nil
		}
		for _, b := range books {
			printBook(b)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVarP(&findAuthor, "author", "a", "", "List books by this author")
	rootCmd.AddCommand(findCmd)
}
