package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docent-go/docent/samples/bookstore/app"
)

var listGenre string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List books, optionally filtered by genre",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		books, err := a.ListBooks(cmd.Context(), app.Genre(listGenre))
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
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

func printBook(b app.Book) {
	price := fmt.Sprintf("%.2f", b.Price)
	if b.Discount != nil {
		price = fmt.Sprintf("%.2f (-%.0f%%)", b.Price*(1-*b.Discount), *b.Discount*100)
	}
	fmt.Printf("%-40s %-24s %-10s %8s  stock:%d\n", b.Title, b.Author, b.Genre, price, b.Stock)
	if verbose {
		fmt.Printf("    id:%s isbn:%s publisher:%s reviews:%d\n", b.ID, b.ISBN, b.Publisher.Name, len(b.Reviews))
	}
}

func init() {
	listCmd.Flags().StringVarP(&listGenre, "genre", "g", "", "Restrict to one genre")
	rootCmd.AddCommand(listCmd)
}
