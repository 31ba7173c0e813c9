package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docent-go/docent/samples/bookstore/app"
)

var (
	addAuthor    string
	addISBN      string
	addGenre     string
	addPrice     float64
	addStock     int32
	addPublished string
	addTags      []string
	addPublisher string
	addCountry   string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new book to the inventory",
	Long: `Add a new book to the inventory.

Examples:
  bookstore add --author "Frank Herbert" --isbn 978-0441013593 --genre scifi "Dune"
  bookstore add --author "Tana French" --price 14.99 --stock 3 "In the Woods"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book := &app.Book{
			Title:     args[0],
			Author:    addAuthor,
			ISBN:      addISBN,
			Genre:     app.Genre(addGenre),
			Price:     addPrice,
			Stock:     addStock,
			Published: time.Now().UTC(),
			Tags:      addTags,
			Publisher: app.Publisher{Name: addPublisher, Country: addCountry},
		}
		if addPublished != "" {
			t, err := time.Parse("2006-01-02", addPublished)
			if err != nil {
				return fmt.Errorf("invalid published date (use YYYY-MM-DD): %w", err)
			}
			book.Published = t
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.AddBook(cmd.Context(), book)
		if err != nil {
			return fmt.Errorf("failed to add book: %w", err)
		}

		fmt.Printf("Added %q (%s)\n", book.Title, id)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addAuthor, "author", "a", "", "Author name")
	addCmd.Flags().StringVar(&addISBN, "isbn", "", "ISBN")
	addCmd.Flags().StringVarP(&addGenre, "genre", "g", string(app.GenreFiction), "Genre (fiction, nonfiction, scifi, mystery)")
	addCmd.Flags().Float64VarP(&addPrice, "price", "p", 0, "List price")
	addCmd.Flags().Int32VarP(&addStock, "stock", "n", 0, "Copies in stock")
	addCmd.Flags().StringVar(&addPublished, "published", "", "Publication date (YYYY-MM-DD)")
	addCmd.Flags().StringSliceVarP(&addTags, "tag", "t", nil, "Tags (repeatable)")
	addCmd.Flags().StringVar(&addPublisher, "publisher", "", "Publisher name")
	addCmd.Flags().StringVar(&addCountry, "country", "", "Publisher country")

	rootCmd.AddCommand(addCmd)
}
