package app

import (
	"time"

	"github.com/docent-go/docent/schema"
)

// Genre is the fixed set of shelf categories.
type Genre string

const (
	GenreFiction    Genre = "fiction"
	GenreNonFiction Genre = "nonfiction"
	GenreSciFi      Genre = "scifi"
	GenreMystery    Genre = "mystery"
)

// Publisher is embedded in every book.
type Publisher struct {
	Name    string
	Country string
}

// Review is one reader review, stored inline on the book.
type Review struct {
	Reviewer string
	Stars    int32
	Comment  string
}

// Book is the root entity of the sample.
type Book struct {
	ID        string
	Title     string
	Author    string
	ISBN      string
	Genre     Genre
	Price     float64
	Stock     int32
	Published time.Time
	Discount  *float64
	Tags      []string
	Publisher Publisher
	Reviews   []Review
}

var publisherBuilder = schema.NewEmbedded[Publisher]("publisher")

var (
	PublisherName    = schema.String(publisherBuilder, "name", func(p *Publisher) *string { return &p.Name })
	PublisherCountry = schema.String(publisherBuilder, "country", func(p *Publisher) *string { return &p.Country },
		schema.Optional[string]())

	PublisherType = publisherBuilder.MustBuild()
)

var reviewBuilder = schema.NewEmbedded[Review]("review")

var (
	ReviewReviewer = schema.String(reviewBuilder, "reviewer", func(r *Review) *string { return &r.Reviewer })
	ReviewStars    = schema.Int32(reviewBuilder, "stars", func(r *Review) *int32 { return &r.Stars })
	ReviewComment  = schema.String(reviewBuilder, "comment", func(r *Review) *string { return &r.Comment },
		schema.Optional[string]())

	ReviewType = reviewBuilder.MustBuild()
)

var bookBuilder = schema.NewRoot[Book]("book")

var (
	BookID    = bookBuilder.ID(func(b *Book) *string { return &b.ID })
	BookTitle = schema.String(bookBuilder, "title", func(b *Book) *string { return &b.Title })
	BookAuthor = schema.String(bookBuilder, "author", func(b *Book) *string { return &b.Author })
	BookISBN   = schema.String(bookBuilder, "isbn", func(b *Book) *string { return &b.ISBN })
	BookGenre  = schema.Enum(bookBuilder, "genre", func(b *Book) *Genre { return &b.Genre },
		schema.Default(GenreFiction))
	BookPrice = schema.Double(bookBuilder, "price", func(b *Book) *float64 { return &b.Price })
	BookStock = schema.Int32(bookBuilder, "stock", func(b *Book) *int32 { return &b.Stock },
		schema.Default[int32](0))
	BookPublished = schema.Date(bookBuilder, "published", func(b *Book) *time.Time { return &b.Published })
	BookDiscount  = schema.NullDouble(bookBuilder, "discount", func(b *Book) **float64 { return &b.Discount })
	BookTags      = schema.Strings(bookBuilder, "tags", func(b *Book) *[]string { return &b.Tags },
		schema.Optional[[]string]())
	BookPublisher = schema.Embedded(bookBuilder, "publisher", PublisherType, func(b *Book) *Publisher { return &b.Publisher })
	BookReviews   = schema.EmbeddedList(bookBuilder, "reviews", ReviewType, func(b *Book) *[]Review { return &b.Reviews },
		schema.Optional[[]Review]())

	BookType = bookBuilder.MustBuild()
)

// Joined paths used across commands.
var (
	BookPublisherName = schema.Join(BookPublisher, PublisherName)
	BookReviewStars   = schema.Join(schema.Elem(BookReviews), ReviewStars)
)
