// Package app wires the bookstore sample: entity declarations, the file
// store backed registry, and the operations the commands call.
package app

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/docent-go/docent/docent"
	"github.com/docent-go/docent/driver/filestore"
	"github.com/docent-go/docent/driver/mongostore"
	"github.com/docent-go/docent/index"
	"github.com/docent-go/docent/query"
	"github.com/docent-go/docent/update"
)

// App owns the backing store and the typed book collection.
type App struct {
	books   *docent.Collection[Book]
	log     *zap.Logger
	closeFn func() error
}

// Open loads the file-backed store and initializes the registry, declaring
// the unique ISBN index and the listing index on every start.
func Open(ctx context.Context, path string, log *zap.Logger) (*App, error) {
	store, err := filestore.Open(path, filestore.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a, err := newApp(ctx, store, store.Close, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

// OpenMongo connects to a MongoDB deployment instead of the local file.
func OpenMongo(ctx context.Context, uri, database string, log *zap.Logger) (*App, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %q: %w", uri, err)
	}
	disconnect := func() error { return client.Disconnect(context.Background()) }

	a, err := newApp(ctx, mongostore.New(client.Database(database)), disconnect, log)
	if err != nil {
		_ = disconnect()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, driver docent.Driver, closeFn func() error, log *zap.Logger) (*App, error) {
	registry := docent.NewRegistry(driver, docent.WithLogger(log))
	books := docent.MustBind(registry, BookType, "books",
		docent.WithIndexes(
			index.New(index.Asc(BookISBN)).AsUnique().WithName("isbn_unique"),
			index.New(index.Asc(BookAuthor), index.Desc(BookPublished)),
		))

	if err := registry.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	return &App{books: books, log: log, closeFn: closeFn}, nil
}

// Close releases the store, the file lock or the client connection.
func (a *App) Close() error {
	return a.closeFn()
}

// AddBook stores a new book and returns its generated identifier.
func (a *App) AddBook(ctx context.Context, b *Book) (string, error) {
	if err := a.books.InsertOne(ctx, b); err != nil {
		return "", err
	}
	return b.ID, nil
}

// GetBook fetches one book by identifier.
func (a *App) GetBook(ctx context.Context, id string) (*Book, error) {
	return a.books.Get(ctx, id)
}

// ListBooks returns books, optionally restricted to a genre, ordered by
// author then newest first.
func (a *App) ListBooks(ctx context.Context, genre Genre) ([]Book, error) {
	filter := query.And[Book]()
	if genre != "" {
		filter = query.Equal(BookGenre, genre)
	}
	return a.books.Find(ctx, filter,
		docent.SortBy(index.Asc(BookAuthor), index.Desc(BookPublished)))
}

// SearchBooks matches the pattern against titles and tags.
func (a *App) SearchBooks(ctx context.Context, pattern string) ([]Book, error) {
	return a.books.Find(ctx, query.Or(
		query.Regex(BookTitle, pattern),
		query.Contains(BookTags, pattern),
	))
}

// FindByAuthor returns the author's books, newest first.
func (a *App) FindByAuthor(ctx context.Context, author string) ([]Book, error) {
	return a.books.Find(ctx, query.Equal(BookAuthor, author),
		docent.SortBy(index.Desc(BookPublished)))
}

// Restock adjusts the stock counter of the book with the given ISBN.
func (a *App) Restock(ctx context.Context, isbn string, delta int32) error {
	res, err := a.books.UpdateOne(ctx,
		query.Equal(BookISBN, isbn),
		update.Inc(update.New[Book](), BookStock, delta))
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return fmt.Errorf("no book with ISBN %q", isbn)
	}
	return nil
}

// SetDiscount sets or clears the discount fraction on a book.
func (a *App) SetDiscount(ctx context.Context, isbn string, discount *float64) error {
	u := update.New[Book]()
	if discount == nil {
		update.Unset(u, BookDiscount)
	} else {
		update.Set(u, BookDiscount, *discount)
	}
	res, err := a.books.UpdateOne(ctx, query.Equal(BookISBN, isbn), u)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return fmt.Errorf("no book with ISBN %q", isbn)
	}
	return nil
}

// AddReview appends a review to the book with the given ISBN.
func (a *App) AddReview(ctx context.Context, isbn string, r Review) error {
	res, err := a.books.UpdateOne(ctx,
		query.Equal(BookISBN, isbn),
		update.Push(update.New[Book](), BookReviews, r))
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return fmt.Errorf("no book with ISBN %q", isbn)
	}
	return nil
}

// Stats returns shelf counts the stats command prints.
func (a *App) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	total, err := a.books.Count(ctx, query.And[Book]())
	if err != nil {
		return nil, err
	}
	stats["total"] = total

	for _, g := range []Genre{GenreFiction, GenreNonFiction, GenreSciFi, GenreMystery} {
		n, err := a.books.Count(ctx, query.Equal(BookGenre, g))
		if err != nil {
			return nil, err
		}
		stats[string(g)] = n
	}

	low, err := a.books.Count(ctx, query.Less(BookStock, 5))
	if err != nil {
		return nil, err
	}
	stats["low_stock"] = low

	rated, err := a.books.Count(ctx, query.GreaterEquals(BookReviewStars, 4))
	if err != nil {
		return nil, err
	}
	stats["well_reviewed"] = rated

	return stats, nil
}
