// Package docent binds registered root entity types to named collections and
// exposes typed operations over them. It owns no I/O: every call renders the
// typed expressions into generic documents, hands them to the configured
// Driver, and routes returned documents back through the entity mapper.
package docent

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docent-go/docent/index"
)

// ErrNotFound is returned by lookups that match no document.
var ErrNotFound = errors.New("document not found")

// CappedSettings asks the driver to create the collection with a fixed byte
// budget, evicting the oldest documents once it is exceeded.
type CappedSettings struct {
	MaxBytes int64
}

// FindOptions carries the cursor shaping forwarded verbatim to the driver.
type FindOptions struct {
	Sort  bson.D
	Limit int64
	Skip  int64
}

// UpdateResult reports the outcome of an update call.
type UpdateResult struct {
	Matched    int64
	Modified   int64
	UpsertedID string
}

// Cursor streams generic documents out of a Find call.
type Cursor interface {
	// Next advances the cursor; false means exhaustion or error.
	Next(ctx context.Context) bool

	// Document returns the current generic document.
	Document() (bson.D, error)

	// Err returns the first iteration error, if any.
	Err() error

	// Close releases the cursor's resources.
	Close(ctx context.Context) error
}

// Driver is the boundary to the underlying document store: generic documents
// in, generic documents out. Implementations own transport, pooling,
// authentication and wire encoding; this package never looks behind the
// interface. All failures of the network layer pass through unmodified.
type Driver interface {
	InsertOne(ctx context.Context, collection string, doc bson.D) error
	FindOne(ctx context.Context, collection string, filter bson.D, opts FindOptions) (bson.D, error)
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) (Cursor, error)
	UpdateOne(ctx context.Context, collection string, filter, update bson.D, upsert bool) (UpdateResult, error)
	UpdateMany(ctx context.Context, collection string, filter, update bson.D, upsert bool) (UpdateResult, error)
	ReplaceOne(ctx context.Context, collection string, filter, doc bson.D, upsert bool) (UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)

	// EnsureCollection creates the collection if needed, honoring capped
	// settings; re-issuing for an existing collection is a no-op.
	EnsureCollection(ctx context.Context, collection string, capped *CappedSettings) error

	// EnsureIndexes declares the given indexes; re-issuing identical
	// descriptors against already-correct indexes is a no-op.
	EnsureIndexes(ctx context.Context, collection string, descriptors []index.Descriptor) error
}
