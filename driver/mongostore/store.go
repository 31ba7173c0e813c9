// Package mongostore is the production driver: a thin adapter from the
// driver interface onto an existing mongo database handle. Rendering and
// typing live upstream; this package only translates options, results and
// the not-found sentinel.
package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docent-go/docent/docent"
	"github.com/docent-go/docent/index"
)

const codeNamespaceExists = 48

// Store adapts a mongo database to the driver interface. The caller owns the
// client lifecycle, connection pooling and authentication.
type Store struct {
	db *mongo.Database
}

// New wraps an already-connected database handle.
func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc bson.D) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	return err
}

func (s *Store) FindOne(ctx context.Context, collection string, filter bson.D, opts docent.FindOptions) (bson.D, error) {
	fo := options.FindOne()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	var doc bson.D
	err := s.db.Collection(collection).FindOne(ctx, filter, fo).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docent.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) Find(ctx context.Context, collection string, filter bson.D, opts docent.FindOptions) (docent.Cursor, error) {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	cur, err := s.db.Collection(collection).Find(ctx, filter, fo)
	if err != nil {
		return nil, err
	}
	return &cursor{cur: cur}, nil
}

func (s *Store) UpdateOne(ctx context.Context, collection string, filter, update bson.D, upsert bool) (docent.UpdateResult, error) {
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return docent.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *Store) UpdateMany(ctx context.Context, collection string, filter, update bson.D, upsert bool) (docent.UpdateResult, error) {
	res, err := s.db.Collection(collection).UpdateMany(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return docent.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *Store) ReplaceOne(ctx context.Context, collection string, filter, doc bson.D, upsert bool) (docent.UpdateResult, error) {
	res, err := s.db.Collection(collection).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(upsert))
	if err != nil {
		return docent.UpdateResult{}, err
	}
	return updateResult(res), nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, filter)
}

// EnsureCollection explicitly creates capped collections; regular ones are
// created implicitly on first write. An already existing namespace is
// tolerated so startup stays idempotent.
func (s *Store) EnsureCollection(ctx context.Context, collection string, capped *docent.CappedSettings) error {
	if capped == nil {
		return nil
	}
	opts := options.CreateCollection().SetCapped(true).SetSizeInBytes(capped.MaxBytes)
	err := s.db.CreateCollection(ctx, collection, opts)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists {
		return nil
	}
	return err
}

func (s *Store) EnsureIndexes(ctx context.Context, collection string, descriptors []index.Descriptor) error {
	if len(descriptors) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(descriptors))
	for _, d := range descriptors {
		io := options.Index()
		if d.Name != "" {
			io.SetName(d.Name)
		}
		if d.Unique {
			io.SetUnique(true)
		}
		if d.Sparse {
			io.SetSparse(true)
		}
		if d.HasExpiry {
			io.SetExpireAfterSeconds(int32(d.ExpireAfter.Seconds()))
		}
		if d.PartialFilter != nil {
			io.SetPartialFilterExpression(d.PartialFilter)
		}
		models = append(models, mongo.IndexModel{Keys: d.Keys, Options: io})
	}
	_, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models)
	return err
}

func updateResult(res *mongo.UpdateResult) docent.UpdateResult {
	out := docent.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}
	if id, ok := res.UpsertedID.(string); ok {
		out.UpsertedID = id
	}
	return out
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *cursor) Document() (bson.D, error) {
	var doc bson.D
	if err := c.cur.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *cursor) Err() error { return c.cur.Err() }

func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
