package docent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/docent-go/docent/index"
	"github.com/docent-go/docent/query"
	"github.com/docent-go/docent/schema"
	"github.com/docent-go/docent/update"
)

// Collection is the typed handle for one bound collection. Filters and
// updates it accepts are parameterized by the same entity type, so an
// expression built against another entity does not compile here.
type Collection[E any] struct {
	registry *Registry
	entity   *schema.Type[E]
	name     string
}

// Name returns the bound collection name.
func (c *Collection[E]) Name() string { return c.name }

// FindOption shapes a Find call.
type FindOption func(*FindOptions)

// SortBy orders results by the given keys, reusing the index key
// constructors for direction.
func SortBy(keys ...index.Key) FindOption {
	return func(o *FindOptions) {
		for _, k := range keys {
			o.Sort = append(o.Sort, bson.E{Key: k.Field, Value: k.Value})
		}
	}
}

// Limit caps the number of returned documents.
func Limit(n int64) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}

// Skip discards the first n matching documents.
func Skip(n int64) FindOption {
	return func(o *FindOptions) { o.Skip = n }
}

// UpdateOption shapes an update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	upsert bool
}

// Upsert inserts a new document when the filter matches nothing. The flag is
// passed through to the driver verbatim.
func Upsert() UpdateOption {
	return func(o *updateOptions) { o.upsert = true }
}

// InsertOne serializes the entity and stores it. An empty identifier is
// filled with a fresh random one and written back to the entity before
// serialization.
func (c *Collection[E]) InsertOne(ctx context.Context, e *E) error {
	et := c.entity.EntityType()
	id, err := et.IDValue(e)
	if err != nil {
		return err
	}
	if id == "" {
		id = uuid.New().String()
		if err := et.SetIDValue(e, id); err != nil {
			return err
		}
	}
	doc, err := schema.Marshal(c.entity, e)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", et.Name(), err)
	}
	if err := c.registry.driver.InsertOne(ctx, c.name, doc); err != nil {
		return err
	}
	c.registry.log.Debug("inserted document", zap.String("collection", c.name), zap.String("id", id))
	return nil
}

// Get fetches the document with the given identifier.
func (c *Collection[E]) Get(ctx context.Context, id string) (*E, error) {
	return c.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

// FindOne fetches the first document matching the filter, or ErrNotFound.
func (c *Collection[E]) FindOne(ctx context.Context, filter query.Expr[E]) (*E, error) {
	f, err := filter.Render()
	if err != nil {
		return nil, err
	}
	return c.findOne(ctx, f)
}

func (c *Collection[E]) findOne(ctx context.Context, filter bson.D) (*E, error) {
	doc, err := c.registry.driver.FindOne(ctx, c.name, filter, FindOptions{})
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

// Find fetches every document matching the filter. A document whose stored
// shape no longer fits the declared entity is skipped and logged unless the
// registry was built with WithStrictDecode, in which case it aborts the
// call; one stale document should not take down a whole listing by default.
func (c *Collection[E]) Find(ctx context.Context, filter query.Expr[E], opts ...FindOption) ([]E, error) {
	f, err := filter.Render()
	if err != nil {
		return nil, err
	}
	var fo FindOptions
	for _, o := range opts {
		o(&fo)
	}
	cur, err := c.registry.driver.Find(ctx, c.name, f, fo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []E
	for cur.Next(ctx) {
		doc, err := cur.Document()
		if err != nil {
			return nil, err
		}
		e, err := c.decode(doc)
		if err != nil {
			var de *schema.DeserializationError
			if errors.As(err, &de) && !c.registry.strict {
				c.registry.log.Warn("skipping undecodable document",
					zap.String("collection", c.name),
					zap.String("path", de.Path),
					zap.String("declared", de.Declared),
					zap.String("stored", de.Stored))
				continue
			}
			return nil, err
		}
		out = append(out, *e)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of documents matching the filter.
func (c *Collection[E]) Count(ctx context.Context, filter query.Expr[E]) (int64, error) {
	f, err := filter.Render()
	if err != nil {
		return 0, err
	}
	return c.registry.driver.Count(ctx, c.name, f)
}

// UpdateOne applies the sealed update to the first document matching the
// filter.
func (c *Collection[E]) UpdateOne(ctx context.Context, filter query.Expr[E], u *update.Update[E], opts ...UpdateOption) (UpdateResult, error) {
	f, mod, uo, err := c.updateArgs(filter, u, opts)
	if err != nil {
		return UpdateResult{}, err
	}
	return c.registry.driver.UpdateOne(ctx, c.name, f, mod, uo.upsert)
}

// UpdateMany applies the sealed update to every document matching the
// filter.
func (c *Collection[E]) UpdateMany(ctx context.Context, filter query.Expr[E], u *update.Update[E], opts ...UpdateOption) (UpdateResult, error) {
	f, mod, uo, err := c.updateArgs(filter, u, opts)
	if err != nil {
		return UpdateResult{}, err
	}
	return c.registry.driver.UpdateMany(ctx, c.name, f, mod, uo.upsert)
}

func (c *Collection[E]) updateArgs(filter query.Expr[E], u *update.Update[E], opts []UpdateOption) (bson.D, bson.D, updateOptions, error) {
	var uo updateOptions
	for _, o := range opts {
		o(&uo)
	}
	f, err := filter.Render()
	if err != nil {
		return nil, nil, uo, err
	}
	mod, err := u.Build()
	if err != nil {
		return nil, nil, uo, err
	}
	return f, mod, uo, nil
}

// ReplaceOne swaps the first document matching the filter for the serialized
// entity.
func (c *Collection[E]) ReplaceOne(ctx context.Context, filter query.Expr[E], e *E, opts ...UpdateOption) (UpdateResult, error) {
	var uo updateOptions
	for _, o := range opts {
		o(&uo)
	}
	f, err := filter.Render()
	if err != nil {
		return UpdateResult{}, err
	}
	doc, err := schema.Marshal(c.entity, e)
	if err != nil {
		return UpdateResult{}, err
	}
	return c.registry.driver.ReplaceOne(ctx, c.name, f, doc, uo.upsert)
}

// DeleteOne removes the first document matching the filter and reports
// whether one was removed.
func (c *Collection[E]) DeleteOne(ctx context.Context, filter query.Expr[E]) (int64, error) {
	f, err := filter.Render()
	if err != nil {
		return 0, err
	}
	return c.registry.driver.DeleteOne(ctx, c.name, f)
}

// DeleteMany removes every document matching the filter and returns the
// count.
func (c *Collection[E]) DeleteMany(ctx context.Context, filter query.Expr[E]) (int64, error) {
	f, err := filter.Render()
	if err != nil {
		return 0, err
	}
	return c.registry.driver.DeleteMany(ctx, c.name, f)
}

func (c *Collection[E]) decode(doc bson.D) (*E, error) {
	e, rep, err := schema.UnmarshalWithReport(c.entity, doc)
	if err != nil {
		return nil, err
	}
	for _, path := range rep.LossyNulls {
		c.registry.log.Warn("stored null collapsed to zero value",
			zap.String("collection", c.name),
			zap.String("path", path))
	}
	return e, nil
}
