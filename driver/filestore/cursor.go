package filestore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// sliceCursor streams an already-materialized result set. The store resolves
// the whole query under its read lock, so the cursor holds a private slice
// and never touches store state again.
type sliceCursor struct {
	docs []bson.D
	pos  int
	err  error
}

func newSliceCursor(docs []bson.D) *sliceCursor {
	return &sliceCursor{docs: docs, pos: -1}
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *sliceCursor) Document() (bson.D, error) {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil, fmt.Errorf("cursor is not positioned on a document")
	}
	return c.docs[c.pos], nil
}

func (c *sliceCursor) Err() error { return c.err }

func (c *sliceCursor) Close(ctx context.Context) error {
	c.docs = nil
	return nil
}
