// Package filestore is the single-file driver: every bound collection lives
// in one canonical extended JSON file, guarded by a process-level file lock
// and an in-process read/write lock. It exists for small deployments and for
// tests; the full query and update surface of the driver interface is
// evaluated in memory against the loaded documents.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/docent-go/docent/docent"
	"github.com/docent-go/docent/index"
)

// fileData is the on-disk shape: one canonical extended JSON document
// holding every collection plus bookkeeping metadata.
type fileData struct {
	Version     string                      `bson:"version"`
	UpdatedAt   time.Time                   `bson:"updatedAt"`
	Collections map[string]*collectionState `bson:"collections"`
}

type collectionState struct {
	CappedBytes int64  `bson:"cappedBytes,omitempty"`
	Docs        bson.A `bson:"docs"`
}

type collection struct {
	capped int64
	docs   []bson.D
}

// Store implements the driver interface over a single file.
type Store struct {
	path  string
	flock *flock.Flock
	log   *zap.Logger
	lm    *locker

	collections map[string]*collection
	indexes     map[string][]index.Descriptor
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Open loads the store file, creating it lazily on first write. A sidecar
// lock file is claimed for the lifetime of the store, so a second process
// opening the same path fails fast instead of corrupting it.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:        path,
		flock:       flock.New(path + ".lock"),
		log:         zap.NewNop(),
		lm:          &locker{},
		collections: map[string]*collection{},
		indexes:     map[string][]index.Descriptor{},
	}
	for _, o := range opts {
		o(s)
	}

	locked, err := s.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("store %q is locked by another process", path)
	}

	if err := s.load(); err != nil {
		_ = s.flock.Unlock()
		return nil, err
	}
	s.log.Debug("store opened", zap.String("path", path), zap.Int("collections", len(s.collections)))
	return s, nil
}

// Close releases the process-level file lock. The store is unusable after.
func (s *Store) Close() error {
	return s.flock.Unlock()
}

// load reads the file into memory. A missing or empty file means a fresh
// store. Caller handles locking.
func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var fd fileData
	if err := bson.UnmarshalExtJSON(raw, true, &fd); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	for name, state := range fd.Collections {
		c := &collection{capped: state.CappedBytes, docs: make([]bson.D, 0, len(state.Docs))}
		for i, el := range state.Docs {
			doc, ok := el.(bson.D)
			if !ok {
				return fmt.Errorf("collection %q document %d is not a document", name, i)
			}
			c.docs = append(c.docs, doc)
		}
		s.collections[name] = c
	}
	return nil
}

// save writes the in-memory state back out, through a temp file renamed into
// place so readers never see a torn write. Caller handles locking.
func (s *Store) save() error {
	fd := fileData{
		Version:     "1",
		UpdatedAt:   time.Now().UTC(),
		Collections: make(map[string]*collectionState, len(s.collections)),
	}
	for name, c := range s.collections {
		state := &collectionState{CappedBytes: c.capped, Docs: make(bson.A, 0, len(c.docs))}
		for _, doc := range c.docs {
			state.Docs = append(state.Docs, doc)
		}
		fd.Collections[name] = state
	}

	raw, err := bson.MarshalExtJSONIndent(fd, true, false, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (s *Store) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{}
		s.collections[name] = c
	}
	return c
}

// InsertOne appends the document, enforcing declared unique indexes and the
// collection's byte budget before persisting.
func (s *Store) InsertOne(ctx context.Context, name string, doc bson.D) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.lm.write(func() error {
		c := s.collection(name)
		if err := s.checkUnique(name, c.docs, doc, -1); err != nil {
			return err
		}
		c.docs = append(c.docs, doc)
		s.trimCapped(c)
		if err := s.save(); err != nil {
			c.docs = c.docs[:len(c.docs)-1]
			return fmt.Errorf("failed to save: %w", err)
		}
		return nil
	})
}

// FindOne returns the first matching document in the requested order, or
// docent.ErrNotFound.
func (s *Store) FindOne(ctx context.Context, name string, filter bson.D, opts docent.FindOptions) (bson.D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out bson.D
	err := s.lm.read(func() error {
		docs, err := s.query(name, filter, opts)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return docent.ErrNotFound
		}
		out = docs[0]
		return nil
	})
	return out, err
}

// Find resolves the whole query under the read lock and returns a cursor
// over the materialized results.
func (s *Store) Find(ctx context.Context, name string, filter bson.D, opts docent.FindOptions) (docent.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []bson.D
	err := s.lm.read(func() error {
		var qErr error
		docs, qErr = s.query(name, filter, opts)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	return newSliceCursor(docs), nil
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, name string, filter bson.D) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.lm.read(func() error {
		c := s.collection(name)
		for _, doc := range c.docs {
			ok, mErr := matches(doc, filter)
			if mErr != nil {
				return mErr
			}
			if ok {
				n++
			}
		}
		return nil
	})
	return n, err
}

// UpdateOne applies the update to the first matching document.
func (s *Store) UpdateOne(ctx context.Context, name string, filter, update bson.D, upsert bool) (docent.UpdateResult, error) {
	return s.update(ctx, name, filter, update, upsert, 1)
}

// UpdateMany applies the update to every matching document.
func (s *Store) UpdateMany(ctx context.Context, name string, filter, update bson.D, upsert bool) (docent.UpdateResult, error) {
	return s.update(ctx, name, filter, update, upsert, 0)
}

func (s *Store) update(ctx context.Context, name string, filter, update bson.D, upsert bool, limit int) (docent.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return docent.UpdateResult{}, err
	}
	var res docent.UpdateResult
	err := s.lm.write(func() error {
		c := s.collection(name)
		prev := c.docs
		next := make([]bson.D, len(c.docs))
		copy(next, c.docs)

		for i, doc := range next {
			if limit > 0 && res.Matched >= int64(limit) {
				break
			}
			ok, err := matches(doc, filter)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			res.Matched++
			rewritten, changed, err := applyUpdate(doc, update)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := s.checkUnique(name, next, rewritten, i); err != nil {
				return err
			}
			next[i] = rewritten
			res.Modified++
		}

		if res.Matched == 0 && upsert {
			seed, err := seedFromFilter(filter)
			if err != nil {
				return err
			}
			doc, _, err := applyUpdate(seed, update)
			if err != nil {
				return err
			}
			doc, id := ensureID(doc)
			if err := s.checkUnique(name, next, doc, -1); err != nil {
				return err
			}
			next = append(next, doc)
			res.UpsertedID = id
		}

		if res.Modified == 0 && res.UpsertedID == "" {
			return nil
		}
		c.docs = next
		s.trimCapped(c)
		if err := s.save(); err != nil {
			c.docs = prev
			return fmt.Errorf("failed to save: %w", err)
		}
		return nil
	})
	if err != nil {
		return docent.UpdateResult{}, err
	}
	return res, nil
}

// ReplaceOne swaps the first matching document for the given one, keeping
// the stored identifier when the replacement carries none.
func (s *Store) ReplaceOne(ctx context.Context, name string, filter, doc bson.D, upsert bool) (docent.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return docent.UpdateResult{}, err
	}
	var res docent.UpdateResult
	err := s.lm.write(func() error {
		c := s.collection(name)
		prev := c.docs
		next := make([]bson.D, len(c.docs))
		copy(next, c.docs)

		for i, existing := range next {
			ok, err := matches(existing, filter)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			res.Matched = 1
			replacement := doc
			if _, found := lookupPath(replacement, []string{"_id"}); !found {
				if ids, idFound := lookupPath(existing, []string{"_id"}); idFound && len(ids) == 1 {
					replacement = append(bson.D{{Key: "_id", Value: ids[0]}}, replacement...)
				}
			}
			if valuesEqual(existing, replacement) {
				return nil
			}
			if err := s.checkUnique(name, next, replacement, i); err != nil {
				return err
			}
			next[i] = replacement
			res.Modified = 1
			break
		}

		if res.Matched == 0 && upsert {
			fresh, id := ensureID(doc)
			if err := s.checkUnique(name, next, fresh, -1); err != nil {
				return err
			}
			next = append(next, fresh)
			res.UpsertedID = id
		}

		if res.Modified == 0 && res.UpsertedID == "" {
			return nil
		}
		c.docs = next
		s.trimCapped(c)
		if err := s.save(); err != nil {
			c.docs = prev
			return fmt.Errorf("failed to save: %w", err)
		}
		return nil
	})
	if err != nil {
		return docent.UpdateResult{}, err
	}
	return res, nil
}

// DeleteOne removes the first matching document.
func (s *Store) DeleteOne(ctx context.Context, name string, filter bson.D) (int64, error) {
	return s.delete(ctx, name, filter, 1)
}

// DeleteMany removes every matching document.
func (s *Store) DeleteMany(ctx context.Context, name string, filter bson.D) (int64, error) {
	return s.delete(ctx, name, filter, 0)
}

func (s *Store) delete(ctx context.Context, name string, filter bson.D, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var removed int64
	err := s.lm.write(func() error {
		c := s.collection(name)
		prev := c.docs
		kept := make([]bson.D, 0, len(c.docs))
		for _, doc := range c.docs {
			if limit > 0 && removed >= int64(limit) {
				kept = append(kept, doc)
				continue
			}
			ok, err := matches(doc, filter)
			if err != nil {
				return err
			}
			if ok {
				removed++
				continue
			}
			kept = append(kept, doc)
		}
		if removed == 0 {
			return nil
		}
		c.docs = kept
		if err := s.save(); err != nil {
			c.docs = prev
			removed = 0
			return fmt.Errorf("failed to save: %w", err)
		}
		return nil
	})
	return removed, err
}

// EnsureCollection creates the collection entry, recording the byte budget
// on first declaration. Re-issuing for an existing collection is a no-op.
func (s *Store) EnsureCollection(ctx context.Context, name string, capped *docent.CappedSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.lm.write(func() error {
		c, ok := s.collections[name]
		changed := !ok
		if !ok {
			c = &collection{}
			s.collections[name] = c
		}
		if capped != nil && c.capped == 0 {
			c.capped = capped.MaxBytes
			s.trimCapped(c)
			changed = true
		}
		if !changed {
			return nil
		}
		return s.save()
	})
}

// EnsureIndexes records the declared indexes. The file store enforces unique
// descriptors on writes; orderings and TTL are accepted but not acted on.
func (s *Store) EnsureIndexes(ctx context.Context, name string, descriptors []index.Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.lm.write(func() error {
		s.indexes[name] = descriptors
		c := s.collection(name)
		for _, d := range descriptors {
			if !d.Unique {
				continue
			}
			for i, doc := range c.docs {
				if err := s.checkUniqueAgainst(d, c.docs, doc, i); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// query is the shared match-sort-paginate pipeline. Caller holds the read
// lock.
func (s *Store) query(name string, filter bson.D, opts docent.FindOptions) ([]bson.D, error) {
	c := s.collection(name)
	var out []bson.D
	for _, doc := range c.docs {
		ok, err := matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	if len(opts.Sort) > 0 {
		sortDocs(out, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(out)) {
			out = nil
		} else {
			out = out[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(out)) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func sortDocs(docs []bson.D, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir := int64(1)
			if n, ok := toInt64(k.Value); ok {
				dir = n
			}
			segs := strings.Split(k.Key, ".")
			a, aOK := lookupPath(docs[i], segs)
			b, bOK := lookupPath(docs[j], segs)
			if !aOK && !bOK {
				continue
			}
			// Missing sorts before present, matching the store's order.
			if !aOK {
				return dir > 0
			}
			if !bOK {
				return dir < 0
			}
			c, ok := compareValues(a[0], b[0])
			if !ok || c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// trimCapped evicts oldest documents until the collection fits its byte
// budget. Sizes are wire sizes of the individual documents.
func (s *Store) trimCapped(c *collection) {
	if c.capped <= 0 {
		return
	}
	total := int64(0)
	sizes := make([]int64, len(c.docs))
	for i, doc := range c.docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			continue
		}
		sizes[i] = int64(len(raw))
		total += sizes[i]
	}
	drop := 0
	for total > c.capped && drop < len(c.docs)-1 {
		total -= sizes[drop]
		drop++
	}
	if drop > 0 {
		s.log.Debug("capped collection trimmed", zap.Int("evicted", drop))
		c.docs = c.docs[drop:]
	}
}

// checkUnique enforces every unique index declared for the collection
// against a candidate document. self is the candidate's own slot in docs, or
// -1 for an insert.
func (s *Store) checkUnique(name string, docs []bson.D, candidate bson.D, self int) error {
	for _, d := range s.indexes[name] {
		if !d.Unique {
			continue
		}
		if err := s.checkUniqueAgainst(d, docs, candidate, self); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) checkUniqueAgainst(d index.Descriptor, docs []bson.D, candidate bson.D, self int) error {
	key, present := indexKey(d, candidate)
	if !present && d.Sparse {
		return nil
	}
	for j, other := range docs {
		if j == self {
			continue
		}
		otherKey, otherPresent := indexKey(d, other)
		if !otherPresent && d.Sparse {
			continue
		}
		same := true
		for i := range key {
			if !valuesEqual(key[i], otherKey[i]) {
				same = false
				break
			}
		}
		if same {
			return fmt.Errorf("duplicate key for unique index on %s", indexKeyNames(d))
		}
	}
	return nil
}

// indexKey extracts the indexed values from a document. The bool result
// reports whether any indexed field is present at all, which is what sparse
// indexes key off.
func indexKey(d index.Descriptor, doc bson.D) ([]any, bool) {
	key := make([]any, 0, len(d.Keys))
	present := false
	for _, k := range d.Keys {
		vals, found := lookupPath(doc, strings.Split(k.Key, "."))
		if found && len(vals) > 0 {
			key = append(key, vals[0])
			present = true
		} else {
			key = append(key, nil)
		}
	}
	return key, present
}

func indexKeyNames(d index.Descriptor) string {
	names := make([]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		names = append(names, k.Key)
	}
	return strings.Join(names, ", ")
}

// ensureID guarantees the document carries a string identifier, generating a
// random one when missing, and returns the identifier in use.
func ensureID(doc bson.D) (bson.D, string) {
	if ids, found := lookupPath(doc, []string{"_id"}); found && len(ids) == 1 {
		if id, ok := ids[0].(string); ok {
			return doc, id
		}
	}
	id := uuid.New().String()
	return append(bson.D{{Key: "_id", Value: id}}, doc...), id
}
