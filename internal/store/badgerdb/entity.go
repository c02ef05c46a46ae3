package badgerdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/listenupapp/catalog-server/internal/store"
)

// maxTxnAttempts bounds how often a read-write transaction is re-run after
// losing a conflict to a concurrent writer.
const maxTxnAttempts = 64

// Conflict backoff: full jitter, doubling from retryBaseDelay up to retryMaxDelay.
const (
	retryBaseDelay = time.Millisecond
	retryMaxDelay  = 50 * time.Millisecond
)

// counterMergeInterval is how often a counter's merge entries are folded
// into a single value.
const counterMergeInterval = time.Minute

// multiSep separates the indexed value from the entity ID in non-unique
// index keys, so values may contain the ':' used elsewhere in keys.
const multiSep = "\x00"

// Entity provides generic document storage for one domain type.
//
// Key layout, for prefix "author:":
//
//	author:<id>                      JSON document
//	author:idx:<name>:<value>        unique index, value is the ID
//	author:idx:<name>:<value>\0<id>  non-unique index, empty value
//
// The document counter lives outside the prefix and is a merge-operator key:
// every insert adds a uint64 delta after its transaction commits, so inserts
// never read the counter and never conflict on it.
type Entity[T any] struct {
	db      *badger.DB
	prefix  string
	idOf    func(*T) string
	unique  []uniqueIndex[T]
	multi   []multiIndex[T]
	counter *badger.MergeOperator
	logger  *slog.Logger
}

type uniqueIndex[T any] struct {
	name   string
	keyGen func(*T) string
}

type multiIndex[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewEntity creates a new Entity for type T stored under prefix.
func NewEntity[T any](db *badger.DB, prefix string, idOf func(*T) string) *Entity[T] {
	return &Entity[T]{
		db:     db,
		prefix: prefix,
		idOf:   idOf,
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used for failures that do not fail the write.
func (e *Entity[T]) WithLogger(logger *slog.Logger) *Entity[T] {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithUniqueIndex adds a secondary index that admits one entity per value.
// Entities whose keyGen returns "" are left out of the index.
func (e *Entity[T]) WithUniqueIndex(name string, keyGen func(*T) string) *Entity[T] {
	e.unique = append(e.unique, uniqueIndex[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndex adds a non-unique secondary index. keyGen may return several values.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.multi = append(e.multi, multiIndex[T]{name: name, keyGen: keyGen})
	return e
}

// WithCounter keeps a document count under key. The count is bumped after
// each insert commits; a crash in between leaves it one short, which
// Store.Inspect reports.
func (e *Entity[T]) WithCounter(key string) *Entity[T] {
	interval := counterMergeInterval
	if e.db.Opts().ReadOnly {
		// Folding writes; a read-only handle only ever reads the counter.
		interval = 24 * time.Hour
	}
	e.counter = e.db.GetMergeOperator([]byte(key), addUint64, interval)
	return e
}

// close stops the counter's background merge. Read-only handles skip the
// final merge, which would need a write.
func (e *Entity[T]) close() {
	if e.counter != nil && !e.db.Opts().ReadOnly {
		e.counter.Stop()
	}
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value)
}

func (e *Entity[T]) multiPrefix(name, value string) []byte {
	return []byte(e.prefix + "idx:" + name + ":" + value + multiSep)
}

// update runs fn in a read-write transaction, re-running it with jittered
// backoff when the commit loses a conflict. fn must be safe to run more than
// once. A conflict that outlasts every attempt is returned as store.ErrConflict.
func (e *Entity[T]) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	delay := retryBaseDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if attempt == maxTxnAttempts {
			return fmt.Errorf("%w after %d attempts: %w", store.ErrConflict, attempt, err)
		}

		timer := time.NewTimer(rand.N(delay) + 1)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, retryMaxDelay)
	}
}

// bump adds one to the document counter. The document is already
// committed, so a failure here is logged rather than returned.
func (e *Entity[T]) bump(ctx context.Context) {
	if e.counter == nil {
		return
	}
	if err := e.counter.Add(binary.BigEndian.AppendUint64(nil, 1)); err != nil {
		e.logger.ErrorContext(ctx, "failed to update document counter",
			"prefix", e.prefix,
			"error", err,
		)
	}
}

// insert writes a new entity and its index entries inside txn.
func (e *Entity[T]) insert(txn *badger.Txn, entity *T) error {
	id := e.idOf(entity)
	key := e.key(id)

	_, err := txn.Get(key)
	if err == nil {
		return store.ErrAlreadyExists
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to check existing key: %w", err)
	}

	for _, idx := range e.unique {
		value := idx.keyGen(entity)
		if value == "" {
			continue
		}
		_, err := txn.Get(e.indexKey(idx.name, value))
		if err == nil {
			return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, store.ErrAlreadyExists)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check index key: %w", err)
		}
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return e.setIndexes(txn, id, entity)
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.unique {
		if value := idx.keyGen(entity); value != "" {
			if err := txn.Set(e.indexKey(idx.name, value), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	for _, idx := range e.multi {
		for _, value := range idx.keyGen(entity) {
			k := append(e.multiPrefix(idx.name, value), id...)
			if err := txn.Set(k, nil); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, id string, entity *T) error {
	for _, idx := range e.unique {
		if value := idx.keyGen(entity); value != "" {
			if err := txn.Delete(e.indexKey(idx.name, value)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
	}
	for _, idx := range e.multi {
		for _, value := range idx.keyGen(entity) {
			k := append(e.multiPrefix(idx.name, value), id...)
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
	}
	return nil
}

// Create stores a new entity.
// Returns store.ErrAlreadyExists if the ID or a unique index value is taken.
func (e *Entity[T]) Create(ctx context.Context, entity *T) error {
	err := e.update(ctx, func(txn *badger.Txn) error {
		return e.insert(txn, entity)
	})
	if err != nil {
		return err
	}
	e.bump(ctx)
	return nil
}

// GetOrCreate returns the entity whose unique index indexName holds value,
// or stores the entity produced by build when there is none. The lookup and
// the insert commit together, so concurrent callers for the same value all
// observe a single entity.
func (e *Entity[T]) GetOrCreate(ctx context.Context, indexName, value string, build func() (*T, error)) (*T, bool, error) {
	var (
		result  *T
		created bool
	)

	err := e.update(ctx, func(txn *badger.Txn) error {
		result, created = nil, false

		existing, err := e.getByIndexTxn(txn, indexName, value)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		entity, err := build()
		if err != nil {
			return err
		}
		if err := e.insert(txn, entity); err != nil {
			return err
		}
		result, created = entity, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		e.bump(ctx)
	}
	return result, created, nil
}

// Get retrieves an entity by ID.
// Returns store.ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity *T
	err := e.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (e *Entity[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var entity T
	err = item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, &entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetMany retrieves the entities with the given IDs from one snapshot.
// Missing IDs are skipped.
func (e *Entity[T]) GetMany(ctx context.Context, ids []string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]*T, 0, len(ids))
	err := e.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			entity, err := e.getTxn(txn, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByIndex retrieves an entity through a unique index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity *T
	err := e.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = e.getByIndexTxn(txn, indexName, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (e *Entity[T]) getByIndexTxn(txn *badger.Txn, indexName, value string) (*T, error) {
	item, err := txn.Get(e.indexKey(indexName, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index key: %w", err)
	}

	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return e.getTxn(txn, string(id))
}

// ListByIndex returns every entity a non-unique index maps value to.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName, value string) ([]*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := e.multiPrefix(indexName, value)
	var result []*T

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(prefix):]))
		}

		for _, id := range ids {
			entity, err := e.getTxn(txn, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			result = append(result, entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update replaces an existing entity and rewrites its index entries.
// Returns store.ErrNotFound if the entity does not exist.
func (e *Entity[T]) Update(ctx context.Context, entity *T) error {
	id := e.idOf(entity)

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	return e.update(ctx, func(txn *badger.Txn) error {
		old, err := e.getTxn(txn, id)
		if err != nil {
			return err
		}

		if err := e.deleteIndexes(txn, id, old); err != nil {
			return err
		}

		for _, idx := range e.unique {
			value := idx.keyGen(entity)
			if value == "" || value == idx.keyGen(old) {
				continue
			}
			_, err := txn.Get(e.indexKey(idx.name, value))
			if err == nil {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, value, store.ErrAlreadyExists)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}

		if err := txn.Set(e.key(id), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.setIndexes(txn, id, entity)
	})
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		//nolint:errcheck // errors are delivered through yield
		e.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(e.prefix)); it.ValidForPrefix([]byte(e.prefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(e.prefix):], "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// Count returns the maintained document count. Entities without a
// counter report zero.
func (e *Entity[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.counter == nil {
		return 0, nil
	}

	val, err := e.counter.Get()
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("counter for %s is corrupt", e.prefix)
	}
	return int(binary.BigEndian.Uint64(val)), nil //nolint:gosec // counts never approach MaxInt
}

// addUint64 merges two big-endian uint64 counter values.
func addUint64(existing, delta []byte) []byte {
	return binary.BigEndian.AppendUint64(nil, decodeUint64(existing)+decodeUint64(delta))
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
