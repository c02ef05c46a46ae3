package badgerdb

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// EntityStats compares an entity's maintained counter with a key scan.
type EntityStats struct {
	Prefix    string
	Counter   int
	Documents int
	IndexKeys int
}

// Consistent reports whether the counter matches the scanned documents.
func (s EntityStats) Consistent() bool {
	return s.Counter == s.Documents
}

func (e *Entity[T]) stats(ctx context.Context) (EntityStats, error) {
	st := EntityStats{Prefix: e.prefix}

	var err error
	if st.Counter, err = e.Count(ctx); err != nil {
		return st, err
	}

	idxPrefix := e.prefix + "idx:"
	err = e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(e.prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if strings.HasPrefix(string(it.Item().Key()), idxPrefix) {
				st.IndexKeys++
			} else {
				st.Documents++
			}
		}
		return nil
	})
	return st, err
}

// Inspect scans users, authors and books and reports each one's counter
// next to the number of documents actually stored.
func (s *Store) Inspect(ctx context.Context) ([]EntityStats, error) {
	scans := []func(context.Context) (EntityStats, error){
		s.users.stats,
		s.authors.stats,
		s.books.stats,
	}

	out := make([]EntityStats, 0, len(scans))
	for _, scan := range scans {
		st, err := scan(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
