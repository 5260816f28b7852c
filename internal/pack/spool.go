package pack

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/yourorg/table-export/internal/types"
)

// Spool holds rendered artifacts until packaging. Each yields them in
// ascending Index order regardless of insertion order.
type Spool interface {
	Put(a types.Artifact) error
	Len() int
	Each(fn func(types.Artifact) error) error
	Close() error
}

// MemorySpool keeps artifacts in memory.
type MemorySpool struct {
	mu    sync.Mutex
	items map[int][]byte
	max   int
}

func NewMemorySpool() *MemorySpool {
	return &MemorySpool{items: map[int][]byte{}}
}

func (s *MemorySpool) Put(a types.Artifact) error {
	if a.Index < 1 {
		return fmt.Errorf("artifact index %d: must be 1-based", a.Index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[int][]byte{}
	}
	s.items[a.Index] = a.Data
	s.max = max(s.max, a.Index)
	return nil
}

func (s *MemorySpool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemorySpool) Each(fn func(types.Artifact) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= s.max; i++ {
		data, ok := s.items[i]
		if !ok {
			continue
		}
		if err := fn(types.Artifact{Index: i, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemorySpool) Close() error {
	s.mu.Lock()
	s.items = nil
	s.max = 0
	s.mu.Unlock()
	return nil
}

// BadgerSpool keeps artifacts on disk so a worker renders large exports with
// bounded memory. Keys are big-endian indexes so iteration follows chunk order.
type BadgerSpool struct {
	db     *badger.DB
	dir    string
	remove bool
	count  int
}

// OpenBadgerSpool opens a spool at dir; an empty dir keeps it in memory.
// The directory is removed on Close when the spool created it.
func OpenBadgerSpool(dir string) (*BadgerSpool, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	remove := false
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if _, err := os.Stat(dir); os.IsNotExist(err) {
		remove = true
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	return &BadgerSpool{db: db, dir: dir, remove: remove}, nil
}

func key(i int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}

func (s *BadgerSpool) Put(a types.Artifact) error {
	if a.Index < 1 {
		return fmt.Errorf("artifact index %d: must be 1-based", a.Index)
	}
	k := key(a.Index)
	isNew := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, e := txn.Get(k)
		if e == badger.ErrKeyNotFound {
			isNew = true
		} else if e != nil {
			return e
		}
		return txn.Set(k, a.Data)
	})
	if err != nil {
		return fmt.Errorf("spool put %d: %w", a.Index, err)
	}
	if isNew {
		s.count++
	}
	return nil
}

func (s *BadgerSpool) Len() int { return s.count }

func (s *BadgerSpool) Each(fn func(types.Artifact) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			idx := int(binary.BigEndian.Uint64(item.Key()))
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(types.Artifact{Index: idx, Data: data}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerSpool) Close() error {
	err := s.db.Close()
	if s.remove {
		_ = os.RemoveAll(s.dir)
	}
	return err
}
