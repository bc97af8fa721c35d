// Package session persists console state between CLI invocations.
package session

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/yourorg/calibr8/internal/console"
)

var ErrNotFound = errors.New("session not found")

const keyPrefix = "session/"

// Info summarizes a stored session.
type Info struct {
	ID        string        `json:"id"`
	Phase     console.Phase `json:"phase"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Store interface {
	Load(id string) (console.State, error)
	Save(id string, st console.State) error
	Delete(id string) error
	List() ([]Info, error)
	Close() error
}

type record struct {
	State     console.State `json:"state"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewID returns a fresh session id.
func NewID() string { return uuid.NewString() }

// BadgerStore keeps sessions in a badger database.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the session database in dir.
func Open(dir string) (*BadgerStore, error) {
	return open(badger.DefaultOptions(dir).WithLogger(nil))
}

// OpenInMemory returns a store that lives as long as the process.
func OpenInMemory() (*BadgerStore, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) Load(id string) (console.State, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) })
	})
	return rec.State, err
}

func (s *BadgerStore) Save(id string, st console.State) error {
	b, err := json.Marshal(record{State: st, UpdatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error { return txn.Set(key(id), b) })
}

func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
}

// List returns the stored sessions, most recently updated first.
func (s *BadgerStore) List() ([]Info, error) {
	var out []Info
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec record
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &rec) }); err != nil {
				return err
			}
			out = append(out, Info{
				ID:        strings.TrimPrefix(string(item.Key()), keyPrefix),
				Phase:     rec.State.Phase(),
				UpdatedAt: rec.UpdatedAt,
			})
		}
		return nil
	})
	sortInfos(out)
	return out, err
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func key(id string) []byte { return []byte(keyPrefix + id) }

func sortInfos(in []Info) {
	sort.SliceStable(in, func(i, j int) bool { return in[i].UpdatedAt.After(in[j].UpdatedAt) })
}

// MemoryStore is a Store for tests and one-shot commands.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{recs: map[string]record{}} }

func (m *MemoryStore) Load(id string) (console.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return console.State{}, ErrNotFound
	}
	return rec.State, nil
}

func (m *MemoryStore) Save(id string, st console.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[id] = record{State: st, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *MemoryStore) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.recs))
	for id, rec := range m.recs {
		out = append(out, Info{ID: id, Phase: rec.State.Phase(), UpdatedAt: rec.UpdatedAt})
	}
	sortInfos(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// Bind loads session id into a new console store (empty when the session
// does not exist yet) and saves the state after every dispatch.
func Bind(s Store, id string) (*console.Store, func() error, error) {
	st, err := s.Load(id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	store := console.NewStore(st)
	var saveErr error
	var mu sync.Mutex
	unsubscribe := store.Subscribe(func(st console.State) {
		if err := s.Save(id, st); err != nil {
			mu.Lock()
			saveErr = err
			mu.Unlock()
		}
	})
	done := func() error {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		return saveErr
	}
	return store, done, nil
}
