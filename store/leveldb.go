package store

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var leveldbBackend = &Backend{
	Name:    "leveldb",
	Open:    openLevelDB,
	Version: "goleveldb",
}

type leveldbStore struct {
	db *leveldb.DB
}

func openLevelDB(path string, create bool) (Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ErrorIfMissing: !create,
	})
	if err != nil {
		return nil, err
	}
	return &leveldbStore{db: db}, nil
}

func (s *leveldbStore) Fetch(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *leveldbStore) Store(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *leveldbStore) Delete(key []byte) error {
	// Delete of a missing key succeeds.
	return s.db.Delete(key, nil)
}

func (s *leveldbStore) Close() error {
	return s.db.Close()
}
