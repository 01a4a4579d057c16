// Package boltstore stores bundle.Documents in a bbolt database,
// grounded on sheens' own crew machine stores, which keep machine
// state in a single bbolt file under one bucket per collection.
package boltstore

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/yarikc/composer/bundle"
	"github.com/yarikc/composer/deploy/store"
)

var bucketName = []byte("documents")

// Store is a store.Storage backed by a single bbolt file.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get implements store.Storage.
func (s *Store) Get(name string) (*bundle.Document, error) {
	var doc bundle.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		bs := tx.Bucket(bucketName).Get([]byte(name))
		if bs == nil {
			return &store.NotFound{Name: name}
		}
		return json.Unmarshal(bs, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Put implements store.Storage.
func (s *Store) Put(doc *bundle.Document) error {
	bs, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(doc.Name), bs)
	})
}

// Delete implements store.Storage.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(name))
	})
}

// List implements store.Storage.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Close implements store.Storage.
func (s *Store) Close() error {
	return s.db.Close()
}
