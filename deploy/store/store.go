// Package store defines the persistence interface a deployment target
// keeps its documents behind, and ships one implementation
// (boltstore) over go.etcd.io/bbolt.
package store

import "github.com/yarikc/composer/bundle"

// Storage persists bundle.Documents by name.
type Storage interface {
	Get(name string) (*bundle.Document, error)
	Put(doc *bundle.Document) error
	Delete(name string) error
	List() ([]string, error)
	Close() error
}

// NotFound occurs when Get names a document that isn't stored.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string {
	return `document not found: "` + e.Name + `"`
}
