// Package deploy pushes a bundle.Document's actions to a remote
// action platform and keeps a local record of what was deployed in a
// store.Storage, so a later redeploy can diff against it.
package deploy

import (
	"context"

	"github.com/yarikc/composer/bundle"
	"github.com/yarikc/composer/deploy/store"
)

// Deployer deploys bundle.Documents through a Client and records them
// in a Storage.
type Deployer struct {
	Client *Client
	Store  store.Storage
}

// New builds a Deployer.
func New(client *Client, st store.Storage) *Deployer {
	return &Deployer{Client: client, Store: st}
}

// Deploy pushes every action in doc. If a previous deployment of the
// same document named a now-removed action, that action is deleted
// first: an action platform's update is not atomic across a whole
// document, so shrinking a composition could otherwise leave a stale
// action reachable by name after the rest of the document has moved
// on.
func (d *Deployer) Deploy(ctx context.Context, doc *bundle.Document) error {
	previous, err := d.Store.Get(doc.Name)
	if err != nil {
		if _, notFound := err.(*store.NotFound); !notFound {
			return err
		}
		previous = nil
	}

	if previous != nil {
		removed := namesRemoved(previous, doc)
		for _, name := range removed {
			if err := d.Client.DeleteAction(ctx, name); err != nil {
				return err
			}
		}
	}

	for _, at := range doc.Actions {
		if err := d.Client.PutAction(ctx, at); err != nil {
			return err
		}
	}

	return d.Store.Put(doc)
}

// Undeploy removes every action doc named, most-specific first isn't
// required here since action names don't nest, then drops doc from
// Storage.
func (d *Deployer) Undeploy(ctx context.Context, doc *bundle.Document) error {
	for _, at := range doc.Actions {
		if err := d.Client.DeleteAction(ctx, at.Name); err != nil {
			return err
		}
	}
	return d.Store.Delete(doc.Name)
}

func namesRemoved(previous, next *bundle.Document) []string {
	keep := make(map[string]bool, len(next.Actions))
	for _, at := range next.Actions {
		keep[at.Name] = true
	}
	var removed []string
	for _, at := range previous.Actions {
		if !keep[at.Name] {
			removed = append(removed, at.Name)
		}
	}
	return removed
}
