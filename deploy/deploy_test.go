package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/bundle"
	"github.com/yarikc/composer/deploy/store"
)

// memStore is a minimal in-memory store.Storage, standing in for
// boltstore in tests that care about Deployer's diffing logic, not
// persistence.
type memStore struct {
	docs map[string]*bundle.Document
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*bundle.Document{}}
}

func (m *memStore) Get(name string) (*bundle.Document, error) {
	doc, ok := m.docs[name]
	if !ok {
		return nil, &store.NotFound{Name: name}
	}
	return doc, nil
}

func (m *memStore) Put(doc *bundle.Document) error {
	m.docs[doc.Name] = doc
	return nil
}

func (m *memStore) Delete(name string) error {
	delete(m.docs, name)
	return nil
}

func (m *memStore) List() ([]string, error) {
	var names []string
	for name := range m.docs {
		names = append(names, name)
	}
	return names, nil
}

func (m *memStore) Close() error { return nil }

func attachment(name string) *ast.Attachment {
	return &ast.Attachment{
		Name:   name,
		Action: &ast.ActionRecord{Exec: &ast.Exec{Kind: "goja", Code: "return params;"}},
	}
}

// fakeHost records every PUT and DELETE it receives, in order, so a
// test can assert on both which names were touched and the sequence
// Deploy issued them in.
type fakeHost struct {
	calls []string
}

func (h *fakeHost) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/namespaces/_/actions/", func(w http.ResponseWriter, r *http.Request) {
		h.calls = append(h.calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestDeployPutsEveryActionAndRecordsTheDocument(t *testing.T) {
	host := &fakeHost{}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client, err := NewClient(srv.URL, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	st := newMemStore()
	d := New(client, st)

	doc := &bundle.Document{Name: "/_/flow", Actions: []*ast.Attachment{attachment("/_/flow/a"), attachment("/_/flow/b")}}
	if err := d.Deploy(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	if len(host.calls) != 2 {
		t.Fatalf("expected 2 PUTs, got %v", host.calls)
	}
	stored, err := st.Get(doc.Name)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Actions) != 2 {
		t.Errorf("expected the deployed document to be recorded, got %+v", stored)
	}
}

func TestDeployDeletesActionsRemovedSinceThePreviousDeployment(t *testing.T) {
	host := &fakeHost{}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client, err := NewClient(srv.URL, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	st := newMemStore()
	d := New(client, st)

	first := &bundle.Document{Name: "/_/flow", Actions: []*ast.Attachment{attachment("/_/flow/a"), attachment("/_/flow/b")}}
	if err := d.Deploy(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	host.calls = nil

	second := &bundle.Document{Name: "/_/flow", Actions: []*ast.Attachment{attachment("/_/flow/a")}}
	if err := d.Deploy(context.Background(), second); err != nil {
		t.Fatal(err)
	}

	if len(host.calls) != 2 {
		t.Fatalf("expected a delete for /_/flow/b and a put for /_/flow/a, got %v", host.calls)
	}
	if host.calls[0] != "DELETE /api/v1/namespaces/_/actions/_/flow/b" {
		t.Errorf("expected the removed action to be deleted before the rest is pushed, got %v", host.calls)
	}
}

func TestUndeployRemovesEveryActionAndDropsTheRecord(t *testing.T) {
	host := &fakeHost{}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client, err := NewClient(srv.URL, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	st := newMemStore()
	d := New(client, st)

	doc := &bundle.Document{Name: "/_/flow", Actions: []*ast.Attachment{attachment("/_/flow/a")}}
	if err := d.Deploy(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	if err := d.Undeploy(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Get(doc.Name); err == nil {
		t.Fatal("expected the document record to be dropped")
	}
}
