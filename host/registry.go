package host

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/bundle"
	"github.com/yarikc/composer/compile"
	"github.com/yarikc/composer/conductor"
	"github.com/yarikc/composer/deploy/store"
)

// Registry is the set of actions a host can invoke by name, indexed
// out of every bundle.Document in a store.Storage.
type Registry struct {
	store        store.Storage
	interpreters conductor.Registry
	firehose     *Firehose

	mu    sync.RWMutex
	index map[string]*ast.ActionRecord
}

// NewRegistry builds a Registry and loads every document currently in
// st.
func NewRegistry(st store.Storage, interpreters conductor.Registry, fh *Firehose) (*Registry, error) {
	r := &Registry{store: st, interpreters: interpreters, firehose: fh, index: map[string]*ast.ActionRecord{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the in-memory index from Storage, picking up any
// deployment made since the last load.
func (r *Registry) Reload() error {
	names, err := r.store.List()
	if err != nil {
		return err
	}
	index := make(map[string]*ast.ActionRecord, len(names))
	for _, name := range names {
		doc, err := r.store.Get(name)
		if err != nil {
			return err
		}
		for _, at := range doc.Actions {
			index[at.Name] = at.Action
		}
	}
	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
	return nil
}

// Invoke runs the named action to completion, recursively invoking
// whatever actions it names along the way.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}) (map[string]interface{}, error) {
	return r.InvokeResumable(ctx, name, params, nil)
}

// InvokeResumable is Invoke, but lets the caller continue a
// conductor-backed action from a previously externalized resume
// token instead of starting it fresh. Leaf actions ignore resume.
func (r *Registry) InvokeResumable(ctx context.Context, name string, params map[string]interface{}, resume *conductor.Resume) (map[string]interface{}, error) {
	r.mu.RLock()
	record, ok := r.index[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotRegistered{Name: name}
	}

	if r.firehose != nil {
		r.firehose.Publish(Event{Kind: "invoke", Action: name, Params: params})
	}

	var result map[string]interface{}
	var err error
	if record.Exec != nil && record.Exec.Kind == bundle.ConductorExecKind {
		result, err = r.runConductor(ctx, name, record.Exec.Code, params, resume)
	} else {
		result, err = r.runLeaf(ctx, record.Exec, params)
	}

	if r.firehose != nil {
		r.firehose.Publish(Event{Kind: "result", Action: name, Params: result, Err: errString(err)})
	}
	return result, err
}

func (r *Registry) runConductor(ctx context.Context, name, code string, params map[string]interface{}, resume *conductor.Resume) (map[string]interface{}, error) {
	var prog compile.Program
	if err := json.Unmarshal([]byte(code), &prog); err != nil {
		return nil, err
	}

	cur := params
	for {
		step, err := conductor.Step(ctx, prog, r.interpreters, resume, cur)
		if err != nil {
			return nil, err
		}
		if step.Done {
			return step.Params, nil
		}
		result, err := r.Invoke(ctx, step.Invoke.Name, step.Invoke.Params)
		if err != nil {
			result = map[string]interface{}{"error": err.Error()}
		}
		resume = step.Resume
		cur = result
	}
}

func (r *Registry) runLeaf(ctx context.Context, exec *ast.Exec, params map[string]interface{}) (map[string]interface{}, error) {
	if exec == nil {
		return nil, &NotRegistered{Name: "<nil exec>"}
	}
	interp, ok := r.interpreters[exec.Kind]
	if !ok {
		return nil, &conductor.NoInterpreter{Kind: exec.Kind}
	}
	result, _, err := interp.Exec(ctx, exec, params, nil)
	return result, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NotRegistered occurs when Invoke is asked to run a name no deployed
// document defines.
type NotRegistered struct {
	Name string
}

func (e *NotRegistered) Error() string {
	return `host: action not registered: "` + e.Name + `"`
}
