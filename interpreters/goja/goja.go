// Package goja adapts dop251/goja into a conductor.Interpreter,
// grounded on sheens' own interpreters/goja package: the same
// interrupt-on-context-cancellation goroutine, the same small utility
// surface (gensym, esc, cronNext, log), and the same convention of
// treating a Goja Value export into a plain Go map as the result.
//
// Where sheens hands a script "bindings" it reads and later returns
// wholesale, this package hands a script two separate objects:
// params (the composition's current value) and env (the names
// declared by every enclosing let, an inner let's value shadowing an
// outer one's). A script reads both and returns its result
// by value; any assignment to a name already declared in env is a
// write-back into that let scope, visible to every function that
// runs later inside it.
package goja

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"

	"github.com/yarikc/composer/ast"
	"github.com/yarikc/composer/conductor"
	"github.com/yarikc/composer/internal/value"
)

// InterruptedMessage is the string value Interrupted carries.
var InterruptedMessage = "RuntimeError: timeout"

// Interrupted is returned when a script's execution is interrupted by
// its context being canceled before it finished.
var Interrupted = errors.New(InterruptedMessage)

// Interpreter runs ast.Exec fragments whose Kind is "goja": inline
// ECMAScript function bodies with params and env in scope.
type Interpreter struct{}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Exec implements conductor.Interpreter.
func (i *Interpreter) Exec(ctx context.Context, exec *ast.Exec, params map[string]interface{}, env map[string]interface{}) (result map[string]interface{}, writes map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if gv, is := r.(*goja.Object); is {
				err = &conductor.ThrownValue{Value: gv.Export()}
				return
			}
			err = &conductor.ThrownValue{Value: fmt.Sprintf("panic: %v", r)}
		}
	}()

	wrapped := "(function(params, env) {\n" + exec.Code + "\n})"
	program, compileErr := goja.Compile("", wrapped, true)
	if compileErr != nil {
		return nil, nil, fmt.Errorf("goja: compile: %w", compileErr)
	}

	rt := goja.New()
	rt.Set("_", map[string]interface{}{
		"gensym":   func() interface{} { return value.Gensym(32) },
		"esc":      escFunc,
		"cronNext": cronNextFunc,
		"log":      logFunc,
	})

	paramsCopy, copyErr := value.DeepCopy(params)
	if copyErr != nil {
		return nil, nil, copyErr
	}
	if env == nil {
		env = map[string]interface{}{}
	}

	ictx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ictx.Done()
		rt.Interrupt(InterruptedMessage)
	}()

	fnVal, runErr := rt.RunProgram(program)
	if runErr != nil {
		if _, is := runErr.(*goja.InterruptedError); is {
			return nil, nil, Interrupted
		}
		return nil, nil, runErr
	}

	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, nil, fmt.Errorf("goja: compiled value is not callable")
	}

	out, callErr := fn(goja.Undefined(), rt.ToValue(paramsCopy), rt.ToValue(env))
	if callErr != nil {
		if _, is := callErr.(*goja.InterruptedError); is {
			return nil, nil, Interrupted
		}
		if exc, is := callErr.(*goja.Exception); is {
			return nil, nil, &conductor.ThrownValue{Value: exc.Value().Export()}
		}
		return nil, nil, callErr
	}

	exported := out.Export()
	switch v := exported.(type) {
	case nil:
		result = params
	case map[string]interface{}:
		cp, cErr := value.DeepCopy(v)
		if cErr != nil {
			return nil, nil, cErr
		}
		m, _ := value.AsObject(cp)
		result = m
	default:
		result = map[string]interface{}{"value": exported}
	}

	return result, env, nil
}

func escFunc(x interface{}) interface{} {
	s, ok := x.(string)
	if !ok {
		panic("esc: not a string")
	}
	return url.QueryEscape(s)
}

func cronNextFunc(x interface{}) interface{} {
	s, ok := x.(string)
	if !ok {
		panic("cronNext: not a string")
	}
	c, err := cronexpr.Parse(s)
	if err != nil {
		panic("cronNext: " + err.Error())
	}
	return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
}

func logFunc(x interface{}) interface{} {
	fmt.Println(x)
	return x
}
