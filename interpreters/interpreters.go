// Package interpreters assembles the conductor.Registry a host hands
// to conductor.Step, the way sheens' own interpreters package
// assembles a core.InterpretersMap.
package interpreters

import (
	"github.com/yarikc/composer/conductor"
	"github.com/yarikc/composer/interpreters/goja"
)

// Standard returns the Registry this repository ships: inline
// function nodes whose Exec.Kind is "goja" run through
// dop251/goja.
func Standard() conductor.Registry {
	return conductor.Registry{
		"goja": goja.NewInterpreter(),
	}
}
