// Package evalctx holds the variable scopes visible to user-authored
// expressions during one evaluation pass.
//
// A Context carries a top-level scope (field varnames, aggregates, and any
// host-supplied extras) plus, while evaluating inside a block row, a
// row-local scope that shadows names of the same spelling. Row scopes also
// expose the `counter` (1-based) and `counter0` (0-based) pseudo-variables.
package evalctx

import (
	"github.com/zclconf/go-cty/cty"
)

// Context is one evaluation scope stack. It is a value passed explicitly
// through every call; nothing here is global.
type Context struct {
	top map[string]cty.Value
	row map[string]cty.Value
}

// New creates an empty top-level context.
func New() *Context {
	return &Context{top: make(map[string]cty.Value)}
}

// Set binds a name in the top-level scope.
func (c *Context) Set(name string, v cty.Value) {
	c.top[name] = v
}

// EnterRow derives a row-scoped context. The row's own values shadow
// top-level names; counter/counter0 reflect the row position.
func (c *Context) EnterRow(rowVars map[string]cty.Value, rowIndex int) *Context {
	row := make(map[string]cty.Value, len(rowVars)+2)
	for name, v := range rowVars {
		row[name] = v
	}
	row["counter"] = cty.NumberIntVal(int64(rowIndex + 1))
	row["counter0"] = cty.NumberIntVal(int64(rowIndex))
	return &Context{top: c.top, row: row}
}

// Lookup resolves a name, row scope first.
func (c *Context) Lookup(name string) (cty.Value, bool) {
	if c.row != nil {
		if v, ok := c.row[name]; ok {
			return v, true
		}
	}
	v, ok := c.top[name]
	return v, ok
}

// Variables flattens the scope stack into a single map, with row-local
// names shadowing top-level ones.
func (c *Context) Variables() map[string]cty.Value {
	out := make(map[string]cty.Value, len(c.top)+len(c.row))
	for name, v := range c.top {
		out[name] = v
	}
	for name, v := range c.row {
		out[name] = v
	}
	return out
}
