/*
Package depgraph builds and queries the directed dependency graph between
field instances of a form.

Nodes are field instances (top-level fields, block fields, and per-row
sub-fields); an edge A -> B means B reads a variable produced by A. Edges
are discovered by asking the Expression Port for the free variables of
every condition, prefill, and data-source expression, then resolving each
name through the scope rules (row-local name wins over an aggregate or
top-level name of the same spelling).

A block field node aggregates its rows: every row sub-field that exposes a
varname feeds the block node, and consumers of the block's variables
depend on the block node. Cycles are detected at build time with a
depth-first coloring pass; the nodes on a cycle are reported once and
marked permanently unresolved instead of failing the build.
*/
package depgraph
