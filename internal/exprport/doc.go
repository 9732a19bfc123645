/*
Package exprport defines the Expression Port: the pluggable boundary
through which the engine evaluates user-authored expressions and lists
their free variables. The engine never assumes a particular grammar; it
only relies on the Port contract, which keeps the whole evaluation
pipeline testable with a stub implementation.

Two flavors of source text exist:

  - templates, used by prefills, comment bodies, and data-source query
    fragments ("Hello ${name}");
  - expressions, used by conditions and page post-conditions
    (`amount > 0`).

The default implementation (HCL) parses both with hclsyntax and
evaluates them against cty-typed variables.
*/
package exprport
