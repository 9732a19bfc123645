package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/formflow/internal/instance"
	"github.com/vk/formflow/internal/schema"
)

// Node is one field instance in the graph.
type Node struct {
	ID    instance.ID
	Field *schema.Field
	// Block is the referenced block for block-field nodes and the owning
	// block for row sub-field nodes; nil otherwise.
	Block *schema.Block

	Deps       map[string]*Node
	Dependents map[string]*Node

	// Unresolved marks a node on a dependency cycle. Its expressions
	// short-circuit to safe defaults forever.
	Unresolved bool

	// order is the declaration position, used for deterministic iteration.
	order int
}

// Graph is the immutable result of one build.
type Graph struct {
	nodes map[string]*Node
	order []*Node

	// Cycles lists each detected cycle once, as node-id paths.
	Cycles [][]string
}

func newGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

func (g *Graph) addNode(id instance.ID, f *schema.Field, blk *schema.Block) *Node {
	key := id.String()
	if n, ok := g.nodes[key]; ok {
		return n
	}
	n := &Node{
		ID:         id,
		Field:      f,
		Block:      blk,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
		order:      len(g.order),
	}
	g.nodes[key] = n
	g.order = append(g.order, n)
	return n
}

func (g *Graph) addEdge(from, to *Node) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s", from.ID)
	}
	to.Deps[from.ID.String()] = from
	from.Dependents[to.ID.String()] = to
	return nil
}

// Node looks up a node by instance id.
func (g *Graph) Node(id instance.ID) *Node {
	return g.nodes[id.String()]
}

// Nodes returns every node in declaration order.
func (g *Graph) Nodes() []*Node {
	return g.order
}

// detectCycles runs the classic depth-first coloring pass and marks every
// node on a cycle as unresolved. Unlike a build failure, a cycle is a
// schema diagnostic: the graph stays usable.
func (g *Graph) detectCycles() {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current recursion stack
		black = 2 // fully visited
	)
	colors := make(map[string]int)
	var stack []*Node

	var visit func(n *Node)
	visit = func(n *Node) {
		key := n.ID.String()
		colors[key] = gray
		stack = append(stack, n)

		for _, depKey := range sortedKeys(n.Dependents) {
			dependent := n.Dependents[depKey]
			switch colors[dependent.ID.String()] {
			case white:
				visit(dependent)
			case gray:
				// Everything from the dependent's position on the stack
				// down to here is on the cycle.
				var cycle []string
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append([]string{stack[i].ID.String()}, cycle...)
					stack[i].Unresolved = true
					if stack[i] == dependent {
						break
					}
				}
				g.Cycles = append(g.Cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		colors[key] = black
	}

	for _, n := range g.order {
		if colors[n.ID.String()] == white {
			visit(n)
		}
	}
}

// Closure returns the transitive downstream closure of the dirty set,
// including the dirty nodes themselves, in dependency order: a node's
// inputs always precede it. The order is deterministic for a fixed graph
// and dirty set.
func (g *Graph) Closure(dirty []instance.ID) []*Node {
	reached := make(map[string]*Node)
	var frontier []*Node
	for _, id := range dirty {
		if n := g.Node(id); n != nil {
			if _, ok := reached[n.ID.String()]; !ok {
				reached[n.ID.String()] = n
				frontier = append(frontier, n)
			}
		}
	}
	for len(frontier) > 0 {
		n := frontier[0]
		frontier = frontier[1:]
		for _, key := range sortedKeys(n.Dependents) {
			dep := n.Dependents[key]
			if _, ok := reached[dep.ID.String()]; !ok {
				reached[dep.ID.String()] = dep
				frontier = append(frontier, dep)
			}
		}
	}

	// Kahn's algorithm restricted to the reached set, preferring
	// declaration order among ready nodes.
	pendingDeps := make(map[string]int, len(reached))
	for key, n := range reached {
		count := 0
		for depKey := range n.Deps {
			if _, ok := reached[depKey]; ok {
				count++
			}
		}
		pendingDeps[key] = count
	}

	var members []*Node
	for _, n := range g.order {
		if _, ok := reached[n.ID.String()]; ok {
			members = append(members, n)
		}
	}

	var ordered []*Node
	done := make(map[string]bool, len(members))
	for len(ordered) < len(members) {
		progressed := false
		for _, n := range members {
			key := n.ID.String()
			if done[key] || pendingDeps[key] > 0 {
				continue
			}
			ordered = append(ordered, n)
			done[key] = true
			progressed = true
			for depKey := range n.Dependents {
				if _, ok := reached[depKey]; ok {
					pendingDeps[depKey]--
				}
			}
		}
		if !progressed {
			// Remaining nodes are on a cycle; emit them in declaration
			// order so the caller can still report their state.
			for _, n := range members {
				if !done[n.ID.String()] {
					ordered = append(ordered, n)
					done[n.ID.String()] = true
				}
			}
		}
	}
	return ordered
}

// Diagnostics renders the detected cycles for the authoring subsystem.
func (g *Graph) Diagnostics() []string {
	var out []string
	for _, cycle := range g.Cycles {
		out = append(out, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
	}
	return out
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
