package graph

import "fmt"

// Node is one vertex in a dependency graph.
type Node interface {
	// ID of the node, unique within the graph
	ID() string

	// IDs of the nodes that must be resolved before this node
	Dependencies() []string
}

// Graph computes execution orderings over a set of dependent nodes.
type Graph struct {
	nodes  map[string]Node
	sorted []string
}

// New creates a new Graph from a list of nodes.
func New(nodes []Node) *Graph {
	nodeMap := make(map[string]Node, len(nodes))
	for _, node := range nodes {
		nodeMap[node.ID()] = node
	}
	return &Graph{nodes: nodeMap}
}

// Get returns the node with the given id, if present.
func (g *Graph) Get(id string) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Size returns the number of nodes in the graph.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// TopologicalSort returns an ordering of node ids in which every node
// appears after all of its dependencies. The result is cached.
func (g *Graph) TopologicalSort() ([]string, error) {

	if len(g.nodes) == 0 {
		return []string{}, nil
	}
	if g.sorted != nil {
		return g.sorted, nil
	}

	// Kahn's algorithm. Build in-degree counts, repeatedly take nodes with
	// no unresolved dependencies.
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node.ID()] = len(node.Dependencies())
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	if len(queue) == 0 {
		return nil, fmt.Errorf("invalid node dependencies: no starting point")
	}

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for id, node := range g.nodes {
			for _, dep := range node.Dependencies() {
				if dep == current {
					inDegree[id]--
					if inDegree[id] == 0 {
						queue = append(queue, id)
					}
				}
			}
		}
	}

	// Any nodes left unprocessed are part of a cycle
	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("invalid node dependencies: cycle detected")
	}
	g.sorted = result
	return result, nil
}
