package graph

// SimpleNode is a minimal Node implementation for testing or for callers
// that don't have their own node type.
type SimpleNode struct {
	id           string
	dependencies []string
}

func (n *SimpleNode) ID() string {
	return n.id
}

func (n *SimpleNode) Dependencies() []string {
	return n.dependencies
}

func NewSimpleNode(id string, dependencies []string) *SimpleNode {
	return &SimpleNode{id: id, dependencies: dependencies}
}
