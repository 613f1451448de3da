package content

import (
	"encoding/json"
	"fmt"
)

const (
	NodeTypeInjector    = "injector"
	NodeTypeConditional = "conditional"
)

// Node is a closed union: *InjectorNode, *ConditionalNode or *ContentNode.
// Use MatchNode to branch on it.
type Node interface {
	NodeType() string
	sealedNode()
}

// InjectorNode marks where a variable value is substituted at render time.
type InjectorNode struct {
	Type  string        `json:"type"`
	Attrs InjectorAttrs `json:"attrs"`
}

type InjectorAttrs struct {
	VariableID string `json:"variableId"`
	Label      string `json:"label,omitempty"`
}

// ConditionalNode renders its children only when its conditions hold.
type ConditionalNode struct {
	Type    string           `json:"type"`
	Attrs   ConditionalAttrs `json:"attrs"`
	Content Nodes            `json:"content,omitempty"`
}

type ConditionalAttrs struct {
	Conditions *LogicGroup `json:"conditions"`
	// Expression is the display form generated by the editor. It is advisory only.
	Expression string `json:"expression,omitempty"`
}

// ContentNode is any other node. Its attributes are opaque to validation.
type ContentNode struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Text    string         `json:"text,omitempty"`
	Content Nodes          `json:"content,omitempty"`
}

func (n *InjectorNode) NodeType() string    { return NodeTypeInjector }
func (n *ConditionalNode) NodeType() string { return NodeTypeConditional }
func (n *ContentNode) NodeType() string     { return n.Type }

func (*InjectorNode) sealedNode()    {}
func (*ConditionalNode) sealedNode() {}
func (*ContentNode) sealedNode()     {}

// MatchNode dispatches on the concrete node kind. Adding a node kind changes this
// signature, so every caller has to handle it.
func MatchNode(
	node Node,
	injector func(*InjectorNode),
	conditional func(*ConditionalNode),
	other func(*ContentNode),
) {
	switch n := node.(type) {
	case *InjectorNode:
		injector(n)
	case *ConditionalNode:
		conditional(n)
	case *ContentNode:
		other(n)
	default:
		panic(fmt.Sprintf("content: unhandled node %T", node))
	}
}

// Children returns the direct children of a node.
func Children(node Node) Nodes {
	var children Nodes
	MatchNode(node,
		func(*InjectorNode) {},
		func(n *ConditionalNode) { children = n.Content },
		func(n *ContentNode) { children = n.Content },
	)

	return children
}

// Walk visits the tree rooted at root in document order, root first.
func Walk(root Node, visit func(Node)) {
	if root == nil {
		return
	}
	visit(root)
	for _, child := range Children(root) {
		Walk(child, visit)
	}
}

// Nodes decodes each element into its concrete node kind.
type Nodes []Node

func (n *Nodes) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	nodes := make(Nodes, 0, len(raws))
	for i, raw := range raws {
		node, err := decodeNode(raw)
		if err != nil {
			return fmt.Errorf("content[%d]: %w", i, err)
		}
		nodes = append(nodes, node)
	}
	*n = nodes

	return nil
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case NodeTypeInjector:
		node := &InjectorNode{}
		if err := json.Unmarshal(raw, node); err != nil {
			return nil, err
		}
		return node, nil
	case NodeTypeConditional:
		node := &ConditionalNode{}
		if err := json.Unmarshal(raw, node); err != nil {
			return nil, err
		}
		return node, nil
	default:
		node := &ContentNode{}
		if err := json.Unmarshal(raw, node); err != nil {
			return nil, err
		}
		return node, nil
	}
}
