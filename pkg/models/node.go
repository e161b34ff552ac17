package models

// NodeType is the kind of a flow node.
type NodeType string

const (
	NodeTypeStart      NodeType = "start"
	NodeTypeMessage    NodeType = "message"
	NodeTypeCondition  NodeType = "condition"
	NodeTypeAction     NodeType = "action"
	NodeTypeDelay      NodeType = "delay"
	NodeTypeEscalation NodeType = "escalation"
	NodeTypeEnd        NodeType = "end"
)

// NodeTypes lists every node type in canvas palette order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeMessage,
	NodeTypeCondition,
	NodeTypeAction,
	NodeTypeDelay,
	NodeTypeEscalation,
	NodeTypeEnd,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Position is the canvas coordinate of a node. Layout only.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the label and the type-dependent configuration.
type NodeData struct {
	Label  string         `json:"label"`
	Config map[string]any `json:"config,omitempty"`
}

// Node is a vertex of a flow graph.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge connects two nodes. SourceHandle names the condition branch the edge
// leaves from, e.g. "branch-yes".
type Edge struct {
	ID           string `json:"id"                      validate:"required"`
	Source       string `json:"source"                  validate:"required"`
	Target       string `json:"target"                  validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Branch is a named outcome of a condition node. An empty keyword list marks
// the default branch of a keyword condition.
type Branch struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Value    string   `json:"value"`
	Keywords []string `json:"keywords"`
}

// BranchHandle returns the edge source handle for a branch ID.
func BranchHandle(branchID string) string {
	return "branch-" + branchID
}
