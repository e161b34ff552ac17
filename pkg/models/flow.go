// Package models defines the domain models shared by the CRM services.
package models

import "time"

// Flow is a scripted chat automation scoped to a department.
type Flow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"                  validate:"required,min=3"`
	Description string     `json:"description,omitempty"`
	Department  Department `json:"department"            validate:"required"`
	Nodes       []*Node    `json:"nodes"`
	Edges       []*Edge    `json:"edges"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NodeByID returns the node with the given ID, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// StartNode returns the first node of type start, or nil.
func (f *Flow) StartNode() *Node {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeStart {
			return node
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// FlowTemplate is a starter flow offered when creating a new flow.
type FlowTemplate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Department  Department `json:"department,omitempty"`
	Nodes       []*Node    `json:"nodes"`
	Edges       []*Edge    `json:"edges"`
}
