// Package project classifies a project checkout into one of a fixed set of
// project types by inspecting its manifest and root contents.
package project

// Type is the detected kind of project. It drives build dispatch.
type Type string

const (
	NextJS  Type = "nextjs"
	Vite    Type = "vite"
	CRA     Type = "cra"
	Node    Type = "node"
	Static  Type = "static"
	Unknown Type = "unknown"
)

// Types lists every project type in classification order.
func Types() []Type {
	return []Type{NextJS, Vite, CRA, Node, Static, Unknown}
}

// Buildable reports whether projects of this type go through the Node build procedure.
func (t Type) Buildable() bool {
	switch t {
	case NextJS, Vite, CRA, Node:
		return true
	default:
		return false
	}
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }
