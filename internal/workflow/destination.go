package workflow

// DestinationKind discriminates the routing targets a gate or step can
// name. Routing strings from manifests are parsed into a Destination
// exactly once at load time, never re-parsed during execution.
type DestinationKind int

const (
	// DestNextInGraph follows the dependency graph's natural successor.
	DestNextInGraph DestinationKind = iota

	// DestExplicitStep routes to a named step.
	DestExplicitStep

	// DestTerminal ends the workflow.
	DestTerminal
)

// String returns a human-readable name for the destination kind.
func (k DestinationKind) String() string {
	switch k {
	case DestNextInGraph:
		return "next"
	case DestExplicitStep:
		return "step"
	case DestTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Destination is a resolved routing target. The zero value routes to the
// next step in the graph.
type Destination struct {
	Kind   DestinationKind `json:"kind"`
	StepID string          `json:"step_id,omitempty"`
}

// Reserved routing strings understood by ParseDestination.
const (
	routeNext     = "next"
	routeTerminal = "end"
)

// ParseDestination resolves a manifest routing string. An empty string
// and "next" follow the graph, "end" terminates the workflow, and any
// other value names an explicit step.
func ParseDestination(s string) Destination {
	switch s {
	case "", routeNext:
		return Destination{Kind: DestNextInGraph}
	case routeTerminal:
		return Destination{Kind: DestTerminal}
	default:
		return Destination{Kind: DestExplicitStep, StepID: s}
	}
}

// NextStep creates a destination that follows the dependency graph.
func NextStep() Destination {
	return Destination{Kind: DestNextInGraph}
}

// ExplicitStep creates a destination routing to the named step.
func ExplicitStep(id string) Destination {
	return Destination{Kind: DestExplicitStep, StepID: id}
}

// Terminal creates a destination that ends the workflow.
func Terminal() Destination {
	return Destination{Kind: DestTerminal}
}
