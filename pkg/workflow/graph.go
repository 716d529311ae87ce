package workflow

import "fmt"

// End is the terminal marker a guard function returns to stop a traversal
const End = "__end__"

// Pause signals that a step needs an input that is not yet in the bag
type Pause struct {
	// Prompt is the human-readable request for the missing input
	Prompt string
}

// StepFunc executes one named step against the current state. It returns a
// Pause when a required bag key is missing; otherwise it returns nil after
// applying any side effects to the state.
type StepFunc func(s *ExecutionState) *Pause

// GuardFunc selects the next step name after a step has run, or End to stop
// the traversal.
type GuardFunc func(s *ExecutionState) string

// Step is one named node in a Graph
type Step struct {
	Name string
	Run  StepFunc
	Next GuardFunc
}

// Graph is a named set of steps with guard-driven transitions. A traversal
// always begins at the entry step and re-derives progress from the bag, so
// no continuation state is ever stored: steps whose inputs are already
// present pass through, and the run stops at the first unsatisfied step, a
// terminal step, or an unmatched guard.
type Graph struct {
	name  string
	entry string
	steps map[string]Step
}

// NewGraph creates an empty graph with the given workflow name and entry step
func NewGraph(name, entry string) *Graph {
	return &Graph{
		name:  name,
		entry: entry,
		steps: make(map[string]Step),
	}
}

// Name returns the workflow name of the graph
func (g *Graph) Name() string {
	return g.name
}

// Entry returns the name of the entry step
func (g *Graph) Entry() string {
	return g.entry
}

// AddStep registers a step under its name, replacing any existing step
func (g *Graph) AddStep(step Step) {
	g.steps[step.Name] = step
}

// Invoke runs one full traversal pass from the entry step, mutating the
// state in place. It returns the Pause that stopped the run, if any. A guard
// naming an unregistered step indicates a malformed graph and is reported as
// an error.
func (g *Graph) Invoke(s *ExecutionState) (*Pause, error) {
	current := g.entry
	for {
		step, ok := g.steps[current]
		if !ok {
			return nil, fmt.Errorf("workflow graph %q has no step named %q", g.name, current)
		}

		if pause := step.Run(s); pause != nil {
			return pause, nil
		}

		next := step.Next(s)
		if next == End {
			return nil, nil
		}
		current = next
	}
}
