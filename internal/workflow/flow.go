package workflow

import (
	"context"
	"fmt"

	"github.com/nifi-agent/engine/internal/eventbus"
)

// entry pairs a node with its outgoing edges, keyed by action label.
type entry struct {
	name       string
	node       Node
	successors map[ActionLabel]string
}

// Flow is a named directed graph of nodes. A given flow is either wholly
// sync or wholly async (spec §4.5): an async flow's nodes are run by
// AsyncExecutor, which may itself off-load a sync flow's blocking calls to
// a worker pool without changing the flow's own wiring.
type Flow struct {
	Name  string
	start string
	nodes map[string]*entry
}

func NewFlow(name string) *Flow {
	return &Flow{Name: name, nodes: make(map[string]*entry)}
}

// AddNode registers node under name. The first node added becomes the
// flow's start node unless SetStart is called explicitly.
func (f *Flow) AddNode(name string, node Node) *Flow {
	f.nodes[name] = &entry{name: name, node: node, successors: make(map[ActionLabel]string)}
	if f.start == "" {
		f.start = name
	}
	return f
}

func (f *Flow) SetStart(name string) *Flow {
	f.start = name
	return f
}

// AddEdge wires from's label edge to to. A node that returns a label with
// no matching edge is terminal.
func (f *Flow) AddEdge(from string, label ActionLabel, to string) *Flow {
	if e, ok := f.nodes[from]; ok {
		e.successors[label] = to
	}
	return f
}

// Run drives the flow from its start node, following successor edges
// until a node returns a label with no outgoing edge. It returns the name
// of the terminal node and the label it returned.
func Run(ctx context.Context, f *Flow, shared Shared, bus *eventbus.Bus, workflowID string) (string, ActionLabel, error) {
	if f.start == "" {
		return "", "", fmt.Errorf("workflow %q has no nodes", f.Name)
	}

	current := f.start
	for {
		e, ok := f.nodes[current]
		if !ok {
			return current, "", fmt.Errorf("workflow %q: node %q not found", f.Name, current)
		}

		emitStep(bus, workflowID, current, eventbus.EventStepStart, nil)

		prepRes, err := e.node.Prep(ctx, shared)
		if err != nil {
			emitStep(bus, workflowID, current, eventbus.EventStepError, map[string]any{"error": err.Error()})
			return current, "", err
		}

		execRes, err := e.node.Exec(ctx, prepRes)
		if err != nil {
			emitStep(bus, workflowID, current, eventbus.EventStepError, map[string]any{"error": err.Error()})
			return current, "", err
		}

		label, err := e.node.Post(ctx, shared, prepRes, execRes)
		if err != nil {
			emitStep(bus, workflowID, current, eventbus.EventStepError, map[string]any{"error": err.Error()})
			return current, "", err
		}
		emitStep(bus, workflowID, current, eventbus.EventStepComplete, map[string]any{"action": string(label)})

		next, ok := e.successors[label]
		if !ok {
			return current, label, nil
		}
		current = next
	}
}

func emitStep(bus *eventbus.Bus, workflowID, stepID string, t eventbus.EventType, data map[string]any) {
	if bus == nil {
		return
	}
	bus.Emit(eventbus.Event{Type: t, WorkflowID: workflowID, StepID: stepID, Data: data})
}
