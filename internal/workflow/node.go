// Package workflow is the async node/flow runtime (component I): nodes with
// prep/exec/post phases wired into a DAG, executed by a sync or async
// executor, grounded on the teacher's pkg/swarm/dag.go DAG and
// pkg/swarm/node.go event-dispatch patterns, generalized from a
// cluster-membership DAG into a prep/exec/post workflow node graph.
package workflow

import "context"

// ActionLabel is the edge a node's Post phase selects; Default is the
// label every node falls back to when it doesn't branch.
type ActionLabel string

const Default ActionLabel = "default"

// Shared is the mutable state bag threaded through every node in a flow;
// nodes read inputs from it in Prep and write outputs back in Post.
type Shared map[string]any

// Node is the three-phase unit of work spec §4.5 describes: Prep reads
// shared state, Exec does the (possibly long-running) work, Post writes
// results back and picks the next edge.
type Node interface {
	Prep(ctx context.Context, shared Shared) (any, error)
	Exec(ctx context.Context, prepRes any) (any, error)
	Post(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error)
}

// BaseNode provides the Default-label Post behavior most nodes want. It
// supplies only Post: a type that embeds it still implements Prep and Exec
// itself.
type BaseNode struct{}

func (BaseNode) Post(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error) {
	return Default, nil
}

// FuncNode adapts three plain functions into a Node, for small workflows
// that don't warrant a dedicated type.
type FuncNode struct {
	PrepFunc func(ctx context.Context, shared Shared) (any, error)
	ExecFunc func(ctx context.Context, prepRes any) (any, error)
	PostFunc func(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error)
}

func (n FuncNode) Prep(ctx context.Context, shared Shared) (any, error) {
	if n.PrepFunc == nil {
		return nil, nil
	}
	return n.PrepFunc(ctx, shared)
}

func (n FuncNode) Exec(ctx context.Context, prepRes any) (any, error) {
	if n.ExecFunc == nil {
		return nil, nil
	}
	return n.ExecFunc(ctx, prepRes)
}

func (n FuncNode) Post(ctx context.Context, shared Shared, prepRes, execRes any) (ActionLabel, error) {
	if n.PostFunc == nil {
		return Default, nil
	}
	return n.PostFunc(ctx, shared, prepRes, execRes)
}
