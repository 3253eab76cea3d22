package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trivialFlow() *Flow {
	f := NewFlow("trivial")
	f.AddNode("only", FuncNode{})
	return f
}

func TestRegistry_GetRespectsAllowList(t *testing.T) {
	r := NewRegistry(func(name string) bool { return name == "allowed" })
	r.Register(Definition{Name: "allowed", Factory: trivialFlow})
	r.Register(Definition{Name: "blocked", Factory: trivialFlow})

	_, ok := r.Get("allowed")
	assert.True(t, ok)

	_, ok = r.Get("blocked")
	assert.False(t, ok)
}

func TestRegistry_GetUnregisteredName(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_CreateExecutor_RejectsAsyncOnlyWorkflow(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Definition{Name: "async-wf", IsAsync: true, Factory: trivialFlow})

	_, _, err := r.CreateExecutor("async-wf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "async-only")
}

func TestRegistry_CreateExecutor_Succeeds(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Definition{Name: "sync-wf", Factory: trivialFlow})

	exec, flow, err := r.CreateExecutor("sync-wf")
	require.NoError(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, "trivial", flow.Name)
}

func TestRegistry_CreateAsyncExecutor_AllowsSyncFlaggedWorkflow(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Definition{Name: "sync-wf", Factory: trivialFlow})

	exec, _, err := r.CreateAsyncExecutor("sync-wf")
	require.NoError(t, err)
	require.NotNil(t, exec)
}

func TestRegistry_CreateExecutor_UnregisteredName(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.CreateExecutor("nope")
	require.Error(t, err)
}
