package launch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (f *fakeRunner) Run(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.err
}

func (f *fakeRunner) ran() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func waitResult(t *testing.T, d *Dispatcher) Result {
	t.Helper()
	select {
	case res := <-d.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timedout waiting for launch result")
		return Result{}
	}
}

func TestDispatchRunsCommand(t *testing.T) {
	runner := &fakeRunner{}
	d := NewDispatcher(runner)

	d.Dispatch(Request{TileID: "t1", AppID: "editor", Name: "Editor", Exec: "editor --new"})

	res := waitResult(t, d)
	require.NoError(t, res.Err)
	assert.Equal(t, "t1", res.Request.TileID)
	assert.NotEqual(t, uuid.Nil, res.Request.ID, "request gets an id assigned")
	assert.False(t, res.Request.Time.IsZero())
	assert.Equal(t, []string{"editor --new"}, runner.ran())
}

func TestDispatchReportsFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no such file")}
	d := NewDispatcher(runner)

	d.Dispatch(Request{AppID: "ghost", Exec: "ghost"})

	res := waitResult(t, d)
	require.Error(t, res.Err)
	assert.Equal(t, "ghost", res.Request.AppID)
}

func TestDispatchRejectsEmptyExec(t *testing.T) {
	runner := &fakeRunner{}
	d := NewDispatcher(runner)

	d.Dispatch(Request{AppID: "broken"})

	res := waitResult(t, d)
	require.Error(t, res.Err)
	assert.Empty(t, runner.ran(), "runner must not be invoked without a command")
}

func TestDispatchPreservesExplicitID(t *testing.T) {
	runner := &fakeRunner{}
	d := NewDispatcher(runner)
	id := uuid.New()

	d.Dispatch(Request{ID: id, AppID: "editor", Exec: "editor"})

	res := waitResult(t, d)
	assert.Equal(t, id, res.Request.ID)
}
