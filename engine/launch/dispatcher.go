// Package launch starts applications in response to tile clicks. Processes
// are spawned detached in their own session so they outlive the launcher.
package launch

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/StardustXR/protostar/utils"
	"github.com/google/uuid"
)

// Request identifies one launch attempt. Exec is the final command line;
// desktop-entry field codes must already be stripped by the caller.
type Request struct {
	ID     uuid.UUID `json:"id"`
	TileID string    `json:"tile_id"`
	AppID  string    `json:"app_id"`
	Name   string    `json:"name"`
	Exec   string    `json:"exec"`
	Time   time.Time `json:"time"`
}

// Result reports whether the process could be started. A nil Err only means
// the process began; the launcher never tracks it afterwards.
type Result struct {
	Request Request
	Err     error
}

// Runner starts a command as a detached process. It is an interface so tests
// can observe launches without forking.
type Runner interface {
	Run(command string) error
}

type execRunner struct{}

// Run spawns the command through the shell in a new session, with stdio
// disconnected. The child is deliberately not tied to our lifetime; a
// background goroutine reaps it when it exits.
func (execRunner) Run(command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Dispatcher runs launch requests off the engine tick loop and feeds results
// back through a channel the engine drains each tick.
type Dispatcher struct {
	runner  Runner
	results chan Result
}

// NewDispatcher builds a dispatcher around runner; a nil runner gets the real
// process spawner.
func NewDispatcher(runner Runner) *Dispatcher {
	if runner == nil {
		runner = execRunner{}
	}
	return &Dispatcher{
		runner:  runner,
		results: make(chan Result, 32),
	}
}

// Dispatch starts the launch asynchronously and returns immediately. The
// outcome arrives on Results.
func (d *Dispatcher) Dispatch(req Request) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Time.IsZero() {
		req.Time = time.Now()
	}
	entry := utils.WithFields(map[string]interface{}{
		"id":  req.ID,
		"app": req.AppID,
	})
	entry.Infof("Launching %s", req.Name)

	go func() {
		var err error
		if req.Exec == "" {
			err = fmt.Errorf("app %s has no exec command", req.AppID)
		} else {
			err = d.runner.Run(req.Exec)
		}
		if err != nil {
			entry.Warnf("Launch failed: %v", err)
		}
		select {
		case d.results <- Result{Request: req, Err: err}:
		default:
			utils.Warn("Launch result channel full, dropping result for %s", req.AppID)
		}
	}()
}

// Results delivers launch outcomes. The engine drains it once per tick.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}
