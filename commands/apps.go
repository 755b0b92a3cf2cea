package commands

import (
	"fmt"
	"time"

	"github.com/StardustXR/protostar/apps"
	"github.com/StardustXR/protostar/engine/launch"
	"github.com/google/uuid"
)

// ListAppsRequest represents parameters for listing applications
type ListAppsRequest struct {
	Filter string `json:"filter,omitempty"`
}

// ListAppsCommand returns the application catalog, optionally narrowed by a
// fuzzy filter over name, id and keywords.
func ListAppsCommand(req ListAppsRequest) *CommandResponse {
	loader := GetLoader()
	if loader == nil {
		return NewErrorResponse(fmt.Errorf("application catalog is not loaded"))
	}

	var list []apps.App
	if req.Filter != "" {
		list = loader.Filter(req.Filter)
	} else {
		list = loader.Apps()
	}
	return NewSuccessResponse(list)
}

// LaunchRequest represents parameters for launching an application
type LaunchRequest struct {
	AppID string `json:"appId"`
}

// LaunchResponse reports a started launch attempt.
type LaunchResponse struct {
	RequestID string `json:"requestId"`
	AppID     string `json:"appId"`
	Name      string `json:"name"`
}

// launchWait bounds how long a one-shot launch waits for the spawn outcome.
const launchWait = 5 * time.Second

// launchRunner is the process spawner for one-shot launches; nil selects the
// real one. Tests swap it out.
var launchRunner launch.Runner

// LaunchCommand starts an application by id. With a running engine the
// launch goes through its dispatcher and returns immediately; in one-shot
// CLI mode the command spawns directly and waits for the outcome.
func LaunchCommand(req LaunchRequest) *CommandResponse {
	loader := GetLoader()
	if loader == nil {
		return NewErrorResponse(fmt.Errorf("application catalog is not loaded"))
	}
	if req.AppID == "" {
		return NewErrorResponse(fmt.Errorf("'appId' is required"))
	}

	app, ok := loader.ByID(req.AppID)
	if !ok {
		return NewErrorResponse(fmt.Errorf("app not found: %s", req.AppID))
	}

	if e := GetEngine(); e != nil {
		id := e.LaunchApp(app)
		return NewSuccessResponse(LaunchResponse{
			RequestID: id.String(),
			AppID:     app.ID,
			Name:      app.Name,
		})
	}

	dispatcher := launch.NewDispatcher(launchRunner)
	dispatcher.Dispatch(launch.Request{
		ID:    uuid.New(),
		AppID: app.ID,
		Name:  app.Name,
		Exec:  app.Command(),
	})

	select {
	case res := <-dispatcher.Results():
		if res.Err != nil {
			return NewErrorResponse(res.Err)
		}
		return NewSuccessResponse(LaunchResponse{
			RequestID: res.Request.ID.String(),
			AppID:     app.ID,
			Name:      app.Name,
		})
	case <-time.After(launchWait):
		return NewErrorResponse(fmt.Errorf("timed out waiting for %s to start", app.ID))
	}
}
