package commands

import (
	"github.com/StardustXR/protostar/apps"
	"github.com/StardustXR/protostar/engine"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

// appLoader is the shared application catalog. It is set once at startup via
// SetLoader and used by both the CLI and the control plane.
var appLoader *apps.Loader

// SetLoader sets the global application loader.
func SetLoader(loader *apps.Loader) {
	appLoader = loader
}

// GetLoader returns the current application loader, or nil before SetLoader.
func GetLoader() *apps.Loader {
	return appLoader
}

// eng is the running interaction engine. It is only set in server mode; the
// one-shot CLI commands work without it.
var eng *engine.Engine

// SetEngine sets the global engine for server-mode commands.
func SetEngine(e *engine.Engine) {
	eng = e
}

// GetEngine returns the running engine, or nil in one-shot CLI mode.
func GetEngine() *engine.Engine {
	return eng
}
