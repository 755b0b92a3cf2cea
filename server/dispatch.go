package server

import (
	"encoding/json"
	"fmt"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(params json.RawMessage) (interface{}, error)

type methodNotFoundError struct {
	method string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.method)
}

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP server and the websocket endpoint
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"status": handleStatus,
		"tiles":  handleTiles,
		"apps":   handleAppsList,
		"launch": handleLaunch,
	}
}

// Execute dispatches a method call using the registry
func Execute(method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, &methodNotFoundError{method: method}
	}

	return handler(params)
}
