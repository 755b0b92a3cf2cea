package commands

import (
	"context"
	"fmt"
	"time"
)

// snapshotTimeout bounds how long a control request waits for the tick loop.
const snapshotTimeout = 2 * time.Second

// StatusCommand reports the engine's current state.
func StatusCommand() *CommandResponse {
	e := GetEngine()
	if e == nil {
		return NewErrorResponse(fmt.Errorf("engine is not running"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	st, err := e.Status(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("engine did not respond: %w", err))
	}
	return NewSuccessResponse(st)
}

// TilesCommand returns every tile on the grid.
func TilesCommand() *CommandResponse {
	e := GetEngine()
	if e == nil {
		return NewErrorResponse(fmt.Errorf("engine is not running"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	tiles, err := e.Tiles(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("engine did not respond: %w", err))
	}
	return NewSuccessResponse(tiles)
}
