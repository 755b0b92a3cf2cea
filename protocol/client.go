package protocol

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/StardustXR/protostar/engine/input"
	"github.com/StardustXR/protostar/engine/scene"
	"github.com/StardustXR/protostar/types"
	"github.com/StardustXR/protostar/utils"
	"github.com/gorilla/websocket"
)

// Engine is the part of the interaction engine the client drives.
type Engine interface {
	Submit(ev input.Event)
	SetDegraded(on bool)
	MarkAllDirty()
}

// Client maintains the websocket to the compositor. While connected it feeds
// aggregated input into the engine; when the link drops it synthesizes loss
// events for every live source, puts the engine in degraded mode and keeps
// reconnecting.
type Client struct {
	url     string
	backoff time.Duration
	agg     *input.Aggregator

	writeMu sync.Mutex
	conn    *websocket.Conn
	known   map[string]struct{}
}

func NewClient(url string, backoff time.Duration, agg *input.Aggregator) *Client {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Client{
		url:     url,
		backoff: backoff,
		agg:     agg,
		known:   make(map[string]struct{}),
	}
}

// Run connects and reconnects until ctx is cancelled.
func (c *Client) Run(ctx context.Context, eng Engine) error {
	for {
		err := c.session(ctx, eng)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		utils.Warn("Compositor link down: %v", err)

		eng.SetDegraded(true)
		for _, source := range c.agg.Sources() {
			eng.Submit(c.agg.SourceGone(source))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

// session runs one connection from dial to read failure.
func (c *Client) session(ctx context.Context, eng Engine) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	utils.Info("Connected to compositor at %s", c.url)

	c.writeMu.Lock()
	c.conn = conn
	c.known = make(map[string]struct{})
	c.writeMu.Unlock()

	defer func() {
		c.writeMu.Lock()
		c.conn = nil
		c.writeMu.Unlock()
		conn.Close()
	}()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	eng.SetDegraded(false)
	eng.MarkAllDirty()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(message, eng)
	}
}

func (c *Client) handleFrame(message []byte, eng Engine) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		utils.Warn("Dropping malformed frame: %v", err)
		return
	}

	switch frame.Type {
	case FrameInput:
		raw := input.RawEvent{
			Source:     frame.Source,
			Capability: types.Capability(frame.Capability),
			Pose:       poseFromWire(frame.Pose),
			Activation: frame.Activation,
			Timestamp:  time.UnixMicro(frame.Timestamp),
		}
		if ev, ok := c.agg.Ingest(raw); ok {
			eng.Submit(ev)
		}
	case FrameSourceGone:
		eng.Submit(c.agg.SourceGone(frame.Source))
	default:
		utils.Verbose("Ignoring frame type %q", frame.Type)
	}
}

// TileUpdated mirrors a scene change to the compositor. It implements the
// engine's sink; a tile seen for the first time on this connection goes out
// as tile_create, later changes as tile_update. Writes while disconnected
// are dropped; the post-reconnect resync covers them.
func (c *Client) TileUpdated(tile scene.Tile) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return
	}

	frameType := FrameTileUpdate
	if _, seen := c.known[tile.ID]; !seen {
		frameType = FrameTileCreate
		c.known[tile.ID] = struct{}{}
	}

	frame := Frame{Type: frameType, Tile: tileToWire(tile)}
	if err := c.conn.WriteJSON(frame); err != nil {
		utils.Verbose("Failed to write %s for %s: %v", frameType, tile.ID, err)
	}
}
