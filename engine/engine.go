// Package engine runs the interaction loop: it drains input events, steps the
// per-source gesture recognizers against the scene, dispatches launches and
// mirrors scene changes out to the compositor sink. The scene is only ever
// touched from the tick goroutine; everything else talks to the engine
// through channels.
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/StardustXR/protostar/apps"
	"github.com/StardustXR/protostar/config"
	"github.com/StardustXR/protostar/engine/gesture"
	"github.com/StardustXR/protostar/engine/input"
	"github.com/StardustXR/protostar/engine/launch"
	"github.com/StardustXR/protostar/engine/scene"
	"github.com/StardustXR/protostar/utils"
	"github.com/google/uuid"
)

const noticeDuration = 5 * time.Second

// Sink receives scene changes for mirroring to the compositor. Calls arrive
// from the tick goroutine; implementations must not block it.
type Sink interface {
	TileUpdated(tile scene.Tile)
}

// Status is a point-in-time snapshot for the control plane.
type Status struct {
	Ticks    uint64        `json:"ticks"`
	Tiles    int           `json:"tiles"`
	Sources  []string      `json:"sources"`
	Degraded bool          `json:"degraded"`
	Uptime   time.Duration `json:"uptime_ns"`
}

// Engine owns the scene and the gesture recognizers.
type Engine struct {
	cfg        *config.Config
	sc         *scene.Manager
	dispatcher *launch.Dispatcher
	sink       Sink

	recognizers map[string]*gesture.Recognizer
	policy      gesture.Policy

	inbox    chan input.Event
	lostMu   sync.Mutex
	lost     []input.Event
	calls    chan func()
	degraded atomic.Bool

	ticks   uint64
	started time.Time
}

// New builds an engine around cfg. sink may be nil when nothing mirrors the
// scene; dispatcher may be nil to get the real process spawner.
func New(cfg *config.Config, sink Sink, dispatcher *launch.Dispatcher) *Engine {
	if dispatcher == nil {
		dispatcher = launch.NewDispatcher(nil)
	}
	return &Engine{
		cfg: cfg,
		sc: scene.New(scene.Config{
			TileSize:     cfg.Grid.TileSize,
			Padding:      cfg.Grid.Padding,
			SearchRadius: cfg.Grid.SnapSearchRadius,
		}),
		dispatcher:  dispatcher,
		sink:        sink,
		recognizers: make(map[string]*gesture.Recognizer),
		policy: gesture.Policy{
			GrabThreshold:        cfg.Engine.GrabThreshold,
			ReleaseThreshold:     cfg.Engine.ReleaseThreshold,
			HoverDistance:        cfg.Engine.HoverDistance,
			ClickMaxDisplacement: cfg.Engine.ClickMaxDisplacement,
			ClickMaxDuration:     cfg.Engine.ClickMaxDuration.Std(),
		},
		inbox:   make(chan input.Event, 1024),
		calls:   make(chan func(), 16),
		started: time.Now(),
	}
}

// Seed lays the applications out on the grid in an outward spiral from the
// center. It must be called before Run.
func (e *Engine) Seed(list []apps.App, iconFor func(apps.App) string) {
	for i, app := range list {
		tile := &scene.Tile{
			ID:    "tile-" + app.ID,
			AppID: app.ID,
			Name:  app.Name,
			Exec:  app.Command(),
		}
		if iconFor != nil {
			tile.Icon = iconFor(app)
		}
		if err := e.sc.AddTile(tile, scene.Spiral(i)); err != nil {
			utils.Warn("Failed to place tile for %s: %v", app.ID, err)
		}
	}
	utils.Info("Seeded %d tiles", e.sc.Len())
}

// Submit queues an input event for the next tick. Pose samples are dropped
// when the inbox is full (input is a stream, a lost sample is recoverable),
// but loss events always reach the recognizer: a grab held by a vanished
// source would otherwise stay owned forever.
func (e *Engine) Submit(ev input.Event) {
	if ev.Lost {
		e.lostMu.Lock()
		e.lost = append(e.lost, ev)
		e.lostMu.Unlock()
		return
	}
	select {
	case e.inbox <- ev:
	default:
		utils.Verbose("Input inbox full, dropping event from %s", ev.Source)
	}
}

// SetDegraded toggles degraded mode. While degraded no new grabs start, but
// drags already in progress run to completion.
func (e *Engine) SetDegraded(on bool) {
	if e.degraded.Swap(on) != on {
		if on {
			utils.Warn("Entering degraded mode: new grabs disabled")
		} else {
			utils.Info("Leaving degraded mode")
		}
	}
}

// Run drives the tick loop until ctx is cancelled. In-flight grabs are
// cancelled on the way out so the scene ends in a settled state.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()

	utils.Info("Engine running at %d Hz with %d tiles", e.cfg.Engine.TickRate, e.sc.Len())
	for {
		select {
		case <-ctx.Done():
			e.cancelAll()
			e.flush()
			return ctx.Err()
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

// tick is the single mutation point of the scene.
func (e *Engine) tick(now time.Time) {
	e.ticks++

	e.drainLaunchResults(now)
	e.sc.ExpireNotices(now)
	e.drainCalls()

	batch := append(e.drainInbox(), e.drainLost()...)
	allowGrab := !e.degraded.Load()
	for _, ev := range batch {
		rec, ok := e.recognizers[ev.Source]
		if !ok {
			rec = gesture.New(ev.Source, e.policy)
			e.recognizers[ev.Source] = rec
		}
		if req := rec.Step(ev, e.sc, allowGrab, now); req != nil {
			e.launchTile(req, now)
		}
		if ev.Lost {
			delete(e.recognizers, ev.Source)
		}
	}

	e.sc.AssertInvariants()
	e.flush()
}

// drainInbox empties the event queue and orders it deterministically: events
// are grouped by source, sources ranked by first arrival in the batch, and
// each source's events kept in arrival order. Two runs over the same batch
// resolve grab conflicts identically.
func (e *Engine) drainInbox() []input.Event {
	var raw []input.Event
	for {
		select {
		case ev := <-e.inbox:
			raw = append(raw, ev)
		default:
			if len(raw) <= 1 {
				return raw
			}
			firstSeen := make(map[string]int)
			for i, ev := range raw {
				if _, ok := firstSeen[ev.Source]; !ok {
					firstSeen[ev.Source] = i
				}
			}
			sort.SliceStable(raw, func(i, j int) bool {
				return firstSeen[raw[i].Source] < firstSeen[raw[j].Source]
			})
			return raw
		}
	}
}

// drainLost collects loss events queued since the last tick. They are
// appended after the sampled batch so a source's final samples are stepped
// before its grab is cancelled.
func (e *Engine) drainLost() []input.Event {
	e.lostMu.Lock()
	defer e.lostMu.Unlock()
	lost := e.lost
	e.lost = nil
	return lost
}

func (e *Engine) drainLaunchResults(now time.Time) {
	for {
		select {
		case res := <-e.dispatcher.Results():
			if res.Err != nil && res.Request.TileID != "" {
				e.sc.SetNotice(res.Request.TileID, "launch failed: "+res.Err.Error(),
					now.Add(noticeDuration))
			}
		default:
			return
		}
	}
}

func (e *Engine) drainCalls() {
	for {
		select {
		case fn := <-e.calls:
			fn()
		default:
			return
		}
	}
}

func (e *Engine) launchTile(req *gesture.LaunchRequest, now time.Time) {
	tile, ok := e.sc.TileByID(req.TileID)
	if !ok {
		return
	}
	e.dispatcher.Dispatch(launch.Request{
		ID:     uuid.New(),
		TileID: tile.ID,
		AppID:  tile.AppID,
		Name:   tile.Name,
		Exec:   tile.Exec,
		Time:   now,
	})
}

func (e *Engine) cancelAll() {
	for source, rec := range e.recognizers {
		rec.Cancel(e.sc)
		delete(e.recognizers, source)
	}
}

func (e *Engine) flush() {
	if e.sink == nil {
		e.sc.FlushDirty(func(*scene.Tile) {})
		return
	}
	e.sc.FlushDirty(func(tile *scene.Tile) {
		e.sink.TileUpdated(*tile)
	})
}

// call runs fn on the tick goroutine and waits for it.
func (e *Engine) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case e.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports a consistent snapshot taken between ticks.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.call(ctx, func() {
		st = Status{
			Ticks:    e.ticks,
			Tiles:    e.sc.Len(),
			Degraded: e.degraded.Load(),
			Uptime:   time.Since(e.started),
		}
		for source := range e.recognizers {
			st.Sources = append(st.Sources, source)
		}
		sort.Strings(st.Sources)
	})
	return st, err
}

// Tiles returns a copy of every tile, sorted by id.
func (e *Engine) Tiles(ctx context.Context) ([]scene.Tile, error) {
	var out []scene.Tile
	err := e.call(ctx, func() {
		for _, tile := range e.sc.Tiles() {
			out = append(out, *tile)
		}
	})
	return out, err
}

// MarkAllDirty schedules a full scene resync on the next tick. The protocol
// client uses it after reconnecting to the compositor.
func (e *Engine) MarkAllDirty() {
	select {
	case e.calls <- func() { e.sc.MarkAllDirty() }:
	default:
		utils.Warn("Call queue full, dropping resync request")
	}
}

// LaunchApp starts an application on behalf of the control plane, bypassing
// the gesture path. The returned id identifies the attempt in the logs.
func (e *Engine) LaunchApp(app apps.App) uuid.UUID {
	req := launch.Request{
		ID:    uuid.New(),
		AppID: app.ID,
		Name:  app.Name,
		Exec:  app.Command(),
		Time:  time.Now(),
	}
	e.dispatcher.Dispatch(req)
	return req.ID
}
