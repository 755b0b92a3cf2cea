// Package gesture turns the per-source input stream into grab, drag, drop and
// click decisions against the scene. Each input source gets its own
// Recognizer; all of them are stepped from the engine tick loop.
package gesture

import (
	"time"

	"github.com/StardustXR/protostar/engine/input"
	"github.com/StardustXR/protostar/engine/scene"
	"github.com/StardustXR/protostar/types"
	"github.com/StardustXR/protostar/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the recognizer's position in the grab lifecycle.
type State int

const (
	StateIdle State = iota
	StateHovering
	StateGrabbed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHovering:
		return "hovering"
	case StateGrabbed:
		return "grabbed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Policy holds the calibrated interaction thresholds. GrabThreshold must
// exceed ReleaseThreshold; the gap is the hysteresis band that keeps a noisy
// activation signal from flapping between grab and release.
type Policy struct {
	GrabThreshold        float64
	ReleaseThreshold     float64
	HoverDistance        float64
	ClickMaxDisplacement float64
	ClickMaxDuration     time.Duration
}

// LaunchRequest is emitted when a grab resolves as a click: the tile barely
// moved and the grab was short.
type LaunchRequest struct {
	TileID string
	Source string
}

// Recognizer is the per-source gesture state machine. It is not safe for
// concurrent use; the engine steps every recognizer from a single goroutine.
type Recognizer struct {
	source string
	policy Policy

	state      State
	tileID     string
	fromCell   scene.Axial
	grabOffset types.Pose
	grabStart  time.Time
	grabOrigin r3.Vec
}

func New(source string, policy Policy) *Recognizer {
	return &Recognizer{source: source, policy: policy}
}

func (r *Recognizer) State() State { return r.state }

// TileID returns the tile currently hovered or grabbed, if any.
func (r *Recognizer) TileID() (string, bool) {
	return r.tileID, r.tileID != ""
}

// Step advances the state machine with one input event. allowGrab gates new
// grabs (the engine clears it while the compositor link is down); grabs
// already in progress keep running regardless. The returned LaunchRequest is
// non-nil exactly when this event resolved a grab as a click.
func (r *Recognizer) Step(ev input.Event, sc *scene.Manager, allowGrab bool, now time.Time) *LaunchRequest {
	if ev.Lost {
		r.Cancel(sc)
		return nil
	}

	switch r.state {
	case StateIdle, StateHovering:
		r.updateHover(ev, sc)
		if r.state == StateHovering && allowGrab && ev.Activation >= r.policy.GrabThreshold {
			r.tryGrab(ev, sc, now)
		}
		return nil

	case StateGrabbed:
		if ev.Activation <= r.policy.ReleaseThreshold {
			return r.drop(ev, sc, now)
		}
		sc.SetPose(r.tileID, ev.Pose.Mul(r.grabOffset))
		return nil

	case StateCancelled:
		// stay parked until the pinch is fully released, otherwise a
		// lingering activation would immediately re-grab
		if ev.Activation <= r.policy.ReleaseThreshold {
			r.state = StateIdle
		}
		return nil
	}
	return nil
}

// Cancel aborts an in-flight grab and restores the tile to its pre-drag
// cell. The recognizer parks in StateCancelled until the source reports a
// released activation (or forever, for a lost source).
func (r *Recognizer) Cancel(sc *scene.Manager) {
	if r.state == StateGrabbed {
		if err := sc.Place(r.tileID, r.fromCell); err != nil {
			utils.Warn("Failed to restore tile %s to (%d,%d): %v",
				r.tileID, r.fromCell.Q, r.fromCell.R, err)
		}
		sc.ReleaseOwner(r.tileID)
		utils.Verbose("Cancelled grab of %s by %s", r.tileID, r.source)
	}
	r.tileID = ""
	r.state = StateCancelled
}

func (r *Recognizer) updateHover(ev input.Event, sc *scene.Manager) {
	tile, ok := sc.TileNear(ev.Pose.Position, r.policy.HoverDistance)
	if !ok {
		r.tileID = ""
		r.state = StateIdle
		return
	}
	r.tileID = tile.ID
	r.state = StateHovering
}

func (r *Recognizer) tryGrab(ev input.Event, sc *scene.Manager, now time.Time) {
	if !sc.Acquire(r.tileID, r.source) {
		// another source owns the tile; keep hovering
		return
	}
	tile, _ := sc.TileByID(r.tileID)
	r.state = StateGrabbed
	r.fromCell = tile.Cell
	r.grabOffset = ev.Pose.Inverse().Mul(tile.Pose)
	r.grabStart = now
	r.grabOrigin = ev.Pose.Position
	utils.Verbose("Source %s grabbed tile %s from (%d,%d)",
		r.source, r.tileID, r.fromCell.Q, r.fromCell.R)
}

func (r *Recognizer) drop(ev input.Event, sc *scene.Manager, now time.Time) *LaunchRequest {
	tileID := r.tileID
	defer func() {
		sc.ReleaseOwner(tileID)
		r.tileID = ""
		r.state = StateIdle
	}()

	displacement := r3.Norm(r3.Sub(ev.Pose.Position, r.grabOrigin))
	held := now.Sub(r.grabStart)
	if displacement < r.policy.ClickMaxDisplacement && held < r.policy.ClickMaxDuration {
		// a click: put the tile back where it was and fire the launch
		if err := sc.Place(tileID, r.fromCell); err != nil {
			utils.Warn("Failed to restore clicked tile %s: %v", tileID, err)
		}
		utils.Verbose("Source %s clicked tile %s (%.1fmm in %s)",
			r.source, tileID, displacement*1000, held)
		return &LaunchRequest{TileID: tileID, Source: r.source}
	}

	tile, ok := sc.TileByID(tileID)
	if !ok {
		return nil
	}
	cell, found := sc.NearestFreeCellFor(tile.Pose.Position, tileID)
	if !found {
		utils.Warn("No free cell near tile %s within search radius, snapping back", tileID)
		cell = r.fromCell
	}
	if err := sc.Place(tileID, cell); err != nil {
		utils.Warn("Failed to settle tile %s at (%d,%d): %v", tileID, cell.Q, cell.R, err)
		if err := sc.Place(tileID, r.fromCell); err != nil {
			utils.Warn("Failed to restore tile %s: %v", tileID, err)
		}
	}
	return nil
}
