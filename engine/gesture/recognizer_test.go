package gesture

import (
	"testing"
	"time"

	"github.com/StardustXR/protostar/engine/input"
	"github.com/StardustXR/protostar/engine/scene"
	"github.com/StardustXR/protostar/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func testPolicy() Policy {
	return Policy{
		GrabThreshold:        0.70,
		ReleaseThreshold:     0.40,
		HoverDistance:        0.05,
		ClickMaxDisplacement: 0.015,
		ClickMaxDuration:     350 * time.Millisecond,
	}
}

func newTestScene(t *testing.T, radius int, cells ...scene.Axial) *scene.Manager {
	t.Helper()
	sc := scene.New(scene.Config{TileSize: 0.06, Padding: 0.01, SearchRadius: radius})
	for i, cell := range cells {
		tile := &scene.Tile{ID: string(rune('a' + i)), Name: "tile", Exec: "true"}
		require.NoError(t, sc.AddTile(tile, cell))
	}
	return sc
}

func poseAt(p r3.Vec) types.Pose {
	return types.Pose{Position: p, Orientation: types.IdentityPose().Orientation}
}

func eventAt(source string, p r3.Vec, activation float64) input.Event {
	return input.Event{
		Source:     source,
		Capability: types.CapabilityPinchHand,
		Pose:       poseAt(p),
		Activation: activation,
		Timestamp:  time.Now(),
	}
}

func TestHoverTracksNearestTile(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()

	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})
	r.Step(eventAt("hand", center, 0), sc, true, now)
	assert.Equal(t, StateHovering, r.State())
	id, ok := r.TileID()
	require.True(t, ok)
	assert.Equal(t, "a", id)

	// moving out of range drops back to idle
	far := r3.Add(center, r3.Vec{X: 1})
	r.Step(eventAt("hand", far, 0), sc, true, now)
	assert.Equal(t, StateIdle, r.State())
	_, ok = r.TileID()
	assert.False(t, ok)
}

func TestGrabAcquiresOwnership(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	assert.Equal(t, StateGrabbed, r.State())
	tile, _ := sc.TileByID("a")
	assert.Equal(t, "hand", tile.Owner)
}

func TestGrabHysteresis(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, r.State())

	// activation inside the hysteresis band keeps the grab alive
	r.Step(eventAt("hand", center, 0.55), sc, true, now)
	assert.Equal(t, StateGrabbed, r.State())

	req := r.Step(eventAt("hand", center, 0.1), sc, true, now.Add(100*time.Millisecond))
	assert.NotEqual(t, StateGrabbed, r.State())
	require.NotNil(t, req, "still release resolves as a click")
}

func TestDragFollowsSourceWithGrabOffset(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	// grab slightly off-center
	grabPoint := r3.Add(center, r3.Vec{X: 0.01})
	r.Step(eventAt("hand", grabPoint, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, r.State())

	delta := r3.Vec{X: 0.2, Y: 0.1}
	r.Step(eventAt("hand", r3.Add(grabPoint, delta), 0.9), sc, true, now)

	tile, _ := sc.TileByID("a")
	moved := tile.Pose.Position
	assert.InDelta(t, center.X+delta.X, moved.X, 1e-9)
	assert.InDelta(t, center.Y+delta.Y, moved.Y, 1e-9)
}

func TestDropSnapsToNearestFreeCell(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, r.State())

	target := scene.Axial{Q: 3, R: -1}
	dest := sc.WorldPosition(target)
	r.Step(eventAt("hand", dest, 0.9), sc, true, now)

	req := r.Step(eventAt("hand", dest, 0.1), sc, true, now.Add(time.Second))
	assert.Nil(t, req)
	assert.Equal(t, StateIdle, r.State())

	tile, _ := sc.TileByID("a")
	assert.Equal(t, target, tile.Cell)
	assert.Empty(t, tile.Owner)
	id, ok := sc.TileAtCell(target)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	_, ok = sc.TileAtCell(scene.Axial{Q: 0, R: 0})
	assert.False(t, ok, "old cell must be freed")
	require.NoError(t, sc.CheckInvariants())
}

func TestQuickReleaseIsAClick(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, r.State())

	// tiny wobble, fast release
	wobble := r3.Add(center, r3.Vec{X: 0.005})
	req := r.Step(eventAt("hand", wobble, 0.1), sc, true, now.Add(100*time.Millisecond))
	require.NotNil(t, req)
	assert.Equal(t, "a", req.TileID)
	assert.Equal(t, "hand", req.Source)

	tile, _ := sc.TileByID("a")
	assert.Equal(t, scene.Axial{Q: 0, R: 0}, tile.Cell)
	assert.Equal(t, center, tile.Pose.Position, "click must not move the tile")
	assert.Empty(t, tile.Owner)
}

func TestSlowReleaseIsNotAClick(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	req := r.Step(eventAt("hand", center, 0.1), sc, true, now.Add(2*time.Second))
	assert.Nil(t, req, "a long hold is a drag, not a click")
}

func TestDisplacedReleaseIsNotAClick(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	moved := r3.Add(center, r3.Vec{X: 0.1})
	r.Step(eventAt("hand", moved, 0.9), sc, true, now)
	req := r.Step(eventAt("hand", moved, 0.1), sc, true, now.Add(50*time.Millisecond))
	assert.Nil(t, req)
}

func TestCancelRestoresPreDragCell(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	dest := sc.WorldPosition(scene.Axial{Q: 4, R: 0})
	r.Step(eventAt("hand", dest, 0.9), sc, true, now)

	r.Step(input.Event{Source: "hand", Lost: true, Timestamp: time.Now()}, sc, true, now)
	assert.Equal(t, StateCancelled, r.State())

	tile, _ := sc.TileByID("a")
	assert.Equal(t, scene.Axial{Q: 0, R: 0}, tile.Cell)
	assert.Equal(t, center, tile.Pose.Position)
	assert.Empty(t, tile.Owner)
	require.NoError(t, sc.CheckInvariants())
}

func TestCancelledRearmsOnlyAfterRelease(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	r := New("hand", testPolicy())
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	r.Cancel(sc)
	require.Equal(t, StateCancelled, r.State())

	// lingering high activation must not re-grab
	r.Step(eventAt("hand", center, 0.9), sc, true, now)
	assert.Equal(t, StateCancelled, r.State())
	tile, _ := sc.TileByID("a")
	assert.Empty(t, tile.Owner)

	r.Step(eventAt("hand", center, 0.0), sc, true, now)
	assert.Equal(t, StateIdle, r.State())
}

func TestConcurrentGrabLosesToOwner(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0})
	now := time.Now()
	center := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	first := New("hand-a", testPolicy())
	second := New("hand-b", testPolicy())

	first.Step(eventAt("hand-a", center, 0.9), sc, true, now)
	second.Step(eventAt("hand-b", center, 0.9), sc, true, now)

	assert.Equal(t, StateGrabbed, first.State())
	assert.Equal(t, StateHovering, second.State(), "loser keeps hovering")
	tile, _ := sc.TileByID("a")
	assert.Equal(t, "hand-a", tile.Owner)
}

func TestDegradedModeBlocksNewGrabsOnly(t *testing.T) {
	sc := newTestScene(t, 8, scene.Axial{Q: 0, R: 0}, scene.Axial{Q: 2, R: 0})
	now := time.Now()
	centerA := sc.WorldPosition(scene.Axial{Q: 0, R: 0})
	centerB := sc.WorldPosition(scene.Axial{Q: 2, R: 0})

	holder := New("hand-a", testPolicy())
	holder.Step(eventAt("hand-a", centerA, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, holder.State())

	// link drops: no new grabs
	late := New("hand-b", testPolicy())
	late.Step(eventAt("hand-b", centerB, 0.9), sc, false, now)
	assert.Equal(t, StateHovering, late.State())

	// but the in-flight drag keeps moving
	dest := r3.Add(centerA, r3.Vec{X: 0.1})
	holder.Step(eventAt("hand-a", dest, 0.9), sc, false, now)
	assert.Equal(t, StateGrabbed, holder.State())
	tile, _ := sc.TileByID("a")
	assert.InDelta(t, dest.X, tile.Pose.Position.X, 1e-9)
}

func TestDropWithNoFreeCellSnapsBack(t *testing.T) {
	// blockade: the drop cell and its whole first ring are occupied, and the
	// search radius is too small to look further
	target := scene.Axial{Q: 6, R: 0}
	cells := []scene.Axial{{Q: 0, R: 0}, target}
	cells = append(cells, scene.Ring(target, 1)...)
	sc := newTestScene(t, 1, cells...)
	r := New("hand", testPolicy())
	now := time.Now()
	origin := sc.WorldPosition(scene.Axial{Q: 0, R: 0})

	r.Step(eventAt("hand", origin, 0.9), sc, true, now)
	require.Equal(t, StateGrabbed, r.State())

	dest := sc.WorldPosition(target)
	r.Step(eventAt("hand", dest, 0.9), sc, true, now)
	req := r.Step(eventAt("hand", dest, 0.1), sc, true, now.Add(time.Second))
	assert.Nil(t, req)

	tile, _ := sc.TileByID("a")
	assert.Equal(t, scene.Axial{Q: 0, R: 0}, tile.Cell, "exhausted search snaps back")
	assert.Equal(t, origin, tile.Pose.Position)
	assert.Empty(t, tile.Owner)
	require.NoError(t, sc.CheckInvariants())
}
