package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return New(Config{TileSize: testTileSize, Padding: testPadding, SearchRadius: 8})
}

func addTile(t *testing.T, m *Manager, id string, cell Axial) *Tile {
	t.Helper()
	tile := &Tile{ID: id, AppID: id, Name: id, Exec: id}
	require.NoError(t, m.AddTile(tile, cell))
	return tile
}

func TestAddTilePlacesAtCellCenter(t *testing.T) {
	m := newTestManager(t)
	tile := addTile(t, m, "a", Axial{Q: 1, R: 0})

	assert.Equal(t, Axial{Q: 1, R: 0}, tile.Cell)
	assert.Equal(t, m.WorldPosition(Axial{Q: 1, R: 0}), tile.Pose.Position)
	assert.NoError(t, m.CheckInvariants())
}

func TestAddTileRejectsOccupiedCell(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})

	err := m.AddTile(&Tile{ID: "b"}, Axial{})
	assert.Error(t, err)
	assert.NoError(t, m.CheckInvariants())
}

func TestRemoveTileFreesCell(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	addTile(t, m, "b", Axial{Q: 1, R: 0})

	m.RemoveTile("a")
	_, occupied := m.TileAtCell(Axial{})
	assert.False(t, occupied)
	assert.Equal(t, 1, m.Len())
	assert.NoError(t, m.CheckInvariants())

	// arena swap keeps the survivor addressable
	tile, ok := m.TileByID("b")
	require.True(t, ok)
	assert.Equal(t, "b", tile.ID)
}

func TestAcquireIsExclusive(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})

	assert.True(t, m.Acquire("a", "hand-left"))
	assert.False(t, m.Acquire("a", "hand-right"), "second grab must be rejected")

	tile, _ := m.TileByID("a")
	assert.Equal(t, "hand-left", tile.Owner)

	m.ReleaseOwner("a")
	assert.True(t, m.Acquire("a", "hand-right"))
}

func TestPlaceMovesTileAndEvictsStaleMapping(t *testing.T) {
	m := newTestManager(t)
	tile := addTile(t, m, "a", Axial{})

	require.NoError(t, m.Place("a", Axial{Q: 1, R: 1}))

	assert.Equal(t, Axial{Q: 1, R: 1}, tile.Cell)
	_, oldOccupied := m.TileAtCell(Axial{})
	assert.False(t, oldOccupied, "old cell must be freed")

	holder, ok := m.TileAtCell(Axial{Q: 1, R: 1})
	require.True(t, ok)
	assert.Equal(t, "a", holder)
	assert.NoError(t, m.CheckInvariants())
}

func TestPlaceRejectsOccupiedCell(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	addTile(t, m, "b", Axial{Q: 1, R: 0})

	assert.Error(t, m.Place("a", Axial{Q: 1, R: 0}))
	assert.NoError(t, m.CheckInvariants())
}

func TestPlaceSameCellIsNoOp(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	m.FlushDirty(func(*Tile) {}) // clear the insert event

	require.NoError(t, m.Place("a", Axial{}))

	flushed := 0
	m.FlushDirty(func(*Tile) { flushed++ })
	assert.Zero(t, flushed, "re-placing a settled tile must emit nothing")
}

func TestNearestFreeCellPrefersOwnCell(t *testing.T) {
	m := newTestManager(t)
	tile := addTile(t, m, "a", Axial{})

	cell, ok := m.NearestFreeCellFor(tile.Pose.Position, "a")
	require.True(t, ok)
	assert.Equal(t, Axial{}, cell, "a tile's own cell counts as free for it")
}

func TestNearestFreeCellSkipsOccupied(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})

	// query from the center of the occupied origin on behalf of another tile
	cell, ok := m.NearestFreeCellFor(m.WorldPosition(Axial{}), "b")
	require.True(t, ok)
	assert.NotEqual(t, Axial{}, cell)

	// the result is on the first ring
	assert.Equal(t, 1, (abs(cell.Q)+abs(cell.R)+abs(cell.S()))/2)
}

func TestNearestFreeCellExhaustsSearchRadius(t *testing.T) {
	m := New(Config{TileSize: testTileSize, Padding: testPadding, SearchRadius: 2})

	// fill every cell within radius 2 of the origin
	i := 0
	for radius := 0; radius <= 2; radius++ {
		for _, cell := range Ring(Axial{}, radius) {
			addTile(t, m, string(rune('a'+i)), cell)
			i++
		}
	}

	_, ok := m.NearestFreeCellFor(m.WorldPosition(Axial{}), "query-tile")
	assert.False(t, ok, "no free cell within the bounded radius")
}

func TestTileNear(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	addTile(t, m, "b", Axial{Q: 2, R: 0})

	tile, ok := m.TileNear(m.WorldPosition(Axial{}), 0.02)
	require.True(t, ok)
	assert.Equal(t, "a", tile.ID)

	_, ok = m.TileNear(m.WorldPosition(Axial{Q: 5, R: 5}), 0.02)
	assert.False(t, ok)
}

func TestFlushDirtyIsOrderedAndOneShot(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "b", Axial{})
	addTile(t, m, "a", Axial{Q: 1, R: 0})

	var order []string
	m.FlushDirty(func(tile *Tile) { order = append(order, tile.ID) })
	assert.Equal(t, []string{"a", "b"}, order)

	m.FlushDirty(func(tile *Tile) { t.Fatalf("unexpected dirty tile %s", tile.ID) })
}

func TestNoticeLifecycle(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	m.FlushDirty(func(*Tile) {})

	now := time.Now()
	m.SetNotice("a", "launch failed: exit 127", now.Add(2*time.Second))

	tile, _ := m.TileByID("a")
	assert.Equal(t, "launch failed: exit 127", tile.Notice)

	m.ExpireNotices(now.Add(time.Second))
	assert.NotEmpty(t, tile.Notice, "notice must persist until its deadline")

	m.ExpireNotices(now.Add(3 * time.Second))
	assert.Empty(t, tile.Notice)
}

func TestMarkAllDirtyResyncsEveryTile(t *testing.T) {
	m := newTestManager(t)
	addTile(t, m, "a", Axial{})
	addTile(t, m, "b", Axial{Q: 1, R: 0})
	m.FlushDirty(func(*Tile) {})

	m.MarkAllDirty()
	count := 0
	m.FlushDirty(func(*Tile) { count++ })
	assert.Equal(t, 2, count)
}
