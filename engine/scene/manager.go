// Package scene owns the authoritative tile set and the hexagonal grid. It is
// mutated exclusively from the engine tick loop; no locking is needed because
// there is exactly one mutator context.
package scene

import (
	"fmt"
	"sort"
	"time"

	"github.com/StardustXR/protostar/types"
	"github.com/StardustXR/protostar/utils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config is the grid geometry and snap policy.
type Config struct {
	TileSize     float64
	Padding      float64
	SearchRadius int
}

// Tile is one application tile in the launcher. Owner is the id of the input
// source currently dragging it, or empty when unowned. At most one source
// owns a tile at any time.
type Tile struct {
	ID    string `json:"id"`
	AppID string `json:"appId"`
	Name  string `json:"name"`
	Exec  string `json:"exec"`
	Icon  string `json:"icon,omitempty"`

	Pose  types.Pose `json:"pose"`
	Scale float64    `json:"scale"`
	Cell  Axial      `json:"cell"`
	Owner string     `json:"owner,omitempty"`

	// Notice carries a transient user-facing status (e.g. a launch failure)
	// mirrored to the compositor until NoticeUntil.
	Notice      string    `json:"notice,omitempty"`
	NoticeUntil time.Time `json:"noticeUntil,omitzero"`
}

// Manager holds tiles in a dense arena indexed by stable id, plus the
// cell -> tile bijection.
type Manager struct {
	cfg   Config
	tiles []*Tile
	index map[string]int
	grid  map[Axial]string
	dirty map[string]struct{}
}

func New(cfg Config) *Manager {
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = 8
	}
	return &Manager{
		cfg:   cfg,
		index: make(map[string]int),
		grid:  make(map[Axial]string),
		dirty: make(map[string]struct{}),
	}
}

// AddTile inserts a tile at the given cell. The cell must be free.
func (m *Manager) AddTile(tile *Tile, cell Axial) error {
	if _, exists := m.index[tile.ID]; exists {
		return fmt.Errorf("tile %s already exists", tile.ID)
	}
	if holder, occupied := m.grid[cell]; occupied {
		return fmt.Errorf("cell (%d,%d) already holds tile %s", cell.Q, cell.R, holder)
	}

	tile.Cell = cell
	tile.Pose = types.Pose{
		Position:    WorldXY(cell, m.cfg.TileSize, m.cfg.Padding),
		Orientation: types.IdentityPose().Orientation,
	}
	if tile.Scale == 0 {
		tile.Scale = 1
	}

	m.index[tile.ID] = len(m.tiles)
	m.tiles = append(m.tiles, tile)
	m.grid[cell] = tile.ID
	m.dirty[tile.ID] = struct{}{}
	return nil
}

// RemoveTile drops a tile and frees its cell.
func (m *Manager) RemoveTile(id string) {
	i, ok := m.index[id]
	if !ok {
		return
	}
	delete(m.grid, m.tiles[i].Cell)
	delete(m.index, id)
	delete(m.dirty, id)

	last := len(m.tiles) - 1
	m.tiles[i] = m.tiles[last]
	m.tiles = m.tiles[:last]
	if i != last {
		m.index[m.tiles[i].ID] = i
	}
}

func (m *Manager) TileByID(id string) (*Tile, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.tiles[i], true
}

// Tiles returns every tile, ordered by id for deterministic iteration.
func (m *Manager) Tiles() []*Tile {
	out := make([]*Tile, len(m.tiles))
	copy(out, m.tiles)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Len() int { return len(m.tiles) }

// TileNear returns the tile whose center is closest to p within maxDist.
func (m *Manager) TileNear(p r3.Vec, maxDist float64) (*Tile, bool) {
	var best *Tile
	bestDist := maxDist
	for _, tile := range m.tiles {
		d := r3.Norm(r3.Sub(tile.Pose.Position, p))
		if d <= bestDist {
			// deterministic winner when equidistant
			if best == nil || d < bestDist || tile.ID < best.ID {
				best, bestDist = tile, d
			}
		}
	}
	return best, best != nil
}

// Acquire makes source the exclusive owner of the tile. It is the single
// atomic decision point for grab conflicts: the first caller in tick order
// wins, later callers are rejected.
func (m *Manager) Acquire(id, source string) bool {
	tile, ok := m.TileByID(id)
	if !ok || tile.Owner != "" {
		return false
	}
	tile.Owner = source
	return true
}

// ReleaseOwner clears a tile's owner.
func (m *Manager) ReleaseOwner(id string) {
	if tile, ok := m.TileByID(id); ok {
		tile.Owner = ""
	}
}

// SetPose updates a dragged tile's transform. Only the owning drag may move
// a tile between cells; the grid mapping is untouched until Place.
func (m *Manager) SetPose(id string, pose types.Pose) {
	tile, ok := m.TileByID(id)
	if !ok {
		return
	}
	tile.Pose = pose
	m.dirty[id] = struct{}{}
}

// SetNotice attaches a transient status to a tile (e.g. launch failure).
func (m *Manager) SetNotice(id, notice string, until time.Time) {
	tile, ok := m.TileByID(id)
	if !ok {
		return
	}
	tile.Notice = notice
	tile.NoticeUntil = until
	m.dirty[id] = struct{}{}
}

// ExpireNotices clears notices past their deadline.
func (m *Manager) ExpireNotices(now time.Time) {
	for _, tile := range m.tiles {
		if tile.Notice != "" && now.After(tile.NoticeUntil) {
			tile.Notice = ""
			m.dirty[tile.ID] = struct{}{}
		}
	}
}

// CellFromPoint maps a world point to its containing cell.
func (m *Manager) CellFromPoint(p r3.Vec) Axial {
	return FromPoint(p, m.cfg.TileSize, m.cfg.Padding)
}

// WorldPosition returns the center of a cell.
func (m *Manager) WorldPosition(cell Axial) r3.Vec {
	return WorldXY(cell, m.cfg.TileSize, m.cfg.Padding)
}

// NearestFreeCellFor finds the closest unoccupied cell to p, searching
// outward ring by ring up to the configured radius. A cell held by the tile
// itself counts as free so a barely-moved tile settles where it started.
// Returns false when the search radius is exhausted.
func (m *Manager) NearestFreeCellFor(p r3.Vec, tileID string) (Axial, bool) {
	origin := m.CellFromPoint(p)

	for radius := 0; radius <= m.cfg.SearchRadius; radius++ {
		var best Axial
		bestDist := -1.0
		for _, cell := range Ring(origin, radius) {
			holder, occupied := m.grid[cell]
			if occupied && holder != tileID {
				continue
			}
			d := r3.Norm(r3.Sub(m.WorldPosition(cell), p))
			if bestDist < 0 || d < bestDist {
				best, bestDist = cell, d
			}
		}
		if bestDist >= 0 {
			return best, true
		}
	}
	return Axial{}, false
}

// Place is the only mutator of the cell mapping. It evicts the tile's stale
// mapping before inserting the new one, preserving the bijection. Placing a
// tile on the cell it already holds is a no-op.
func (m *Manager) Place(id string, cell Axial) error {
	tile, ok := m.TileByID(id)
	if !ok {
		return fmt.Errorf("unknown tile %s", id)
	}
	if holder, occupied := m.grid[cell]; occupied && holder != id {
		return fmt.Errorf("cell (%d,%d) already holds tile %s", cell.Q, cell.R, holder)
	}

	target := types.Pose{
		Position:    m.WorldPosition(cell),
		Orientation: types.IdentityPose().Orientation,
	}
	if tile.Cell == cell && m.grid[cell] == id && tile.Pose == target {
		return nil
	}

	delete(m.grid, tile.Cell)
	m.grid[cell] = id
	tile.Cell = cell
	tile.Pose = target
	m.dirty[id] = struct{}{}
	return nil
}

// TileAtCell reports which tile occupies a cell.
func (m *Manager) TileAtCell(cell Axial) (string, bool) {
	id, ok := m.grid[cell]
	return id, ok
}

// FlushDirty invokes fn for every tile changed since the previous flush.
func (m *Manager) FlushDirty(fn func(*Tile)) {
	if len(m.dirty) == 0 {
		return
	}
	ids := make([]string, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if tile, ok := m.TileByID(id); ok {
			fn(tile)
		}
	}
	m.dirty = make(map[string]struct{})
}

// MarkAllDirty queues a full resync of every tile.
func (m *Manager) MarkAllDirty() {
	for _, tile := range m.tiles {
		m.dirty[tile.ID] = struct{}{}
	}
}

// CheckInvariants asserts the cell<->tile bijection and ownership
// exclusivity. The single-mutator design keeps these from ever failing; the
// check runs in tests and, when verbose, once per tick.
func (m *Manager) CheckInvariants() error {
	if len(m.grid) != len(m.tiles) {
		return fmt.Errorf("grid has %d cells for %d tiles", len(m.grid), len(m.tiles))
	}
	for cell, id := range m.grid {
		tile, ok := m.TileByID(id)
		if !ok {
			return fmt.Errorf("cell (%d,%d) maps to unknown tile %s", cell.Q, cell.R, id)
		}
		if tile.Cell != cell {
			return fmt.Errorf("tile %s thinks it is at (%d,%d) but grid has it at (%d,%d)",
				id, tile.Cell.Q, tile.Cell.R, cell.Q, cell.R)
		}
	}
	return nil
}

// AssertInvariants logs (and in tests fails via CheckInvariants) when the
// bijection is broken.
func (m *Manager) AssertInvariants() {
	if err := m.CheckInvariants(); err != nil {
		utils.Error("Scene invariant violated: %v", err)
		panic(err)
	}
}
