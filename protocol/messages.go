// Package protocol speaks the compositor's scene-graph wire format: JSON
// frames over a websocket. Input flows in, tile state flows out.
package protocol

import (
	"github.com/StardustXR/protostar/engine/scene"
	"github.com/StardustXR/protostar/types"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame types. input and source_gone arrive from the compositor;
// tile_create and tile_update are sent to it.
const (
	FrameInput      = "input"
	FrameSourceGone = "source_gone"
	FrameTileCreate = "tile_create"
	FrameTileUpdate = "tile_update"
)

// Frame is the single wire envelope. Which fields are populated depends on
// Type.
type Frame struct {
	Type string `json:"type"`

	Source     string    `json:"source,omitempty"`
	Capability string    `json:"capability,omitempty"`
	Pose       *WirePose `json:"pose,omitempty"`
	Activation float64   `json:"activation,omitempty"`
	Timestamp  int64     `json:"timestamp,omitempty"` // unix microseconds

	Tile *WireTile `json:"tile,omitempty"`
}

// WirePose is a transform on the wire: position as [x y z], orientation as a
// quaternion in [x y z w] order.
type WirePose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// WireTile mirrors one tile to the compositor.
type WireTile struct {
	ID     string      `json:"id"`
	AppID  string      `json:"app_id"`
	Name   string      `json:"name"`
	Icon   string      `json:"icon,omitempty"`
	Pose   WirePose    `json:"pose"`
	Scale  float64     `json:"scale"`
	Cell   scene.Axial `json:"cell"`
	Notice string      `json:"notice,omitempty"`
}

func poseFromWire(w *WirePose) types.Pose {
	if w == nil {
		return types.IdentityPose()
	}
	return types.Pose{
		Position: r3.Vec{X: w.Position[0], Y: w.Position[1], Z: w.Position[2]},
		Orientation: quat.Number{
			Imag: w.Orientation[0],
			Jmag: w.Orientation[1],
			Kmag: w.Orientation[2],
			Real: w.Orientation[3],
		},
	}
}

func poseToWire(p types.Pose) WirePose {
	return WirePose{
		Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Orientation: [4]float64{
			p.Orientation.Imag,
			p.Orientation.Jmag,
			p.Orientation.Kmag,
			p.Orientation.Real,
		},
	}
}

func tileToWire(t scene.Tile) *WireTile {
	return &WireTile{
		ID:     t.ID,
		AppID:  t.AppID,
		Name:   t.Name,
		Icon:   t.Icon,
		Pose:   poseToWire(t.Pose),
		Scale:  t.Scale,
		Cell:   t.Cell,
		Notice: t.Notice,
	}
}
