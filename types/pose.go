package types

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Capability identifies what kind of input a source delivers.
type Capability string

const (
	CapabilityPinchHand  Capability = "pinch-hand"
	CapabilityGraspHand  Capability = "grasp-hand"
	CapabilityRayPointer Capability = "ray-pointer"
)

// Pose is a rigid transform: a position plus a unit-quaternion orientation.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityPose returns the zero translation, identity rotation pose.
func IdentityPose() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// Mul composes two poses: the result applies o first, then p.
func (p Pose) Mul(o Pose) Pose {
	return Pose{
		Position:    r3.Add(p.Position, Rotate(p.Orientation, o.Position)),
		Orientation: quat.Mul(p.Orientation, o.Orientation),
	}
}

// Inverse returns the pose that undoes p. Orientation must be unit length,
// which holds for every pose the compositor delivers.
func (p Pose) Inverse() Pose {
	inv := quat.Conj(p.Orientation)
	return Pose{
		Position:    Rotate(inv, r3.Scale(-1, p.Position)),
		Orientation: inv,
	}
}

// Transform applies the pose to a point.
func (p Pose) Transform(v r3.Vec) r3.Vec {
	return r3.Add(p.Position, Rotate(p.Orientation, v))
}

// Rotate applies a unit quaternion rotation to a vector (q v q*).
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
