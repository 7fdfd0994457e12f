// Package mir implements the machine-IR container: a mirror of the ir
// package's arena/layout shape, but for target instructions with typed,
// tagged-union operand records instead of SSA values.
//
// The operand-vector shape (rather than bit-packed per-opcode fields) is
// used throughout because this back end's lowering engine and liveness
// analysis both need to walk an instruction's full operand list
// generically (e.g. to find every memory operand regardless of opcode).
package mir

import "math"

// VReg packs a RealReg (once assigned by an external register allocator)
// into the high 32 bits and a stable VRegID into the low 32 bits. A VReg
// may or may not have a physical register assigned yet; once assigned it
// still carries its original VRegID for identity.
type VReg uint64

// VRegID is the pure identifier of a VReg, independent of any RealReg
// assignment.
type VRegID uint32

// RealReg represents a physical register by its canonical unit: aliased
// sub-registers like al/ax/eax/rax collapse to one RealReg value via
// amd64.ToRegUnit.
type RealReg uint16

const (
	// RealRegInvalid marks a VReg that has not yet been assigned a
	// physical register.
	RealRegInvalid RealReg = math.MaxUint16
	// vRegIDInvalid is 0 so the zero VReg value is invalid: memory-operand
	// structs and other partially populated records can leave register
	// fields at their zero value and have Valid() report false, instead of
	// the zero value aliasing "vreg 0 assigned to physical register 0".
	// Func.AllocVReg therefore hands out ids starting at 1.
	vRegIDInvalid VRegID = 0
)

// VRegInvalid is the zero-information "no register" VReg.
var VRegInvalid = VReg(uint64(RealRegInvalid) << 32)

// NewVReg creates a fresh, not-yet-assigned VReg from an id. The VReg
// carries no register class. id must not be vRegIDInvalid.
func NewVReg(id VRegID) VReg {
	return VReg(uint64(RealRegInvalid)<<32 | uint64(id))
}

// ID returns the VRegID of v.
func (v VReg) ID() VRegID { return VRegID(v) }

// RealReg returns the RealReg assigned to v, or RealRegInvalid.
func (v VReg) RealReg() RealReg { return RealReg(v >> 32) }

// Assigned reports whether the allocator has assigned a physical register.
func (v VReg) Assigned() bool { return v.RealReg() != RealRegInvalid }

// WithRealReg returns a copy of v with r assigned. This is the mutation
// point a register allocator uses once it has picked a physical register
// for v.
func (v VReg) WithRealReg(r RealReg) VReg {
	return VReg(uint64(r)<<32 | uint64(v.ID()))
}

// Valid reports whether v names a real virtual register (as opposed to the
// zero value / VRegInvalid).
func (v VReg) Valid() bool { return v.ID() != vRegIDInvalid }

// RegClass classifies a VReg/RealReg for allocator purposes. This back end
// only ever deals with integer/pointer values, so there is exactly one
// allocatable class, but the type exists so RegInfo's class-for-type
// oracle has a stable return type to grow into.
type RegClass byte

const (
	RegClassInvalid RegClass = iota
	RegClassInt
)
