package liveness

import (
	"sort"

	"github.com/maekawatoshiki/vicis-sub000/internal/codegen/mir"
)

// Segment is one half-open live interval [Start, End) of a LiveRange.
type Segment struct {
	Start, End ProgramPoint
}

// overlaps implements the half-open overlap test: a.start < b.end &&
// a.end > b.start.
func (s Segment) overlaps(o Segment) bool {
	return s.Start.Less(o.End) && o.Start.Less(s.End)
}

// LiveRange is the ordered segment list a register's value must be
// preserved across, consumed by downstream register allocation.
type LiveRange struct {
	Reg      mir.VReg
	Segments []Segment
}

// open starts a fresh segment at start. A virtual register has exactly one
// def under SSA and so opens at most once per live range outside of the
// live-in case; a physical register may open several, one per
// redefinition.
func (r *LiveRange) open(start ProgramPoint) {
	r.Segments = append(r.Segments, Segment{Start: start, End: start})
}

// addUse extends the most recently opened segment's end to pp.
func (r *LiveRange) addUse(pp ProgramPoint) {
	if len(r.Segments) == 0 {
		return
	}
	last := &r.Segments[len(r.Segments)-1]
	if last.End.Less(pp) {
		last.End = pp
	}
}

// Interfere reports whether any segment of r overlaps any segment of other.
// Both segment lists are kept in ascending Start order, so this runs in
// linear time via a merge-style sweep.
func (r *LiveRange) Interfere(other *LiveRange) bool {
	i, j := 0, 0
	for i < len(r.Segments) && j < len(other.Segments) {
		a, b := r.Segments[i], other.Segments[j]
		if a.overlaps(b) {
			return true
		}
		if a.End.Less(b.End) {
			i++
		} else {
			j++
		}
	}
	return false
}

// Merge folds other's segments into r, assumed non-interfering, keeping the
// ascending-Start invariant.
func (r *LiveRange) Merge(other *LiveRange) {
	r.Segments = append(r.Segments, other.Segments...)
	sort.Slice(r.Segments, func(i, j int) bool { return r.Segments[i].Start.Less(r.Segments[j].Start) })
}
