package mir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir"

// Slot is a typed stack-frame allocation created once by an alloca
// lowering and referenced by later loads/stores.
type Slot struct {
	ID        SlotID
	Size      uint64
	Align     uint64
	Offset    int64 // filled in by ComputeFrame; relative to the frame pointer
	Source    ir.InstID // the alloca that created this slot, for diagnostics
	Escaped   bool      // true once the slot's address has been materialised via lea
}

// Slots is the per-function store of stack-frame objects. Slots are
// addressed relative to the frame pointer once ComputeFrame has run.
type Slots struct {
	entries []Slot
}

// NewSlots returns an empty Slots store.
func NewSlots() *Slots { return &Slots{entries: []Slot{{}}} } // index 0 reserved as SlotInvalid

// Add creates a fresh slot of the given size/alignment, created by the
// alloca instruction src.
func (s *Slots) Add(src ir.InstID, size, align uint64) SlotID {
	id := SlotID(len(s.entries))
	s.entries = append(s.entries, Slot{ID: id, Size: size, Align: align, Source: src})
	return id
}

// Get returns the slot referenced by id.
func (s *Slots) Get(id SlotID) *Slot { return &s.entries[id] }

// MarkEscaped records that id's address was materialised via lea because
// it is used somewhere the slot-relative addressing mode can't reach.
func (s *Slots) MarkEscaped(id SlotID) { s.entries[id].Escaped = true }

// ComputeFrame assigns each slot a frame-pointer-relative offset, packing
// from the largest alignment down and rounding the total frame size up to
// 16 bytes (the System V stack-alignment requirement at a call boundary).
// Offsets are negative, matching `[rbp-N]` addressing.
func (s *Slots) ComputeFrame() (frameSize int64) {
	// Sort indices by descending alignment, stable on declaration order
	// within a tie, to minimise padding without needing per-field holes.
	order := make([]int, 0, len(s.entries)-1)
	for i := 1; i < len(s.entries); i++ {
		order = append(order, i)
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && s.entries[order[j]].Align > s.entries[order[j-1]].Align; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	var offset int64
	for _, idx := range order {
		sl := &s.entries[idx]
		offset += int64(sl.Size)
		if a := int64(sl.Align); a > 0 {
			offset = (offset + a - 1) &^ (a - 1)
		}
		sl.Offset = -offset
	}
	frameSize = (offset + 15) &^ 15
	return frameSize
}
