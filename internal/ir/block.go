package ir

// BlockID is a stable handle into a Function's block arena.
type BlockID uint32

const blockIDInvalid BlockID = 0

// Block owns predecessor/successor id-sets and an optional symbolic name.
// Intra-block instruction order and inter-block order are conceptually
// layout state rather than part of the block itself, but for a vector-arena
// implementation the cheapest correct home for the linked-list head/tail
// pointers is alongside the owning records. Function's layout methods are
// the only sanctioned way to mutate these fields.
type Block struct {
	ID      BlockID
	Name    string
	Preds   []BlockID
	Succs   []BlockID
	invalid bool

	// per-block instruction list.
	firstInst, lastInst InstID

	// per-function block list.
	prevBlock, nextBlock BlockID
}

// Valid reports whether this block is still live (not removed by a pass).
func (b *Block) Valid() bool { return !b.invalid }
