package ir

import (
	"strconv"

	"github.com/maekawatoshiki/vicis-sub000/internal/ir/types"
)

// ConstID is a stable handle into a Module's constant pool.
type ConstID uint32

// ConstKind enumerates the constant forms this IR supports: undef,
// aggregate-zero, null, typed integers (i1/i8/i32/i64), typed arrays (with
// an is_string flag), typed structs, global references, and constant
// expressions limited to getelementptr and bitcast.
type ConstKind byte

const (
	ConstInvalid ConstKind = iota
	ConstUndef
	ConstAggregateZero
	ConstNull
	ConstInt
	ConstArray
	ConstStruct
	ConstGlobal
	ConstExprGetElementPtr
	ConstExprBitcast
)

// Constant is the tagged-union payload for one interned constant. Which
// fields apply depends on Kind; this flattening mirrors the Instruction
// flattening used elsewhere in this package (see ir.Instruction and
// internal/ir/types for the analogous type-descriptor flattening).
type Constant struct {
	Kind ConstKind
	Ty   types.Type

	// ConstInt
	IntVal int64

	// ConstArray / ConstStruct
	Elems    []ConstID
	IsString bool // set when the parser saw a c"..." literal (ConstArray only)

	// ConstGlobal: a symbolic reference to a global by name; Ty is always a
	// pointer type.
	GlobalName string

	// ConstExprGetElementPtr
	GEPBase    ConstID
	GEPIndices []int64

	// ConstExprBitcast
	BitcastOperand ConstID
}

// ConstPool interns Constants by structural value so that e.g. the integer
// literal `0` used in a hundred places is one ConstID.
type ConstPool struct {
	entries []Constant
	intern  map[string]ConstID
}

// NewConstPool returns an empty, ready-to-use ConstPool.
func NewConstPool() *ConstPool {
	return &ConstPool{intern: make(map[string]ConstID)}
}

// Get returns the Constant referenced by id.
func (p *ConstPool) Get(id ConstID) *Constant { return &p.entries[id] }

// Undef interns an undef constant of type t.
func (p *ConstPool) Undef(t types.Type) ConstID {
	return p.add(Constant{Kind: ConstUndef, Ty: t})
}

// AggregateZero interns a zeroinitializer constant of type t.
func (p *ConstPool) AggregateZero(t types.Type) ConstID {
	return p.add(Constant{Kind: ConstAggregateZero, Ty: t})
}

// Null interns a null pointer constant of type t.
func (p *ConstPool) Null(t types.Type) ConstID {
	return p.add(Constant{Kind: ConstNull, Ty: t})
}

// Int interns a typed integer constant.
func (p *ConstPool) Int(t types.Type, v int64) ConstID {
	return p.add(Constant{Kind: ConstInt, Ty: t, IntVal: v})
}

// Array interns a typed array constant, optionally flagged as a C string.
func (p *ConstPool) Array(t types.Type, elems []ConstID, isString bool) ConstID {
	return p.add(Constant{Kind: ConstArray, Ty: t, Elems: append([]ConstID(nil), elems...), IsString: isString})
}

// Struct interns a typed struct constant.
func (p *ConstPool) Struct(t types.Type, elems []ConstID) ConstID {
	return p.add(Constant{Kind: ConstStruct, Ty: t, Elems: append([]ConstID(nil), elems...)})
}

// Global interns a symbolic reference to a global by name.
func (p *ConstPool) Global(t types.Type, name string) ConstID {
	return p.add(Constant{Kind: ConstGlobal, Ty: t, GlobalName: name})
}

// GetElementPtr interns a `getelementptr` constant expression.
func (p *ConstPool) GetElementPtr(t types.Type, base ConstID, indices []int64) ConstID {
	return p.add(Constant{Kind: ConstExprGetElementPtr, Ty: t, GEPBase: base, GEPIndices: append([]int64(nil), indices...)})
}

// Bitcast interns a `bitcast` constant expression.
func (p *ConstPool) Bitcast(t types.Type, operand ConstID) ConstID {
	return p.add(Constant{Kind: ConstExprBitcast, Ty: t, BitcastOperand: operand})
}

func (p *ConstPool) add(c Constant) ConstID {
	key := constKey(c)
	if id, ok := p.intern[key]; ok {
		return id
	}
	id := ConstID(len(p.entries))
	p.entries = append(p.entries, c)
	p.intern[key] = id
	return id
}

// constKey produces a structural dedup key. Good enough for the common
// scalar cases (undef/null/int/global); aggregate constants are rarely
// reused verbatim so a conservative unique key (never matching) is used for
// them to avoid a potentially expensive deep-equality scan.
func constKey(c Constant) string {
	switch c.Kind {
	case ConstUndef, ConstAggregateZero, ConstNull:
		return strconv.FormatInt(int64(c.Kind), 10) + ":" + typeKey(c.Ty)
	case ConstInt:
		return "i:" + typeKey(c.Ty) + ":" + strconv.FormatInt(c.IntVal, 10)
	case ConstGlobal:
		return "g:" + c.GlobalName
	default:
		return "u:" + uniqueKey()
	}
}

// typeKey produces a cheap, collision-free key for a types.Type without
// needing interner access: Type is already a small (arena, id) pair, so its
// Go value is itself a valid map key component once rendered to a string.
func typeKey(t types.Type) string {
	return strconv.FormatUint(t.Raw(), 10)
}

var uniqueCounter uint64

func uniqueKey() string {
	uniqueCounter++
	return strconv.FormatUint(uniqueCounter, 10)
}
