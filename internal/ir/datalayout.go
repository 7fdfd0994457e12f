package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// DataLayout answers size_of/align_of queries used by alloca slot sizing
// and GEP offset computation. For x86-64 System V the defaults are fixed:
// pointer=8, i1=1, i8=1, i16=2, i32=4, i64=8, with arrays and structs
// computed by the usual C rules (struct layout honours the packed flag).
// A full textual data-layout-string parser belongs to the IR text parser;
// this type only exposes the query surface the back end depends on,
// pre-seeded with the x86-64 defaults.
type DataLayout struct {
	types *types.Interner
}

// NewDataLayout returns the x86-64 System V default DataLayout for in.
func NewDataLayout(in *types.Interner) *DataLayout {
	return &DataLayout{types: in}
}

// SizeOf returns the size in bytes of t.
func (d *DataLayout) SizeOf(t types.Type) uint64 {
	switch d.types.Kind(t) {
	case types.KindI1, types.KindI8:
		return 1
	case types.KindI16:
		return 2
	case types.KindI32:
		return 4
	case types.KindI64, types.KindPointer:
		return 8
	case types.KindArray:
		return d.types.ArrayCount(t) * d.SizeOf(d.types.ElementAt(t, 0))
	case types.KindStruct:
		return d.structSize(t)
	case types.KindAlias:
		return d.SizeOf(d.types.AliasTarget(t))
	default:
		panic("BUG: SizeOf on a type with no storage representation: " + d.types.Kind(t).String())
	}
}

// AlignOf returns the required alignment in bytes of t.
func (d *DataLayout) AlignOf(t types.Type) uint64 {
	switch d.types.Kind(t) {
	case types.KindI1, types.KindI8:
		return 1
	case types.KindI16:
		return 2
	case types.KindI32:
		return 4
	case types.KindI64, types.KindPointer:
		return 8
	case types.KindArray:
		return d.AlignOf(d.types.ElementAt(t, 0))
	case types.KindStruct:
		if d.types.StructPacked(t) {
			return 1
		}
		var best uint64 = 1
		n := d.types.NumElements(t)
		for i := 0; i < n; i++ {
			if a := d.AlignOf(d.types.ElementAt(t, i)); a > best {
				best = a
			}
		}
		return best
	case types.KindAlias:
		return d.AlignOf(d.types.AliasTarget(t))
	default:
		panic("BUG: AlignOf on a type with no storage representation: " + d.types.Kind(t).String())
	}
}

// structSize lays fields out in declaration order with C-style padding
// (fields aligned to their own alignment; struct size rounded up to the
// struct's own alignment), skipped entirely when the struct is packed.
func (d *DataLayout) structSize(t types.Type) uint64 {
	n := d.types.NumElements(t)
	packed := d.types.StructPacked(t)
	var offset uint64
	for i := 0; i < n; i++ {
		et := d.types.ElementAt(t, i)
		if !packed {
			a := d.AlignOf(et)
			offset = alignUp(offset, a)
		}
		offset += d.SizeOf(et)
	}
	if !packed {
		offset = alignUp(offset, d.AlignOf(t))
	}
	return offset
}

// FieldOffset returns the byte offset of the i-th field of struct type t.
func (d *DataLayout) FieldOffset(t types.Type, i int) uint64 {
	packed := d.types.StructPacked(t)
	var offset uint64
	for j := 0; j < i; j++ {
		et := d.types.ElementAt(t, j)
		if !packed {
			offset = alignUp(offset, d.AlignOf(et))
		}
		offset += d.SizeOf(et)
	}
	if !packed {
		offset = alignUp(offset, d.AlignOf(d.types.ElementAt(t, i)))
	}
	return offset
}

func alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}
