// Package ir implements the arena-backed SSA IR container: the value/
// instruction/block graph with its use-def back-links, and the layout
// (intrusive per-block and per-function doubly-linked ordering).
package ir

import "github.com/maekawatoshiki/vicis-sub000/internal/ir/types"

// Global is a module-level variable definition.
type Global struct {
	Name        string
	Ty          types.Type
	Linkage     Linkage
	Alignment   uint32
	Initializer ConstID // meaningful only when HasInit is true
	HasInit     bool
	IsConstant  bool
}

// AttributeGroup is an opaque, numbered bag of attribute keywords attached
// to a function by `attributes #N = { ... }`. The back end never interprets
// individual attributes; they are tolerated pass-through data for the
// printer.
type AttributeGroup struct {
	ID    uint32
	Attrs []string
}

// Module is the top-level container: the shared type interner, the shared
// constant pool, global variables, and the function list. One Interner and
// one ConstPool are shared across every Function in the module.
type Module struct {
	SourceFilename string
	DataLayout     string
	TargetTriple   string

	Types  *types.Interner
	Consts *ConstPool

	Globals      []*Global
	globalByName map[string]*Global

	Functions      []*Function
	functionByName map[string]*Function

	AttrGroups map[uint32]*AttributeGroup

	inlineAsms []InlineAsm
}

// NewModule returns an empty Module with a fresh type interner and constant
// pool.
func NewModule() *Module {
	return &Module{
		Types:          types.New(),
		Consts:         NewConstPool(),
		globalByName:   make(map[string]*Global),
		functionByName: make(map[string]*Function),
		AttrGroups:     make(map[uint32]*AttributeGroup),
	}
}

// AddGlobal registers g with the module.
func (m *Module) AddGlobal(g *Global) {
	m.Globals = append(m.Globals, g)
	m.globalByName[g.Name] = g
}

// GlobalByName looks up a global by its symbolic name.
func (m *Module) GlobalByName(name string) (*Global, bool) {
	g, ok := m.globalByName[name]
	return g, ok
}

// AddFunction registers f with the module.
func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
	m.functionByName[f.Name] = f
}

// FunctionByName looks up a function by its symbolic name.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	f, ok := m.functionByName[name]
	return f, ok
}

// InternInlineAsm registers an inline-assembly literal and returns a Value
// naming it.
func (m *Module) InternInlineAsm(asm InlineAsm) Value {
	id := uint32(len(m.inlineAsms))
	m.inlineAsms = append(m.inlineAsms, asm)
	return valInlineAsm(id)
}

// InlineAsm returns the inline-assembly literal payload named by id.
func (m *Module) InlineAsm(id uint32) *InlineAsm { return &m.inlineAsms[id] }

// formatInstruction renders a minimal, debugging-only textual form. A full
// IR printer is out of scope here; this exists so error messages and tests
// have something readable to print.
func (m *Module) formatInstruction(i *Instruction) string {
	name := i.Name
	if name == "" {
		name = "<unnamed>"
	}
	return "%" + name + " = " + i.Opcode.String()
}
