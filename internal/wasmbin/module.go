// Package wasmbin assembles small core wasm modules for tests.
//
// It covers the subset guest addons need: function imports, one funcref
// table, one memory, active element and data segments, and exports.
package wasmbin

import (
	"math"
)

const (
	magic   uint32 = 0x6D736100
	version uint32 = 0x01
)

const (
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionElement  byte = 9
	sectionCode     byte = 10
	sectionData     byte = 11
)

const (
	kindFunc   byte = 0
	kindTable  byte = 1
	kindMemory byte = 2
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

const funcRef byte = 0x70

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f FuncType) key() string {
	b := make([]byte, 0, len(f.Params)+len(f.Results)+1)
	for _, p := range f.Params {
		b = append(b, byte(p))
	}
	b = append(b, 0)
	for _, r := range f.Results {
		b = append(b, byte(r))
	}
	return string(b)
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type function struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type data struct {
	offset uint32
	init   []byte
}

// Module is a module under construction. Imported functions must all be
// added before the first defined function so indices stay stable.
type Module struct {
	types     []FuncType
	typeIndex map[string]uint32
	imports   []funcImport
	funcs     []function
	exports   []export
	table     []uint32 // function indices, slot 0 stays null
	data      []data
	memPages  uint32
	hasMemory bool
}

func New() *Module {
	return &Module{typeIndex: make(map[string]uint32)}
}

func (m *Module) typeOf(ft FuncType) uint32 {
	k := ft.key()
	if idx, ok := m.typeIndex[k]; ok {
		return idx
	}
	idx := uint32(len(m.types))
	m.types = append(m.types, ft)
	m.typeIndex[k] = idx
	return idx
}

// Import adds a function import and returns its function index.
func (m *Module) Import(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmbin: import after function definition")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeOf(ft)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its function index. body must end
// with End.
func (m *Module) Func(ft FuncType, locals []ValType, body []byte) uint32 {
	m.funcs = append(m.funcs, function{typeIdx: m.typeOf(ft), locals: locals, body: body})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Memory declares the module's memory and exports it as "memory".
func (m *Module) Memory(pages uint32) {
	m.memPages, m.hasMemory = pages, true
	m.exports = append(m.exports, export{name: "memory", kind: kindMemory})
}

// Export exports a function.
func (m *Module) Export(name string, fn uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: fn})
}

// Table places fn in the function table and returns its slot. Slot 0 is
// never used so that a NULL function pointer never resolves.
func (m *Module) Table(fn uint32) uint32 {
	m.table = append(m.table, fn)
	return uint32(len(m.table))
}

// Data places init at offset in memory.
func (m *Module) Data(offset uint32, init []byte) {
	m.data = append(m.data, data{offset: offset, init: init})
}

// CString places a NUL terminated string at offset.
func (m *Module) CString(offset uint32, s string) {
	m.Data(offset, append([]byte(s), 0))
}

func writeSection(w *writer, id byte, sec *writer) {
	w.Byte(id)
	w.WriteU32(uint32(sec.Len()))
	w.WriteBytes(sec.Bytes())
}

func writeValTypes(w *writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func constExpr(offset uint32) []byte {
	return append(I32Const(int32(offset)), End)
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.WriteU32LE(magic)
	w.WriteU32LE(version)

	if len(m.types) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.Byte(0x60)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		writeSection(w, sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.Byte(kindFunc)
			sec.WriteU32(imp.typeIdx)
		}
		writeSection(w, sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typeIdx)
		}
		writeSection(w, sectionFunction, sec)
	}

	exports := m.exports
	if len(m.table) > 0 {
		sec := &writer{}
		sec.WriteU32(1)
		sec.Byte(funcRef)
		sec.Byte(0x00) // min only
		sec.WriteU32(uint32(len(m.table) + 1))
		writeSection(w, sectionTable, sec)
		exports = append(exports, export{name: "__indirect_function_table", kind: kindTable})
	}

	if m.hasMemory {
		sec := &writer{}
		sec.WriteU32(1)
		sec.Byte(0x00)
		sec.WriteU32(m.memPages)
		writeSection(w, sectionMemory, sec)
	}

	if len(exports) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(exports)))
		for _, exp := range exports {
			sec.WriteName(exp.name)
			sec.Byte(exp.kind)
			sec.WriteU32(exp.idx)
		}
		writeSection(w, sectionExport, sec)
	}

	if len(m.table) > 0 {
		sec := &writer{}
		sec.WriteU32(1)
		sec.WriteU32(0) // active, table 0, funcref
		sec.WriteBytes(constExpr(1))
		sec.WriteU32(uint32(len(m.table)))
		for _, fn := range m.table {
			sec.WriteU32(fn)
		}
		writeSection(w, sectionElement, sec)
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &writer{}
			body.WriteU32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.WriteU32(1)
				body.Byte(byte(l))
			}
			body.WriteBytes(f.body)
			sec.WriteU32(uint32(body.Len()))
			sec.WriteBytes(body.Bytes())
		}
		writeSection(w, sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.WriteU32(0)
			sec.WriteBytes(constExpr(d.offset))
			sec.WriteU32(uint32(len(d.init)))
			sec.WriteBytes(d.init)
		}
		writeSection(w, sectionData, sec)
	}

	return w.Bytes()
}

// Instructions

const (
	Unreachable byte = 0x00
	End         byte = 0x0B
	Drop        byte = 0x1A
	I32Add      byte = 0x6A
	F64Add      byte = 0xA0
)

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Op wraps single byte instructions for use with Code.
func Op(ops ...byte) []byte {
	return ops
}

func LocalGet(idx uint32) []byte {
	w := &writer{}
	w.Byte(0x20)
	w.WriteU32(idx)
	return w.Bytes()
}

func LocalSet(idx uint32) []byte {
	w := &writer{}
	w.Byte(0x21)
	w.WriteU32(idx)
	return w.Bytes()
}

func I32Const(v int32) []byte {
	w := &writer{}
	w.Byte(0x41)
	w.WriteS64(int64(v))
	return w.Bytes()
}

func I64Const(v int64) []byte {
	w := &writer{}
	w.Byte(0x42)
	w.WriteS64(v)
	return w.Bytes()
}

func F64Const(v float64) []byte {
	b := []byte{0x44}
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b = append(b, byte(bits>>(8*i)))
	}
	return b
}

func Call(fn uint32) []byte {
	w := &writer{}
	w.Byte(0x10)
	w.WriteU32(fn)
	return w.Bytes()
}

func memarg(op byte, align, offset uint32) []byte {
	w := &writer{}
	w.Byte(op)
	w.WriteU32(align)
	w.WriteU32(offset)
	return w.Bytes()
}

// I32Load loads from the address on the stack plus offset.
func I32Load(offset uint32) []byte { return memarg(0x28, 2, offset) }

func F64Load(offset uint32) []byte { return memarg(0x2B, 3, offset) }

func I32Store(offset uint32) []byte { return memarg(0x36, 2, offset) }

func F64Store(offset uint32) []byte { return memarg(0x39, 3, offset) }

// Load32 pushes the i32 stored at a constant address.
func Load32(addr uint32) []byte {
	return Code(I32Const(int32(addr)), I32Load(0))
}

// Store32 stores a constant at a constant address.
func Store32(addr uint32, v int32) []byte {
	return Code(I32Const(int32(addr)), I32Const(v), I32Store(0))
}
