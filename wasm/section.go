// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"sort"

	"github.com/sassembla/wasmcore/wasm/internal/readpos"
	"github.com/sassembla/wasmcore/wasm/leb128"
)

// Section is satisfied by every concrete section type: the eleven known
// sections plus SectionCustom, so the reader/writer below can treat them
// uniformly and still recover the original section ordering.
type Section interface {
	// SectionID returns a section ID for WASM encoding. Should be unique across types.
	SectionID() SectionID
	// GetRawSection Returns an embedded RawSection pointer to populate generic fields.
	GetRawSection() *RawSection
	// ReadPayload reads a section payload, assuming the size was already read, and reader is limited to it.
	ReadPayload(r io.Reader) error
	// WritePayload writes a section payload without the size.
	// Caller should calculate written size and add it before the payload.
	WritePayload(w io.Writer) error
}

// SectionID is a 1-byte code that encodes the section code of both known and custom sections.
type SectionID uint8

const (
	SectionIDCustom   SectionID = 0
	SectionIDType     SectionID = 1
	SectionIDImport   SectionID = 2
	SectionIDFunction SectionID = 3
	SectionIDTable    SectionID = 4
	SectionIDMemory   SectionID = 5
	SectionIDGlobal   SectionID = 6
	SectionIDExport   SectionID = 7
	SectionIDStart    SectionID = 8
	SectionIDElement  SectionID = 9
	SectionIDCode     SectionID = 10
	SectionIDData     SectionID = 11
)

var sectionIDNames = map[SectionID]string{
	SectionIDCustom:   "custom",
	SectionIDType:     "type",
	SectionIDImport:   "import",
	SectionIDFunction: "function",
	SectionIDTable:    "table",
	SectionIDMemory:   "memory",
	SectionIDGlobal:   "global",
	SectionIDExport:   "export",
	SectionIDStart:    "start",
	SectionIDElement:  "element",
	SectionIDCode:     "code",
	SectionIDData:     "data",
}

func (s SectionID) String() string {
	if n, ok := sectionIDNames[s]; ok {
		return n
	}
	return "unknown"
}

// RawSection records a section's position and raw payload within the
// module stream, embedded in every concrete section type.
type RawSection struct {
	Start int64
	End   int64

	ID    SectionID
	Bytes []byte
}

func (s *RawSection) SectionID() SectionID {
	return s.ID
}

func (s *RawSection) GetRawSection() *RawSection {
	return s
}

type InvalidSectionIDError SectionID

func (e InvalidSectionIDError) Error() string {
	return fmt.Sprintf("wasm: malformed section id 0x%x", uint8(e))
}

type MissingSectionError SectionID

func (e MissingSectionError) Error() string {
	return fmt.Sprintf("wasm: missing section %s", SectionID(e).String())
}

// readVector decodes a count-prefixed vector of entries, the layout
// every section body shares. The pointer-constraint type parameter lets
// entries unmarshal in place without a per-entry allocation.
func readVector[T any, PT interface {
	*T
	Unmarshaler
}](r io.Reader) ([]T, error) {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]T, 0, getInitialCap(count))
	for i := uint32(0); i < count; i++ {
		var entry T
		if err := PT(&entry).UnmarshalWASM(r); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// writeVector is readVector's inverse.
func writeVector[T any, PT interface {
	*T
	Marshaler
}](w io.Writer, entries []T) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(entries))); err != nil {
		return err
	}
	for i := range entries {
		if err := PT(&entries[i]).MarshalWASM(w); err != nil {
			return err
		}
	}
	return nil
}

// sectionFactories maps a section ID to the Module field it populates
// and the Section value that field should hold, so readSection doesn't
// need a dozen near-identical switch arms to wire a fresh section into
// place.
var sectionFactories = map[SectionID]func(m *Module) Section{
	SectionIDType: func(m *Module) Section {
		m.Types = &SectionTypes{}
		return m.Types
	},
	SectionIDImport: func(m *Module) Section {
		m.Import = &SectionImports{}
		return m.Import
	},
	SectionIDFunction: func(m *Module) Section {
		m.Function = &SectionFunctions{}
		return m.Function
	},
	SectionIDTable: func(m *Module) Section {
		m.Table = &SectionTables{}
		return m.Table
	},
	SectionIDMemory: func(m *Module) Section {
		m.Memory = &SectionMemories{}
		return m.Memory
	},
	SectionIDGlobal: func(m *Module) Section {
		m.Global = &SectionGlobals{}
		return m.Global
	},
	SectionIDExport: func(m *Module) Section {
		m.Export = &SectionExports{}
		return m.Export
	},
	SectionIDStart: func(m *Module) Section {
		m.Start = &SectionStartFunction{}
		return m.Start
	},
	SectionIDElement: func(m *Module) Section {
		m.Elements = &SectionElements{}
		return m.Elements
	},
	SectionIDCode: func(m *Module) Section {
		m.Code = &SectionCode{}
		return m.Code
	},
	SectionIDData: func(m *Module) Section {
		m.Data = &SectionData{}
		return m.Data
	},
}

// sectionsReader drives the section stream of DecodeModule: read an ID,
// read its payload length, decode exactly that many bytes through the
// matching Section, repeat until EOF. lastSecOrder enforces that known
// sections appear at most once and in ascending ID order, per the
// binary format grammar; custom sections are exempt and may repeat or
// interleave anywhere.
type sectionsReader struct {
	lastSecOrder uint8
	m            *Module
}

func newSectionsReader(m *Module) *sectionsReader {
	return &sectionsReader{m: m}
}

func (s *sectionsReader) readSections(r *readpos.ReadPos) error {
	for {
		done, err := s.readSection(r)
		switch {
		case err != nil:
			return err
		case done:
			return nil
		}
	}
}

// readSection reads one section from r. The first return value reports
// whether the module has been completely read (EOF at a section boundary).
func (sr *sectionsReader) readSection(r *readpos.ReadPos) (bool, error) {
	m := sr.m

	id, err := r.ReadByte()
	if err == io.EOF {
		return true, nil
	} else if err != nil {
		return false, err
	}
	if id != uint8(SectionIDCustom) {
		if id <= sr.lastSecOrder {
			return false, fmt.Errorf("wasm: sections must occur at most once and in the prescribed order")
		}
		sr.lastSecOrder = id
	}

	s := RawSection{ID: SectionID(id)}

	payloadDataLen, err := leb128.ReadVarUint32(r)
	if err != nil {
		return false, err
	}

	s.Start = r.CurPos

	sectionBytes := new(bytes.Buffer)
	sectionBytes.Grow(int(getInitialCap(payloadDataLen)))
	sectionReader := io.LimitReader(io.TeeReader(r, sectionBytes), int64(payloadDataLen))

	var sec Section
	if s.ID == SectionIDCustom {
		cs := &SectionCustom{}
		m.Customs = append(m.Customs, cs)
		sec = cs
	} else if factory, ok := sectionFactories[s.ID]; ok {
		sec = factory(m)
	} else {
		return false, InvalidSectionIDError(s.ID)
	}

	if err := sec.ReadPayload(sectionReader); err != nil {
		return false, err
	}
	s.End = r.CurPos
	if s.End-s.Start != int64(payloadDataLen) {
		return false, fmt.Errorf("wasm: section %v payload: read %d bytes, declared %d", s.ID, s.End-s.Start, payloadDataLen)
	}
	s.Bytes = sectionBytes.Bytes()
	*sec.GetRawSection() = s

	if s.ID == SectionIDCode {
		for i := range m.Code.Bodies {
			m.Code.Bodies[i].Module = m
		}
	}

	m.Sections = append(m.Sections, sec)
	return false, nil
}

var _ Section = (*SectionCustom)(nil)

// SectionCustom is an uninterpreted named section; the payload after
// the length-prefixed name is preserved as-is.
type SectionCustom struct {
	RawSection
	Name string
	Data []byte
}

func (s *SectionCustom) SectionID() SectionID {
	return SectionIDCustom
}

func (s *SectionCustom) ReadPayload(r io.Reader) error {
	var err error
	s.Name, err = readUTF8StringUint(r)
	if err != nil {
		return err
	}
	s.Data, err = ioutil.ReadAll(r)
	return err
}

func (s *SectionCustom) WritePayload(w io.Writer) error {
	if err := writeStringUint(w, s.Name); err != nil {
		return err
	}
	_, err := w.Write(s.Data)
	return err
}

var _ Section = (*SectionTypes)(nil)

// SectionTypes declares all function signatures that will be used in a module.
type SectionTypes struct {
	RawSection
	Entries []FunctionSig
}

func (*SectionTypes) SectionID() SectionID {
	return SectionIDType
}

func (s *SectionTypes) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[FunctionSig](r)
	return err
}

func (s *SectionTypes) WritePayload(w io.Writer) error {
	return writeVector[FunctionSig](w, s.Entries)
}

type InvalidExternalError uint8

func (e InvalidExternalError) Error() string {
	return fmt.Sprintf("wasm: invalid external_kind value %d", uint8(e))
}

var _ Section = (*SectionImports)(nil)

// SectionImports declares all imports that will be used in the module.
type SectionImports struct {
	RawSection
	Entries []ImportEntry
}

func (*SectionImports) SectionID() SectionID {
	return SectionIDImport
}

func (s *SectionImports) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[ImportEntry](r)
	return err
}

func (s *SectionImports) WritePayload(w io.Writer) error {
	return writeVector[ImportEntry](w, s.Entries)
}

func (i *ImportEntry) UnmarshalWASM(r io.Reader) error {
	var err error
	i.ModuleName, err = readUTF8StringUint(r)
	if err != nil {
		return err
	}
	i.FieldName, err = readUTF8StringUint(r)
	if err != nil {
		return err
	}
	var kind External
	if err := kind.UnmarshalWASM(r); err != nil {
		return err
	}

	switch kind {
	case ExternalFunction:
		var t uint32
		t, err = leb128.ReadVarUint32(r)
		i.Type = FuncImport{t}
	case ExternalTable:
		var table Table
		if err = table.UnmarshalWASM(r); err == nil {
			i.Type = TableImport{table}
		}
	case ExternalMemory:
		var mem Memory
		if err = mem.UnmarshalWASM(r); err == nil {
			i.Type = MemoryImport{mem}
		}
	case ExternalGlobal:
		var gl GlobalVar
		if err = gl.UnmarshalWASM(r); err == nil {
			i.Type = GlobalVarImport{gl}
		}
	default:
		return InvalidExternalError(kind)
	}

	return err
}

func (i ImportEntry) MarshalWASM(w io.Writer) error {
	if err := writeStringUint(w, i.ModuleName); err != nil {
		return err
	}
	if err := writeStringUint(w, i.FieldName); err != nil {
		return err
	}
	if err := i.Type.Kind().MarshalWASM(w); err != nil {
		return err
	}
	return i.Type.MarshalWASM(w)
}

// SectionFunctions declares the signature of all functions defined in the module (in the code section)
type SectionFunctions struct {
	RawSection
	// Types indexes into (SectionTypes).Entries, one entry per function
	// defined by the code section, in the same order.
	Types []uint32
}

func (*SectionFunctions) SectionID() SectionID {
	return SectionIDFunction
}

func (s *SectionFunctions) ReadPayload(r io.Reader) error {
	count, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	s.Types = make([]uint32, 0, getInitialCap(count))
	for i := uint32(0); i < count; i++ {
		t, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		s.Types = append(s.Types, t)
	}
	return nil
}

func (s *SectionFunctions) WritePayload(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, uint32(len(s.Types))); err != nil {
		return err
	}
	for _, t := range s.Types {
		if _, err := leb128.WriteVarUint32(w, t); err != nil {
			return err
		}
	}
	return nil
}

// SectionTables describes all tables declared by a module.
type SectionTables struct {
	RawSection
	Entries []Table
}

func (*SectionTables) SectionID() SectionID {
	return SectionIDTable
}

func (s *SectionTables) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[Table](r)
	return err
}

func (s *SectionTables) WritePayload(w io.Writer) error {
	return writeVector[Table](w, s.Entries)
}

// SectionMemories describes all linear memories used by a module.
type SectionMemories struct {
	RawSection
	Entries []Memory
}

func (*SectionMemories) SectionID() SectionID {
	return SectionIDMemory
}

func (s *SectionMemories) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[Memory](r)
	return err
}

func (s *SectionMemories) WritePayload(w io.Writer) error {
	return writeVector[Memory](w, s.Entries)
}

// SectionGlobals defines the value of all global variables declared in a module.
type SectionGlobals struct {
	RawSection
	Globals []GlobalEntry
}

func (*SectionGlobals) SectionID() SectionID {
	return SectionIDGlobal
}

func (s *SectionGlobals) ReadPayload(r io.Reader) (err error) {
	s.Globals, err = readVector[GlobalEntry](r)
	return err
}

func (s *SectionGlobals) WritePayload(w io.Writer) error {
	return writeVector[GlobalEntry](w, s.Globals)
}

// GlobalEntry declares a global variable.
type GlobalEntry struct {
	Type GlobalVar // Type holds information about the value type and mutability of the variable
	Init []byte    // Init is an initializer expression that computes the initial value of the variable
}

func (g *GlobalEntry) UnmarshalWASM(r io.Reader) error {
	if err := g.Type.UnmarshalWASM(r); err != nil {
		return err
	}

	// init_expr is delimited by opcode "end" (0x0b)
	var err error
	g.Init, err = readInitExpr(r)
	return err
}

func (g *GlobalEntry) MarshalWASM(w io.Writer) error {
	if err := g.Type.MarshalWASM(w); err != nil {
		return err
	}
	_, err := w.Write(g.Init)
	return err
}

// SectionExports declares the export section of a module
type SectionExports struct {
	RawSection
	Entries []ExportEntry
}

func (*SectionExports) SectionID() SectionID {
	return SectionIDExport
}

func (s *SectionExports) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[ExportEntry](r)
	return err
}

// WritePayload writes export entries sorted by (Index, FieldStr) rather
// than decode order, so that encoding the same module twice always
// produces the same bytes regardless of how its Entries slice was built.
func (s *SectionExports) WritePayload(w io.Writer) error {
	entries := append([]ExportEntry(nil), s.Entries...)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Index == entries[j].Index {
			return entries[i].FieldStr < entries[j].FieldStr
		}
		return entries[i].Index < entries[j].Index
	})
	return writeVector[ExportEntry](w, entries)
}

// ExportEntry represents an exported entry by the module
type ExportEntry struct {
	FieldStr string
	Kind     External
	Index    uint32
}

func (e *ExportEntry) UnmarshalWASM(r io.Reader) error {
	var err error
	e.FieldStr, err = readUTF8StringUint(r)
	if err != nil {
		return err
	}

	if err := e.Kind.UnmarshalWASM(r); err != nil {
		return err
	}

	e.Index, err = leb128.ReadVarUint32(r)
	return err
}

func (e *ExportEntry) MarshalWASM(w io.Writer) error {
	if err := writeStringUint(w, e.FieldStr); err != nil {
		return err
	}
	if err := e.Kind.MarshalWASM(w); err != nil {
		return err
	}
	_, err := leb128.WriteVarUint32(w, e.Index)
	return err
}

// SectionStartFunction represents the start function section.
type SectionStartFunction struct {
	RawSection
	Index uint32 // The index of the start function into the global index space.
}

func (*SectionStartFunction) SectionID() SectionID {
	return SectionIDStart
}

func (s *SectionStartFunction) ReadPayload(r io.Reader) error {
	var err error
	s.Index, err = leb128.ReadVarUint32(r)
	return err
}

func (s *SectionStartFunction) WritePayload(w io.Writer) error {
	_, err := leb128.WriteVarUint32(w, s.Index)
	return err
}

// SectionElements describes the initial contents of a table's elements.
type SectionElements struct {
	RawSection
	Entries []ElementSegment
}

func (*SectionElements) SectionID() SectionID {
	return SectionIDElement
}

func (s *SectionElements) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[ElementSegment](r)
	return err
}

func (s *SectionElements) WritePayload(w io.Writer) error {
	return writeVector[ElementSegment](w, s.Entries)
}

// ElementSegment describes a group of repeated elements that begin at a specified offset
type ElementSegment struct {
	Index  uint32 // The index into the global table space, should always be 0 in the MVP.
	Offset []byte // initializer expression for computing the offset for placing elements, should return an i32 value
	Elems  []uint32
}

func (s *ElementSegment) UnmarshalWASM(r io.Reader) error {
	var err error

	if s.Index, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if s.Offset, err = readInitExpr(r); err != nil {
		return err
	}

	numElems, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}
	s.Elems = make([]uint32, 0, getInitialCap(numElems))
	for i := uint32(0); i < numElems; i++ {
		e, err := leb128.ReadVarUint32(r)
		if err != nil {
			return err
		}
		s.Elems = append(s.Elems, e)
	}
	return nil
}

func (s *ElementSegment) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, s.Index); err != nil {
		return err
	}
	if _, err := w.Write(s.Offset); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(len(s.Elems))); err != nil {
		return err
	}
	for _, e := range s.Elems {
		if _, err := leb128.WriteVarUint32(w, e); err != nil {
			return err
		}
	}
	return nil
}

// SectionCode describes the body for every function declared inside a module.
type SectionCode struct {
	RawSection
	Bodies []FunctionBody
}

func (*SectionCode) SectionID() SectionID {
	return SectionIDCode
}

func (s *SectionCode) ReadPayload(r io.Reader) (err error) {
	s.Bodies, err = readVector[FunctionBody](r)
	return err
}

func (s *SectionCode) WritePayload(w io.Writer) error {
	return writeVector[FunctionBody](w, s.Bodies)
}

// FunctionBody is one function's locals declaration and encoded
// instruction stream. Module is wired up by sectionsReader right after
// the code section decodes, and lets bytecode later look up its own
// module's type/function/global index spaces without carrying them
// around separately.
type FunctionBody struct {
	Module *Module
	Locals []LocalEntry
	Code   []byte
}

func (f *FunctionBody) UnmarshalWASM(r io.Reader) error {
	bodySize, err := leb128.ReadVarUint32(r)
	if err != nil {
		return err
	}

	body, err := readBytes(r, bodySize)
	if err != nil {
		return err
	}
	bytesReader := bytes.NewBuffer(body)

	if f.Locals, err = readVector[LocalEntry](bytesReader); err != nil {
		return err
	}

	f.Code = bytesReader.Bytes()
	return nil
}

func (f *FunctionBody) MarshalWASM(w io.Writer) error {
	body := new(bytes.Buffer)
	if err := writeVector[LocalEntry](body, f.Locals); err != nil {
		return err
	}
	if _, err := body.Write(f.Code); err != nil {
		return err
	}
	return writeBytesUint(w, body.Bytes())
}

type LocalEntry struct {
	Count uint32    // The total number of local variables of the given Type used in the function body
	Type  ValueType // The type of value stored by the variable
}

func (l *LocalEntry) UnmarshalWASM(r io.Reader) error {
	var err error
	if l.Count, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	return l.Type.UnmarshalWASM(r)
}

func (l *LocalEntry) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, l.Count); err != nil {
		return err
	}
	return l.Type.MarshalWASM(w)
}

// SectionData describes the initial values of a module's linear memory
type SectionData struct {
	RawSection
	Entries []DataSegment
}

func (*SectionData) SectionID() SectionID {
	return SectionIDData
}

func (s *SectionData) ReadPayload(r io.Reader) (err error) {
	s.Entries, err = readVector[DataSegment](r)
	return err
}

func (s *SectionData) WritePayload(w io.Writer) error {
	return writeVector[DataSegment](w, s.Entries)
}

// DataSegment describes a group of repeated elements that begin at a specified offset in the linear memory
type DataSegment struct {
	Index  uint32 // The index into the global linear memory space, should always be 0 in the MVP.
	Offset []byte // initializer expression for computing the offset for placing elements, should return an i32 value
	Data   []byte
}

func (s *DataSegment) UnmarshalWASM(r io.Reader) error {
	var err error
	if s.Index, err = leb128.ReadVarUint32(r); err != nil {
		return err
	}
	if s.Offset, err = readInitExpr(r); err != nil {
		return err
	}
	s.Data, err = readBytesUint(r)
	return err
}

func (s *DataSegment) MarshalWASM(w io.Writer) error {
	if _, err := leb128.WriteVarUint32(w, s.Index); err != nil {
		return err
	}
	if _, err := w.Write(s.Offset); err != nil {
		return err
	}
	return writeBytesUint(w, s.Data)
}
