// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"bytes"
	"errors"
	"io"

	"github.com/sassembla/wasmcore/wasm/internal/readpos"
)

// ErrInvalidMagic is returned by DecodeModule when the input doesn't
// start with the \0asm preamble.
var ErrInvalidMagic = errors.New("wasm: magic header not detected")

// ErrUnsupportedVersion is returned by DecodeModule for a preamble whose
// version word isn't the one this codec understands.
var ErrUnsupportedVersion = errors.New("wasm: unsupported binary version")

const (
	// Magic is the four-byte "\0asm" preamble every module starts with.
	Magic uint32 = 0x6d736100
	// Version is the only binary format version this codec reads or writes.
	Version uint32 = 0x1
)

// Module is a decoded or assembled WebAssembly module: the known
// sections as typed fields for direct access, plus Sections (the
// as-decoded section order, including interleaved customs) for a
// round-trip-faithful Encode.
type Module struct {
	Version  uint32
	Sections []Section

	Types    *SectionTypes
	Import   *SectionImports
	Function *SectionFunctions
	Table    *SectionTables
	Memory   *SectionMemories
	Global   *SectionGlobals
	Export   *SectionExports
	Start    *SectionStartFunction
	Elements *SectionElements
	Code     *SectionCode
	Data     *SectionData
	Customs  []*SectionCustom
}

// Custom returns the custom section with the given name, or nil if the
// module carries none by that name.
func (m *Module) Custom(name string) *SectionCustom {
	for _, s := range m.Customs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Names decodes and returns the module's "name" custom section, or
// MissingSectionError if it carries none.
func (m *Module) Names() (*NameSection, error) {
	s := m.Custom(CustomSectionName)
	if s == nil {
		return nil, MissingSectionError(0)
	}

	var names NameSection
	if err := names.UnmarshalWASM(bytes.NewReader(s.Data)); err != nil {
		return nil, err
	}
	return &names, nil
}

// NewModule returns an empty module with the Types, Import, Table,
// Memory, Global, Export, Start, Elements and Data sections
// pre-allocated (but empty); Function and Code stay nil. Most callers assembling a module field by
// field want this over the zero value, which leaves every section nil;
// note that encoding an unmodified NewModule() is not the same as
// encoding &Module{} — the former writes one empty section record per
// pre-allocated section, the latter writes none.
func NewModule() *Module {
	return &Module{
		Types:    &SectionTypes{},
		Import:   &SectionImports{},
		Table:    &SectionTables{},
		Memory:   &SectionMemories{},
		Global:   &SectionGlobals{},
		Export:   &SectionExports{},
		Start:    &SectionStartFunction{},
		Elements: &SectionElements{},
		Data:     &SectionData{},
	}
}

// DecodeModule reads a binary WASM module: the \0asm/version preamble,
// then the section stream (see readSections).
func DecodeModule(r io.Reader) (*Module, error) {
	reader := &readpos.ReadPos{R: r}

	magic, err := readU32(reader)
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}

	m := &Module{}
	if m.Version, err = readU32(reader); err != nil {
		return nil, err
	}
	if m.Version != Version {
		return nil, ErrUnsupportedVersion
	}

	if err := newSectionsReader(m).readSections(reader); err != nil {
		return nil, err
	}
	return m, nil
}
