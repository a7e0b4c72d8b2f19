// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm

import (
	"io"

	"github.com/sassembla/wasmcore/wasm/leb128"
)

// Import is the descriptor half of an ImportEntry: one of
// FuncImport/TableImport/MemoryImport/GlobalVarImport, tagged by Kind()
// so a consumer can recover which it has without a type switch on every
// call site, and marshalable since its encoding is just the payload of
// the entry's import-section record.
type Import interface {
	Kind() External
	Marshaler
	isImport()
}

// ImportEntry is one row of the import section: which module and field
// it names, and what kind of external it expects to find there.
type ImportEntry struct {
	ModuleName string
	FieldName  string

	// Type's concrete type is determined by Kind(): FuncImport for
	// ExternalFunction, TableImport for ExternalTable, and so on.
	Type Import
}

// FuncImport names the type-section index of the expected function's
// signature; the importer is responsible for checking that the value it
// supplies actually has that signature.
type FuncImport struct {
	Type uint32
}

func (FuncImport) isImport()      {}
func (FuncImport) Kind() External { return ExternalFunction }
func (f FuncImport) MarshalWASM(w io.Writer) error {
	_, err := leb128.WriteVarUint32(w, f.Type)
	return err
}

// TableImport, MemoryImport, and GlobalVarImport each just wrap the
// corresponding type descriptor; their MarshalWASM is a direct delegate
// since the import-section encoding of a table/memory/global import is
// byte-identical to its type's own encoding.

type TableImport struct {
	Type Table
}

func (TableImport) isImport()      {}
func (TableImport) Kind() External { return ExternalTable }
func (t TableImport) MarshalWASM(w io.Writer) error {
	return t.Type.MarshalWASM(w)
}

type MemoryImport struct {
	Type Memory
}

func (MemoryImport) isImport()      {}
func (MemoryImport) Kind() External { return ExternalMemory }
func (m MemoryImport) MarshalWASM(w io.Writer) error {
	return m.Type.MarshalWASM(w)
}

type GlobalVarImport struct {
	Type GlobalVar
}

func (GlobalVarImport) isImport()      {}
func (GlobalVarImport) Kind() External { return ExternalGlobal }
func (g GlobalVarImport) MarshalWASM(w io.Writer) error {
	return g.Type.MarshalWASM(w)
}
