// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"errors"
	"fmt"

	"github.com/sassembla/wasmcore/wasm"
)

// ErrDataSegmentDoesNotFit is returned by Instantiate if a data segment attempts to write outside of
// its target memory's bounds.
var ErrDataSegmentDoesNotFit = errors.New("data segment does not fit")

// ErrElementSegmentDoesNotFit is returned by Instantiate if an element segment attempts to write outside
// of its target table's bounds.
var ErrElementSegmentDoesNotFit = errors.New("element segment does not fit")

// InvalidTableIndexError reports a reference, by a table export or an element/data entry, to a table or memory
// index other than 0 (the only index the MVP permits).
type InvalidTableIndexError uint32

func (e InvalidTableIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid table or memory index: %d", uint32(e))
}

// An ExportNotFoundError is returned by Instance.Get{Function,Table,Memory,Global} if the requested
// name does not refer to any export.
type ExportNotFoundError struct {
	ModuleName string
	FieldName  string
}

func (e *ExportNotFoundError) Error() string {
	return fmt.Sprintf("wasm: couldn't find export with name %s in module %s", e.FieldName, e.ModuleName)
}

// A KindMismatchError is returned by Instance.Get{Function,Table,Memory,Global} if the requested
// name refers to an export of a different kind.
type KindMismatchError struct {
	ModuleName string
	FieldName  string
	Import     wasm.External
	Export     wasm.External
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("wasm: mismatching import and export external kind values for %s.%s (%v, %v)", e.FieldName, e.ModuleName, e.Import, e.Export)
}

// NewKindMismatchError creates a new error that reports a mismatch between an import and export kind.
func NewKindMismatchError(exportingModuleName, exportName string, importKind, exportKind wasm.External) error {
	return &KindMismatchError{
		FieldName:  exportName,
		ModuleName: exportingModuleName,
		Import:     importKind,
		Export:     exportKind,
	}
}
