// Copyright 2018 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file implements WriteTo, the inverse of ParseModule: it renders
// a decoded wasm.Module back out as WebAssembly text, section by
// section, re-decoding each function body through wasm/code to recover
// instruction boundaries and pretty-print them with resolved names,
// block labels, and fold-free indentation.
package wast

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/sassembla/wasmcore/wasm"
	"github.com/sassembla/wasmcore/wasm/code"
)

const tab = `  `

// WriteTo writes a WASM module in a text representation.
func WriteTo(w io.Writer, m *wasm.Module) error {
	wr, err := newWriter(w, m)
	if err != nil {
		return err
	}
	return wr.writeModule()
}

type writer struct {
	bw *bufio.Writer
	m  *wasm.Module

	// scope re-resolves bodies through wasm/code while printing.
	scope *code.ModuleScope

	fnames map[uint32]string
	lnames map[uint32]map[uint32]string

	funcOff int
}

func newWriter(w io.Writer, m *wasm.Module) (*writer, error) {
	wr := &writer{bw: bufio.NewWriter(w), m: m, scope: code.NewModuleScope(m)}
	wr.collectNames()
	return wr, nil
}

// collectNames indexes the module's "name" custom section, if any, so
// function and local references can print as $names.
func (w *writer) collectNames() {
	names, err := w.m.Names()
	if err != nil {
		return
	}

	w.fnames, w.lnames = map[uint32]string{}, map[uint32]map[uint32]string{}
	for _, subsection := range names.Entries {
		switch subsection := subsection.(type) {
		case *wasm.FunctionNamesSubsection:
			for _, name := range subsection.Names {
				w.fnames[name.Index] = name.Name
			}
		case *wasm.LocalNamesSubsection:
			for _, func_ := range subsection.Funcs {
				m := map[uint32]string{}
				for _, name := range func_.Names {
					m[name.Index] = name.Name
				}
				w.lnames[func_.Index] = m
			}
		}
	}
}

func (w *writer) writeModule() (err error) {
	defer func() {
		if x := recover(); x != nil {
			if e, ok := x.(error); ok {
				err = e
				return
			}
			panic(x)
		}
	}()
	defer func() {
		err = w.bw.Flush()
	}()

	w.WriteString("(module")

	w.writeTypes()
	w.writeImports()
	w.writeFunctions()
	w.writeGlobals()
	w.writeTables()
	w.writeMemory()
	w.writeExports()
	w.writeElements()
	w.writeData()

	w.WriteString(")\n")
	return nil
}

func (w *writer) writeTypes() {
	if w.m.Types == nil {
		return
	}
	w.WriteString("\n")
	for i, t := range w.m.Types.Entries {
		if i != 0 {
			w.WriteString("\n")
		}
		w.Print(tab+"(type (;%d;) (func", i)
		w.writeFuncType(t)
		w.WriteString("))")
	}
}

func (w *writer) writeFuncType(t wasm.FunctionSig) {
	w.writeValueTypes("param", t.ParamTypes)
	w.writeValueTypes("result", t.ReturnTypes)
}

func (w *writer) writeValueTypes(keyword string, types []wasm.ValueType) {
	if len(types) == 0 {
		return
	}
	w.Print(" (%s", keyword)
	for _, t := range types {
		w.WriteString(" ")
		w.WriteString(t.String())
	}
	w.WriteString(")")
}

func (w *writer) writeImports() {
	w.funcOff = 0
	if w.m.Import == nil {
		return
	}
	w.WriteString("\n")
	for i, e := range w.m.Import.Entries {
		if i != 0 {
			w.WriteString("\n")
		}
		w.WriteString(tab + "(import ")
		w.Print("%q %q ", e.ModuleName, e.FieldName)
		switch im := e.Type.(type) {
		case wasm.FuncImport:
			w.Print("(func (;%d;) (type %d))", w.funcOff, im.Type)
			if w.fnames == nil {
				w.fnames = map[uint32]string{}
			}
			w.fnames[uint32(w.funcOff)] = e.ModuleName + "." + e.FieldName

			w.funcOff++
		case wasm.TableImport:
			// TODO
		case wasm.MemoryImport:
			// TODO
		case wasm.GlobalVarImport:
			// TODO
		}
		w.WriteString(")")
	}
}

func (w *writer) writeFunctions() {
	if w.m.Function == nil {
		return
	}
	w.WriteString("\n")
	for i, t := range w.m.Function.Types {
		if i != 0 {
			w.WriteString("\n")
		}
		ind := w.funcOff + i
		w.WriteString(tab + "(func")
		if name, ok := w.fnames[uint32(ind)]; ok {
			w.WriteString(" $" + name)
		}
		w.Print(" (;%d;) (type %d)", ind, int(t))
		var sig wasm.FunctionSig
		if int(t) < len(w.m.Types.Entries) {
			sig = w.m.Types.Entries[t]
			w.writeFuncType(sig)
		}
		if w.m.Code != nil && i < len(w.m.Code.Bodies) {
			w.writeFunctionBody(uint32(ind), sig, w.m.Code.Bodies[i])
		}
		w.WriteString(")")
	}
}

// writeFunctionBody prints a body's local declarations and code,
// installing the body's local index space into the scope for the
// re-decode.
func (w *writer) writeFunctionBody(ind uint32, sig wasm.FunctionSig, b wasm.FunctionBody) {
	w.scope.SetLocals(sig, b)

	if len(b.Locals) > 0 {
		w.WriteString("\n" + tab + tab + "(local")

		names := w.lnames[ind]

		idx := uint32(0)
		for _, l := range b.Locals {
			for i := 0; i < int(l.Count); i++ {
				if name, ok := names[idx]; ok {
					w.WriteString(" $" + name)
				}
				w.WriteString(" ")
				w.WriteString(l.Type.String())

				idx++
			}
		}

		w.WriteString(")")
	}
	w.writeCode(b.Code, false, sig.ReturnTypes)
}

func (w *writer) writeGlobals() {
	if w.m.Global == nil {
		return
	}
	for i, e := range w.m.Global.Globals {
		w.WriteString("\n")
		w.Print(tab+"(global (;%d;)", i)
		if e.Type.Mutable {
			w.Print(" (mut %v)", e.Type.Type)
		} else {
			w.Print(" %v", e.Type.Type)
		}
		w.WriteString(" (")
		w.writeCode(e.Init, true, []wasm.ValueType{e.Type.Type})
		w.WriteString("))")
	}
}

func (w *writer) writeTables() {
	if w.m.Table == nil {
		return
	}
	w.WriteString("\n")
	for i, t := range w.m.Table.Entries {
		w.Print(tab+"(table (;%d;) %d %d ", i, t.Limits.Initial, t.Limits.Maximum)
		if t.ElementType == wasm.ElemTypeAnyFunc {
			w.WriteString("anyfunc")
		}
		w.WriteString(")")
	}
}

func (w *writer) writeMemory() {
	if w.m.Memory == nil {
		return
	}
	w.WriteString("\n")
	for i, e := range w.m.Memory.Entries {
		w.Print(tab+"(memory (;%d;) %d", i, e.Limits.Initial)
		if e.Limits.HasMax() {
			w.Print(" %d", e.Limits.Maximum)
		}
		w.WriteString(")")
	}
}

// exportKindKeywords maps each External kind to the keyword the text format
// uses inside an (export "name" (kind ...)) form.
var exportKindKeywords = map[wasm.External]string{
	wasm.ExternalFunction: "func",
	wasm.ExternalMemory:   "memory",
	wasm.ExternalTable:    "table",
	wasm.ExternalGlobal:   "global",
}

func (w *writer) writeExports() {
	if w.m.Export == nil {
		return
	}
	w.WriteString("\n")
	for i, e := range w.m.Export.Entries {
		if i != 0 {
			w.WriteString("\n")
		}
		w.Print(tab+"(export %q (%s %d))", e.FieldStr, exportKindKeywords[e.Kind], e.Index)
	}
}

func (w *writer) writeElements() {
	if w.m.Elements == nil {
		return
	}
	for _, d := range w.m.Elements.Entries {
		w.WriteString("\n")
		w.WriteString(tab + "(elem")
		if d.Index != 0 {
			w.Print(" %d", d.Index)
		}
		w.WriteString(" (")
		w.writeCode(d.Offset, true, []wasm.ValueType{wasm.ValueTypeI32})
		w.WriteString(")")
		for _, v := range d.Elems {
			w.Print(" %d", v)
		}
		w.WriteString(")")
	}
}

func (w *writer) writeData() {
	if w.m.Data == nil {
		return
	}
	for _, d := range w.m.Data.Entries {
		w.WriteString("\n")
		w.WriteString(tab + "(data")
		if d.Index != 0 {
			w.Print(" %d", d.Index)
		}
		w.WriteString(" (")
		w.writeCode(d.Offset, true, []wasm.ValueType{wasm.ValueTypeI32})
		w.Print(") %s)", quoteData(d.Data))
	}
}

func (w *writer) WriteString(s string) {
	if _, err := w.bw.WriteString(s); err != nil {
		panic(err)
	}
}

func (w *writer) Print(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(w.bw, format, args...); err != nil {
		panic(err)
	}
}

func quoteData(p []byte) string {
	buf := new(bytes.Buffer)
	buf.WriteRune('"')
	for _, b := range p {
		if strconv.IsGraphic(rune(b)) && b < 0xa0 && b != '"' && b != '\\' {
			buf.WriteByte(b)
		} else {
			s := strconv.FormatInt(int64(b), 16)
			if len(s) == 1 {
				s = "0" + s
			}
			buf.WriteString(`\` + s)
		}
	}
	buf.WriteRune('"')
	return buf.String()
}

// blockResultTypeNames maps the four single-value block types to their
// textual (result ...) spelling; a multi-value block type falls back to its
// numeric type index in the caller.
var blockResultTypeNames = map[uint64]string{
	code.BlockTypeI32: "i32",
	code.BlockTypeI64: "i64",
	code.BlockTypeF32: "f32",
	code.BlockTypeF64: "f64",
}

// naturalAlignLog2 gives the log2 natural alignment (in bytes) for every
// load/store opcode, so codeWriter can omit "align=" when a memarg already
// matches what the opcode would use with no explicit alignment given.
var naturalAlignLog2 = map[byte]int{
	code.OpI64Load: 3, code.OpI64Store: 3,
	code.OpF64Load: 3, code.OpF64Store: 3,
	code.OpI32Load: 2, code.OpI64Load32S: 2, code.OpI64Load32U: 2,
	code.OpI32Store: 2, code.OpI64Store32: 2,
	code.OpF32Load: 2, code.OpF32Store: 2,
	code.OpI32Load16U: 1, code.OpI32Load16S: 1, code.OpI64Load16U: 1, code.OpI64Load16S: 1,
	code.OpI32Store16: 1, code.OpI64Store16: 1,
	code.OpI32Load8U: 0, code.OpI32Load8S: 0, code.OpI64Load8U: 0, code.OpI64Load8S: 0,
	code.OpI32Store8: 0, code.OpI64Store8: 0,
}

// codeWriter tracks the indentation and block depth of one body being
// printed.
type codeWriter struct {
	*writer

	isInit bool
	tabs   int
	block  int
}

// writeCode decodes a function body (or an init expression, when isInit
// is true) and writes it back out as a flat, indented sequence of
// text-format instructions, the way a disassembler would.
func (w *writer) writeCode(bytecode []byte, isInit bool, out []wasm.ValueType) {
	body, err := code.Decode(bytecode, w.scope, out)
	if err != nil {
		panic(err)
	}
	instrs := body.Instructions

	cw := codeWriter{writer: w, isInit: isInit, tabs: 2}
	for i, ins := range instrs {
		if i == len(instrs)-1 && ins.Opcode == code.OpEnd {
			break
		}
		cw.writeInstruction(i, &ins)
	}
}

func (cw *codeWriter) writeInstruction(i int, ins *code.Instruction) {
	if !cw.isInit {
		cw.WriteString("\n")
	}
	switch ins.Opcode {
	case code.OpEnd, code.OpElse:
		cw.tabs--
		cw.block--
	}
	if cw.isInit {
		if i > 0 {
			cw.WriteString(" ")
		}
	} else {
		for i := 0; i < cw.tabs; i++ {
			cw.WriteString(tab)
		}
	}
	cw.WriteString(ins.OpString())
	cw.writeOperands(ins)
}

// writeOperands renders the per-opcode operand text following the
// mnemonic.
func (cw *codeWriter) writeOperands(ins *code.Instruction) {
	switch ins.Opcode {
	case code.OpElse:
		cw.tabs++
		cw.block++

	case code.OpBlock, code.OpLoop, code.OpIf:
		cw.tabs++
		cw.block++
		cw.writeBlockHeader(ins)

	case code.OpI32Const, code.OpI64Const:
		cw.WriteString(" " + strconv.FormatInt(ins.I64(), 10))
	case code.OpF32Const:
		cw.WriteString(" " + formatFloat32(ins.F32()))
	case code.OpF64Const:
		cw.WriteString(" " + formatFloat64(ins.F64()))

	case code.OpBrIf, code.OpBr:
		cw.writeLabel(ins.Labelidx())
	case code.OpBrTable:
		for _, l := range ins.Labels {
			cw.writeLabel(l)
		}
		cw.writeLabel(ins.Default())

	case code.OpCall:
		funcidx := ins.Funcidx()
		if name, ok := cw.fnames[funcidx]; ok {
			cw.WriteString(" $")
			cw.WriteString(name)
		} else {
			cw.Print(" %v", funcidx)
		}
	case code.OpCallIndirect:
		cw.Print(" (type %d)", ins.Typeidx())

	case code.OpLocalGet, code.OpLocalSet, code.OpLocalTee, code.OpGlobalGet, code.OpGlobalSet:
		cw.Print(" %v", ins.Immediate)

	default:
		if _, ok := naturalAlignLog2[ins.Opcode]; ok {
			cw.writeMemarg(ins)
		}
	}
}

func (cw *codeWriter) writeBlockHeader(ins *code.Instruction) {
	bt := ins.Immediate & code.BlockTypeMask
	if bt != code.BlockTypeEmpty {
		cw.WriteString(" (result ")
		if name, ok := blockResultTypeNames[bt]; ok {
			cw.WriteString(name)
		} else {
			cw.WriteString(strconv.FormatUint(uint64(ins.Typeidx()), 10))
		}
		cw.WriteString(")")
	}
	cw.Print("  ;; label = @%d", cw.block)
}

func (cw *codeWriter) writeLabel(depth int) {
	cw.Print(" %d (;@%d;)", depth, cw.block-depth)
}

func (cw *codeWriter) writeMemarg(ins *code.Instruction) {
	offset, align := ins.Memarg()
	natural := naturalAlignLog2[ins.Opcode]
	if offset != 0 {
		cw.Print(" offset=%d", offset)
	}
	if int(align) != natural {
		cw.Print(" align=%d", 1<<align)
	}
}

func formatFloat32(v float32) string {
	s := ""
	if v == float32(int32(v)) {
		s = strconv.FormatInt(int64(v), 10)
	} else {
		s = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return fmt.Sprintf("%#0x (;=%s;)", math.Float32bits(v), s)
}

func formatFloat64(v float64) string {
	// TODO: https://github.com/WebAssembly/wabt/blob/master/src/literal.cc (FloatWriter<T>::WriteHex)
	s := ""
	if v == float64(int64(v)) {
		s = strconv.FormatInt(int64(v), 10)
	} else {
		s = strconv.FormatFloat(float64(v), 'g', -1, 64)
	}
	return fmt.Sprintf("%#0x (;=%v;)", math.Float64bits(v), s)
}
