package wasm

import (
	"bytes"
	"io"

	"github.com/sassembla/wasmcore/wasm/leb128"
)

// Encode writes m in the WASM MVP binary format: the preamble followed by
// its sections in spec order. If m.Sections was populated by DecodeModule,
// that decode-order slice is used directly (preserving interleaved custom
// sections exactly as read). Otherwise — a module built directly from its
// typed fields, as the text assembler does — Encode synthesizes the
// section list in canonical order from whichever typed fields are set.
func (m *Module) Encode(w io.Writer) error {
	if err := writeU32(w, Magic); err != nil {
		return err
	}
	if err := writeU32(w, Version); err != nil {
		return err
	}
	for _, s := range m.sectionsInOrder() {
		if err := writeSection(w, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) sectionsInOrder() []Section {
	if len(m.Sections) > 0 {
		return m.Sections
	}

	var sections []Section
	for _, c := range m.Customs {
		sections = append(sections, c)
	}
	if m.Types != nil {
		sections = append(sections, m.Types)
	}
	if m.Import != nil {
		sections = append(sections, m.Import)
	}
	if m.Function != nil {
		sections = append(sections, m.Function)
	}
	if m.Table != nil {
		sections = append(sections, m.Table)
	}
	if m.Memory != nil {
		sections = append(sections, m.Memory)
	}
	if m.Global != nil {
		sections = append(sections, m.Global)
	}
	if m.Export != nil {
		sections = append(sections, m.Export)
	}
	if m.Start != nil {
		sections = append(sections, m.Start)
	}
	if m.Elements != nil {
		sections = append(sections, m.Elements)
	}
	if m.Code != nil {
		sections = append(sections, m.Code)
	}
	if m.Data != nil {
		sections = append(sections, m.Data)
	}
	return sections
}

func writeSection(w io.Writer, s Section) error {
	var payload bytes.Buffer
	if err := s.WritePayload(&payload); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint7(w, uint8(s.SectionID())); err != nil {
		return err
	}
	if _, err := leb128.WriteVarUint32(w, uint32(payload.Len())); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}
