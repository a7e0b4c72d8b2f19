// Copyright 2020 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wasm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sassembla/wasmcore/wasm"
)

func TestNameSectionRoundTrip(t *testing.T) {
	names := wasm.NameSection{
		Entries: []wasm.NameSubsection{
			&wasm.ModuleNameSubsection{Name: "fixture"},
			&wasm.FunctionNamesSubsection{Names: []wasm.Naming{
				{Index: 0, Name: "main"},
				{Index: 1, Name: "helper"},
			}},
			&wasm.LocalNamesSubsection{Funcs: []wasm.LocalNames{
				{Index: 0, Names: []wasm.Naming{{Index: 0, Name: "n"}}},
			}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, names.MarshalWASM(&buf))

	var decoded wasm.NameSection
	require.NoError(t, decoded.UnmarshalWASM(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, names, decoded)

	var reencoded bytes.Buffer
	require.NoError(t, decoded.MarshalWASM(&reencoded))
	assert.Equal(t, buf.Bytes(), reencoded.Bytes())
}

func TestModuleCustomSectionLookup(t *testing.T) {
	var names wasm.NameSection
	names.Entries = []wasm.NameSubsection{&wasm.ModuleNameSubsection{Name: "fixture"}}

	var payload bytes.Buffer
	require.NoError(t, names.MarshalWASM(&payload))

	m := wasm.NewModule()
	m.Customs = []*wasm.SectionCustom{{Name: wasm.CustomSectionName, Data: payload.Bytes()}}

	sec := m.Custom(wasm.CustomSectionName)
	require.NotNil(t, sec)

	decoded, err := m.Names()
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	mod, ok := decoded.Entries[0].(*wasm.ModuleNameSubsection)
	require.True(t, ok)
	assert.Equal(t, "fixture", mod.Name)

	assert.Nil(t, m.Custom("nonexistent"))
}

func TestEncodeDecodeEmptyModule(t *testing.T) {
	m := &wasm.Module{}

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))

	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	assert.Equal(t, want, buf.Bytes())

	decoded, err := wasm.DecodeModule(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	var reencoded bytes.Buffer
	require.NoError(t, decoded.Encode(&reencoded))
	assert.Equal(t, buf.Bytes(), reencoded.Bytes())
}

func TestResizableLimitsRoundTrip(t *testing.T) {
	for _, l := range []wasm.ResizableLimits{
		{Flags: 0, Initial: 1},
		{Flags: 1, Initial: 1, Maximum: 2},
	} {
		var buf bytes.Buffer
		require.NoError(t, l.MarshalWASM(&buf))

		var decoded wasm.ResizableLimits
		require.NoError(t, decoded.UnmarshalWASM(bytes.NewReader(buf.Bytes())))
		assert.Equal(t, l, decoded)
	}
}

func TestResizableLimitsRejectsMaxBelowInitial(t *testing.T) {
	bad := wasm.ResizableLimits{Flags: 1, Initial: 10, Maximum: 5}

	var buf bytes.Buffer
	require.NoError(t, bad.MarshalWASM(&buf))

	var decoded wasm.ResizableLimits
	assert.Error(t, decoded.UnmarshalWASM(bytes.NewReader(buf.Bytes())))
}
