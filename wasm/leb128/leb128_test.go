// Copyright 2018 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leb128

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"
)

var casesUint = []struct {
	v uint32
	b []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{127, []byte{0x7f}},
	{128, []byte{0x80, 0x01}},
	{624485, []byte{0xe5, 0x8e, 0x26}},
	{math.MaxUint32, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
}

var casesInt = []struct {
	v int64
	b []byte
}{
	{0, []byte{0x00}},
	{1, []byte{0x01}},
	{-1, []byte{0x7f}},
	{63, []byte{0x3f}},
	{64, []byte{0xc0, 0x00}},
	{-64, []byte{0x40}},
	{-65, []byte{0xbf, 0x7f}},
	{-624485, []byte{0x9b, 0xf1, 0x59}},
	{math.MinInt32, []byte{0x80, 0x80, 0x80, 0x80, 0x78}},
	{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
}

func TestWriteVarUint32(t *testing.T) {
	for _, c := range casesUint {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			buf := new(bytes.Buffer)
			_, err := WriteVarUint32(buf, c.v)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), c.b) {
				t.Fatalf("unexpected output: %x", buf.Bytes())
			}
		})
	}
}

func TestWriteVarint64(t *testing.T) {
	for _, c := range casesInt {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			buf := new(bytes.Buffer)
			_, err := WriteVarint64(buf, c.v)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(buf.Bytes(), c.b) {
				t.Fatalf("unexpected output: %x", buf.Bytes())
			}
		})
	}
}

func TestReadVarUint32(t *testing.T) {
	for _, c := range casesUint {
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			v, err := ReadVarUint32(bytes.NewReader(c.b))
			if err != nil {
				t.Fatal(err)
			}
			if v != c.v {
				t.Fatalf("unexpected value: %v", v)
			}
		})
	}
}

func TestReadVarint32(t *testing.T) {
	for _, c := range casesInt {
		if c.v < math.MinInt32 || c.v > math.MaxInt32 {
			continue
		}
		t.Run(fmt.Sprint(c.v), func(t *testing.T) {
			buf := new(bytes.Buffer)
			if _, err := WriteVarint32(buf, int32(c.v)); err != nil {
				t.Fatal(err)
			}
			v, err := ReadVarint32(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			if v != int32(c.v) {
				t.Fatalf("unexpected value: %v", v)
			}
		})
	}
}

func TestReadVarUint32Overflow(t *testing.T) {
	// Six bytes is one more than a 32-bit value may occupy.
	if _, err := ReadVarUint32(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	// Five bytes, but the final byte carries bits beyond bit 31.
	if _, err := ReadVarUint32(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x1f})); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestReadVarint32Overflow(t *testing.T) {
	// Five bytes whose final byte is not a sign extension of bit 31.
	if _, err := ReadVarint32(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x0f})); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestWriteReadInt64(t *testing.T) {
	r := rand.New(rand.NewSource(time.Now().Unix()))

	var buf bytes.Buffer
	for i := 0; i < 100000; i++ {
		n := r.Int63()
		if i%2 == 1 {
			n = -n
		}

		buf.Reset()
		if _, err := WriteVarint64(&buf, n); err != nil {
			t.Fatalf("WriteVarint64: %v", err)
		}
		v, err := ReadVarint64(&buf)
		if err != nil {
			t.Fatalf("ReadVarint64: %v", err)
		}
		if v != n {
			t.Fatalf("round trip mismatch: wrote %v, read %v", n, v)
		}
	}
}

func TestWriteReadUint64(t *testing.T) {
	r := rand.New(rand.NewSource(time.Now().Unix()))

	var buf bytes.Buffer
	for i := 0; i < 100000; i++ {
		n := r.Uint64()

		buf.Reset()
		if _, err := WriteVarUint64(&buf, n); err != nil {
			t.Fatalf("WriteVarUint64: %v", err)
		}
		v, err := ReadVarUint64(&buf)
		if err != nil {
			t.Fatalf("ReadVarUint64: %v", err)
		}
		if v != n {
			t.Fatalf("round trip mismatch: wrote %v, read %v", n, v)
		}
	}
}
