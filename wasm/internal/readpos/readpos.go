// Package readpos wraps an io.Reader with a running byte offset, so that
// section decoders can record where a section's payload began and ended
// within the overall module stream.
package readpos

import "io"

// ReadPos is an io.Reader that tracks how many bytes have been consumed.
type ReadPos struct {
	R      io.Reader
	CurPos int64
}

func (r *ReadPos) Read(p []byte) (int, error) {
	n, err := r.R.Read(p)
	r.CurPos += int64(n)
	return n, err
}

// ReadByte implements io.ByteReader so LEB128 decoding can pull one byte
// at a time without an intermediate buffered reader.
func (r *ReadPos) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}
