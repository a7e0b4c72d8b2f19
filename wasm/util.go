package wasm

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"log"
)

// logger is the package's trace logger; it is silent by default and can
// be redirected with SetLogOutput. No code in this package currently
// writes to it.
var logger = log.New(ioutil.Discard, "wasm: ", 0)

// SetLogOutput redirects the package's internal trace logger.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// getInitialCap bounds how eagerly a count-prefixed vector preallocates;
// large declared counts from a malformed or hostile input should not
// translate into an unbounded allocation before anything has been read.
func getInitialCap(count uint32) uint32 {
	const max = 1 << 16
	if count > max {
		return max
	}
	return count
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}
