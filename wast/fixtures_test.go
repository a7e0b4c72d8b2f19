package wast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withSpecFixtures runs fn once per .wast fixture, as a subtest named
// after the file.
func withSpecFixtures(t *testing.T, fn func(t *testing.T, f *os.File)) {
	specDir := filepath.Join("..", "internal", "testdata", "spec")

	entries, err := os.ReadDir(specDir)
	require.NoError(t, err)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wast" {
			continue
		}

		t.Run(entry.Name(), func(t *testing.T) {
			f, err := os.Open(filepath.Join(specDir, entry.Name()))
			require.NoError(t, err)
			defer f.Close()

			fn(t, f)
		})
	}
}

func TestScanner(t *testing.T) {
	withSpecFixtures(t, func(t *testing.T, f *os.File) {
		s := NewScanner(f)

		tok, err := s.Scan()
		require.NoError(t, err)
		for tok.Kind != EOF {
			tok, err = s.Scan()
			require.NoError(t, err)
		}
	})
}

func TestParser(t *testing.T) {
	withSpecFixtures(t, func(t *testing.T, f *os.File) {
		_, err := ParseScript(NewScanner(f))
		assert.NoError(t, err)
	})
}

// TestDecoder assembles every module command in every fixture.
func TestDecoder(t *testing.T) {
	withSpecFixtures(t, func(t *testing.T, f *os.File) {
		s, err := ParseScript(NewScanner(f))
		require.NoError(t, err)

		for _, cmd := range s.Commands {
			module, ok := cmd.(*Module)
			if !ok {
				continue
			}

			_, err = module.Decode()
			assert.NoError(t, err)
		}
	})
}
