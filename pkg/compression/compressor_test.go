package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	original := bytes.Repeat([]byte("ARROW1 fragment body with repetitive content content content. "), 64)

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(alg), func(t *testing.T) {
				comp, err := NewCompressor(&Config{Algorithm: alg, Level: level})
				require.NoError(t, err)
				assert.Equal(t, alg, comp.Algorithm())

				compressed, err := comp.Compress(original)
				require.NoError(t, err)
				if alg != None {
					assert.Less(t, len(compressed), len(original))
				}

				decompressed, err := comp.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, decompressed)
			})
		}
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	a, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
}

func TestExtensions(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2} {
		name, got := FromExtension("00000001-x.arrow" + Extension(alg))
		assert.Equal(t, "00000001-x.arrow", name)
		assert.Equal(t, alg, got)
	}
}

func TestDefaultConfig(t *testing.T) {
	comp, err := NewCompressor(nil)
	require.NoError(t, err)
	assert.Equal(t, Zstd, comp.Algorithm())
	assert.Equal(t, Default, comp.Level())
}
