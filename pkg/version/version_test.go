package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVersions(t *testing.T) {
	assert.Equal(t, "0.2.0-dev", APIVersion())
	assert.Equal(t, "go-arrow", Implementation())
	assert.Equal(t, "arrow-go", StorageEngine())
}

func TestImplementationVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v1.2.3"
	assert.Equal(t, "v1.2.3", ImplementationVersion())

	Version = ""
	assert.NotEmpty(t, ImplementationVersion())
}

func TestShow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Show(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "arraystore"))
	assert.Contains(t, lines[1], "0.2.0-dev")
	assert.Contains(t, lines[3], "arrow-go")
	assert.Contains(t, lines[4], runtime.Version())
}
