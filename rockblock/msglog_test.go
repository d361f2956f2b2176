package rockblock_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuspaceflight/rockblock-ui/rockblock"
)

func TestMessageLogAppendsBothDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.log")
	ml, err := rockblock.OpenMessageLog(path)
	require.NoError(t, err)

	require.NoError(t, ml.Append(rockblock.Sent, "HELLO"))
	require.NoError(t, ml.Append(rockblock.Received, "WORLD"))
	require.NoError(t, ml.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "---> HELLO")
	assert.Contains(t, lines[1], "<--- WORLD")
}

func TestMessageLogAppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.log")
	ml, err := rockblock.OpenMessageLog(path)
	require.NoError(t, err)
	require.NoError(t, ml.Append(rockblock.Sent, "FIRST"))
	require.NoError(t, ml.Close())

	ml2, err := rockblock.OpenMessageLog(path)
	require.NoError(t, err)
	require.NoError(t, ml2.Append(rockblock.Sent, "SECOND"))
	require.NoError(t, ml2.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "FIRST")
	assert.Contains(t, string(contents), "SECOND")
}
