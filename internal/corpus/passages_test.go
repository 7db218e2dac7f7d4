package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	text := "header to ignore\n--- Chunk 1\nRice needs nitrogen.\n\n--- Chunk 2\nCorn needs water.\n"

	passages := Split(text)

	require.Len(t, passages, 2)
	assert.Equal(t, "--- Chunk 1\nRice needs nitrogen.", passages[0])
	assert.Equal(t, "--- Chunk 2\nCorn needs water.", passages[1])
}

func TestSplitSkipsEmptySegments(t *testing.T) {
	text := "--- Chunk 1\nFirst.\n--- Chunk\n   \n--- Chunk 2\nSecond."

	passages := Split(text)

	require.Len(t, passages, 2)
	assert.Equal(t, "--- Chunk 1\nFirst.", passages[0])
	assert.Equal(t, "--- Chunk 2\nSecond.", passages[1])
}

func TestSplitNoDelimiter(t *testing.T) {
	assert.Empty(t, Split("just some text with no chunk markers"))
	assert.Empty(t, Split(""))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.txt")
	content := "--- Chunk 1\nស្រូវត្រូវការជីអាសូត។\n\n--- Chunk 2\nពោតត្រូវការទឹក។"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	passages, err := Load(path)

	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Contains(t, passages[0], "ស្រូវត្រូវការជីអាសូត។")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	assert.Error(t, err)
}
