package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWordMap() map[string]int {
	return map[string]int{
		"<pad>":   0,
		"<start>": 1,
		"<end>":   2,
		"<unk>":   3,
		"a":       4,
		"cat":     5,
	}
}

func TestNewValidWordMap(t *testing.T) {
	v, err := New(testWordMap())
	require.NoError(t, err)

	assert.Equal(t, 6, v.Size())
	assert.Equal(t, 0, v.Pad())
	assert.Equal(t, 1, v.Start())
	assert.Equal(t, 2, v.End())

	idx, ok := v.Index("cat")
	require.True(t, ok)
	assert.Equal(t, 5, idx)

	word, ok := v.Word(5)
	require.True(t, ok)
	assert.Equal(t, "cat", word)
}

func TestNewRejectsNonInjective(t *testing.T) {
	wm := testWordMap()
	wm["dog"] = 5
	_, err := New(wm)
	require.Error(t, err)
}

func TestNewRejectsMissingSpecials(t *testing.T) {
	wm := testWordMap()
	delete(wm, "<start>")
	_, err := New(wm)
	require.Error(t, err)
}

func TestUnknownWordFallsBackToUnk(t *testing.T) {
	v, err := New(testWordMap())
	require.NoError(t, err)

	idx, ok := v.Index("zebra")
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestEncodeFramesWithMarkers(t *testing.T) {
	v, err := New(testWordMap())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4, 5, 2}, v.Encode([]string{"a", "cat"}))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wordmap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"<pad>":0,"<start>":1,"<end>":2,"cat":3}`), 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Size())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWordTokenizer(t *testing.T) {
	words, err := WordTokenizer{}.Tokenize("A  Cat sat")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "cat", "sat"}, words)
}
