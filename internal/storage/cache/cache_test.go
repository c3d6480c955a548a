package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type entry struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	c, err := New[[]entry](dir, TranscriptCache)
	require.NoError(t, err)

	const id = "6c33f716-94bf-41a1-8c84-4a96d1f62f15"
	want := []entry{{Type: "text", Text: "# Focaccia"}, {Type: "done"}}
	require.NoError(t, c.Write(id, want))

	_, err = os.Stat(filepath.Join(dir, "transcripts", "6c", id+".json"))
	require.NoError(t, err)

	got, err := c.Read(id)
	require.NoError(t, err)
	require.Equal(t, want, got)

	require.NoError(t, c.Delete(id))
	_, err = c.Read(id)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Error(t, c.Delete(id))
}

func TestCacheShortID(t *testing.T) {
	dir := t.TempDir()
	c, err := New[string](dir, TranscriptCache)
	require.NoError(t, err)
	require.NoError(t, c.Write("x", "pad thai"))
	_, err = os.Stat(filepath.Join(dir, "transcripts", "x.json"))
	require.NoError(t, err)
}

func TestCacheInvalidID(t *testing.T) {
	c, err := New[string](t.TempDir(), TranscriptCache)
	require.NoError(t, err)
	for _, id := range []string{"", "..", "../escape", "a/b"} {
		require.ErrorIs(t, c.Write(id, "x"), errInvalidID, id)
		_, err := c.Read(id)
		require.ErrorIs(t, err, errInvalidID, id)
		require.ErrorIs(t, c.Delete(id), errInvalidID, id)
	}
}
