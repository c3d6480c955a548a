package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testDB(tb testing.TB) *DB {
	db, err := Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func search(id, prompt string) Search {
	return Search{ID: id, Prompt: prompt, Model: "haiku", Status: "success"}
}

func TestDB(t *testing.T) {
	const testid = "df31ae23-ab8b-45b5-843c-2f846c570997"

	t.Run("list-empty", func(t *testing.T) {
		db := testDB(t)
		require.Empty(t, db.List())
	})

	t.Run("save", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(search(testid, "lasagna")))

		s, err := db.Find("df31")
		require.NoError(t, err)
		require.Equal(t, testid, s.ID)
		require.Equal(t, "lasagna", s.Prompt)
		require.Equal(t, "haiku", s.Model)
		require.False(t, s.UpdatedAt.IsZero())
		require.Equal(t, "df31ae23", s.ShortID())

		require.Len(t, db.List(), 1)
	})

	t.Run("save no id", func(t *testing.T) {
		db := testDB(t)
		require.Error(t, db.Save(search("", "lasagna")))
	})

	t.Run("save no prompt", func(t *testing.T) {
		db := testDB(t)
		require.Error(t, db.Save(search(NewID(), " ")))
	})

	t.Run("update", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(search(testid, "lasagna")))
		time.Sleep(10 * time.Millisecond)
		updated := search(testid, "lasagna")
		updated.Status = "error_max_turns"
		require.NoError(t, db.Save(updated))

		s, err := db.Find("df31")
		require.NoError(t, err)
		require.Equal(t, "error_max_turns", s.Status)
		require.Len(t, db.List(), 1)
	})

	t.Run("find head multiple", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(search(testid, "lasagna")))
		time.Sleep(10 * time.Millisecond)
		next := NewID()
		require.NoError(t, db.Save(search(next, "banana bread")))

		head, err := db.FindHEAD()
		require.NoError(t, err)
		require.Equal(t, next, head.ID)
		require.Equal(t, "banana bread", head.Prompt)

		list := db.List()
		require.Len(t, list, 2)
		require.Equal(t, testid, list[1].ID)
	})

	t.Run("find head empty", func(t *testing.T) {
		db := testDB(t)
		_, err := db.FindHEAD()
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("find by prompt", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(search(NewID(), "lasagna")))
		require.NoError(t, db.Save(search(testid, "pad thai")))

		s, err := db.Find("pad thai")
		require.NoError(t, err)
		require.Equal(t, testid, s.ID)
	})

	t.Run("short prefix does not match ids", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(search(testid, "lasagna")))
		_, err := db.Find("df3")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("find match many", func(t *testing.T) {
		db := testDB(t)
		const testid2 = "df31ae23-9b75-45b5-841c-2f846c571000"
		require.NoError(t, db.Save(search(testid, "lasagna")))
		require.NoError(t, db.Save(search(testid2, "pad thai")))
		_, err := db.Find("df31ae")
		require.ErrorIs(t, err, ErrManyMatches)
	})

	t.Run("delete", func(t *testing.T) {
		db := testDB(t)

		require.NoError(t, db.Save(search(testid, "lasagna")))
		require.NoError(t, db.Delete(NewID()))
		require.Error(t, db.Delete(""))

		list := db.List()
		require.NotEmpty(t, list)
		for _, item := range list {
			require.NoError(t, db.Delete(item.ID))
		}
		require.Empty(t, db.List())
	})

	t.Run("older than", func(t *testing.T) {
		db := testDB(t)
		require.NoError(t, db.Save(search(testid, "lasagna")))
		require.Empty(t, db.ListOlderThan(time.Hour))
		require.Len(t, db.ListOlderThan(-time.Hour), 1)
	})

	t.Run("completions", func(t *testing.T) {
		db := testDB(t)

		const testid1 = "fc5012d8-c670-43ea-8a46-a3c05488a0e1"
		const prompt1 = "some soup"
		const testid2 = "6c33f716-94bf-41a1-8c84-4a96d1f62f15"
		const prompt2 = "focaccia"
		require.NoError(t, db.Save(search(testid1, prompt1)))
		require.NoError(t, db.Save(search(testid2, prompt2)))

		require.Equal(t, []string{
			fmt.Sprintf("%s\t%s", testid1[:ShortIDLen], prompt1),
			fmt.Sprintf("%s\t%s", prompt2, testid2[:ShortIDLen]),
		}, db.Completions("f"))

		require.Equal(t, []string{
			fmt.Sprintf("%s\t%s", testid1, prompt1),
		}, db.Completions(testid1[:8]))
	})

	t.Run("persists to jsonl index", func(t *testing.T) {
		dir := t.TempDir()

		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Save(search(testid, "lasagna")))
		require.NoError(t, db.Save(search(NewID(), "pad thai")))
		require.NoError(t, db.Delete(testid))
		require.NoError(t, db.Close())

		db2, err := Open(dir)
		require.NoError(t, err)
		t.Cleanup(func() {
			require.NoError(t, db2.Close())
		})

		_, err = db2.Find(testid[:8])
		require.ErrorIs(t, err, ErrNoMatches)
		s, err := db2.Find("pad thai")
		require.NoError(t, err)
		require.Equal(t, "haiku", s.Model)

		_, err = os.Stat(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
	})

	t.Run("compacts", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)
		for range compactMinOps {
			require.NoError(t, db.Save(search(testid, "lasagna")))
		}
		require.Equal(t, 1, db.ops)

		bts, err := os.ReadFile(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
		require.Len(t, strings.Split(strings.TrimSpace(string(bts)), "\n"), 1)
	})

	t.Run("rejects corrupt index", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte(`{"op":"explode"}`+"\n"), 0o600))
		_, err := Open(dir)
		require.ErrorContains(t, err, `invalid index event op: "explode"`)
	})
}

