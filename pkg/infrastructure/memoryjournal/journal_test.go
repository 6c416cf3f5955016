package memoryjournal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greybell/butler/pkg/domain"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalAddAndRecent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Add(domain.MemoryRecord{
		Scope:   "butler",
		Kind:    "automation",
		Content: "first entry",
		Tags:    []string{"test", "smoke"},
	}))
	require.NoError(t, j.Add(domain.MemoryRecord{
		Scope:   "butler",
		Kind:    "automation",
		Content: "second entry",
	}))

	records, err := j.Recent("butler", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "second entry", records[0].Content)
	assert.Equal(t, "first entry", records[1].Content)
	assert.Equal(t, []string{"test", "smoke"}, records[1].Tags)
	assert.Nil(t, records[0].Tags)
}

func TestJournalRecentFiltersByScope(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Add(domain.MemoryRecord{Scope: "butler", Kind: "automation", Content: "a"}))
	require.NoError(t, j.Add(domain.MemoryRecord{Scope: "user", Kind: "note", Content: "b"}))

	records, err := j.Recent("user", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Content)

	all, err := j.Recent("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestJournalRecentLimit(t *testing.T) {
	j := openTestJournal(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Add(domain.MemoryRecord{Scope: "butler", Kind: "automation", Content: "entry"}))
	}

	records, err := j.Recent("butler", 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Add(domain.MemoryRecord{Scope: "butler", Kind: "automation", Content: "durable"}))
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.Recent("butler", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "durable", records[0].Content)
}
