package vault

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *FS) {
	t.Helper()
	store, err := NewFS(t.TempDir())
	require.NoError(t, err)
	repo, err := NewRepository(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return repo, store
}

func TestFilenameRoundTrip(t *testing.T) {
	name := Filename("Weekly 1-1 with Alex", "abc123")
	assert.Equal(t, "Weekly 1-1 with Alex ~abc123.md", name)
	assert.Equal(t, "abc123", IDFromName(name))
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "Plan- Q1-Q2 -draft-", SanitizeTitle("Plan: Q1/Q2 [draft]"))
	// The delimiter itself must never survive in a title.
	assert.Equal(t, "a-b", SanitizeTitle("a~b"))
}

func TestIDFromNameUsesLastDelimiter(t *testing.T) {
	assert.Equal(t, "id2", IDFromName("odd -title ~id2.md"))
	assert.Equal(t, "", IDFromName("no id here.md"))
}

func TestCreateOrUpdateCreatesNewNote(t *testing.T) {
	repo, store := newTestRepo(t)

	p, created, err := repo.CreateOrUpdate("abc123", "Meetings/O3s", "Weekly 1-1 with Alex", func(existing string) string {
		require.Empty(t, existing)
		return "---\ntitle: Weekly 1-1 with Alex\n---\n"
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Meetings/O3s/Weekly 1-1 with Alex ~abc123.md", p)

	text, err := store.Read(p)
	require.NoError(t, err)
	assert.Contains(t, text, "title: Weekly 1-1 with Alex")
}

func TestCreateOrUpdateFindsExistingNote(t *testing.T) {
	repo, _ := newTestRepo(t)

	first, created, err := repo.CreateOrUpdate("abc123", "Meetings", "Standup", func(string) string {
		return "v1"
	})
	require.NoError(t, err)
	require.True(t, created)

	// Second call must converge on the same file even with a new title.
	second, created, err := repo.CreateOrUpdate("abc123", "Meetings/Elsewhere", "Renamed", func(existing string) string {
		assert.Equal(t, "v1", existing)
		return "v2"
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestFindNoteIgnoresSubstringIDs(t *testing.T) {
	repo, store := newTestRepo(t)

	require.NoError(t, store.CreateFolder("Meetings"))
	require.NoError(t, store.Create("Meetings/Other ~zabc.md", ""))
	require.NoError(t, repo.Refresh())

	_, ok := repo.FindNote("abc")
	assert.False(t, ok, "id embedded in a longer id must not match")
	p, ok := repo.FindNote("zabc")
	assert.True(t, ok)
	assert.Equal(t, "Meetings/Other ~zabc.md", p)
}

func TestRefreshPicksUpExternalRenames(t *testing.T) {
	repo, store := newTestRepo(t)

	require.NoError(t, store.CreateFolder("Meetings"))
	require.NoError(t, store.Create("Meetings/Old Title ~abc.md", "body"))
	require.NoError(t, repo.Refresh())

	p, _, err := repo.CreateOrUpdate("abc", "Meetings", "New Title", func(existing string) string {
		return existing
	})
	require.NoError(t, err)
	assert.Equal(t, "Meetings/Old Title ~abc.md", p, "existing note is reused, never duplicated")
}

func TestCreateOrUpdateRecoversFromStaleIndex(t *testing.T) {
	repo, store := newTestRepo(t)

	// Note created after the index was built, as by a crashed prior run.
	require.NoError(t, store.CreateFolder("Meetings"))
	require.NoError(t, store.Create("Meetings/Standup ~abc.md", "old"))

	p, created, err := repo.CreateOrUpdate("abc", "Meetings", "Standup", func(existing string) string {
		return existing + "+merged"
	})
	require.NoError(t, err)
	assert.False(t, created)

	text, err := store.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "old+merged", text)
}

func TestConcurrentCreateOrUpdateYieldsOneNote(t *testing.T) {
	repo, store := newTestRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, err := repo.CreateOrUpdate("abc123", "Meetings", "Standup", func(existing string) string {
				if existing == "" {
					return "created"
				}
				return existing + fmt.Sprintf("+%d", n)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	notes, err := store.ListAll()
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestUpdateMissingNote(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Update("ghost", func(existing string) string { return existing })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyMergeSkipsNoOpWrites(t *testing.T) {
	repo, store := newTestRepo(t)

	require.NoError(t, store.CreateFolder("Meetings"))
	require.NoError(t, store.Create("Meetings/Standup ~abc.md", "stable"))
	require.NoError(t, repo.Refresh())

	p, err := repo.Update("abc", func(existing string) string { return existing })
	require.NoError(t, err)

	text, err := repo.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "stable", text)
}
