package cookies

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJar(t *testing.T, entries int, age time.Duration) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	b.WriteString("\n")
	for i := 0; i < entries; i++ {
		b.WriteString(".youtube.com\tTRUE\t/\tTRUE\t1999999999\tSID\tvalue\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	now := time.Now()
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	store := NewStore(path)
	store.now = func() time.Time { return now }
	return store
}

func TestSnapshot_Missing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.txt"))
	snap := store.Snapshot()
	assert.Equal(t, StatusMissing, snap.Status)
	assert.False(t, snap.Present)
}

func TestSnapshot_UnconfiguredPathIsMissing(t *testing.T) {
	snap := NewStore("").Snapshot()
	assert.Equal(t, StatusMissing, snap.Status)
}

func TestSnapshot_Fresh(t *testing.T) {
	store := writeJar(t, MinEntries, time.Hour)
	snap := store.Snapshot()
	assert.Equal(t, StatusFresh, snap.Status)
	assert.Equal(t, MinEntries, snap.EntryCount)
	require.NotNil(t, snap.AgeHours)
	assert.InDelta(t, 1.0, *snap.AgeHours, 0.01)
}

func TestSnapshot_TooFewEntriesIsInvalidRegardlessOfAge(t *testing.T) {
	fresh := writeJar(t, MinEntries-1, time.Minute)
	assert.Equal(t, StatusInvalid, fresh.Snapshot().Status)

	ancient := writeJar(t, MinEntries-1, 30*24*time.Hour)
	assert.Equal(t, StatusInvalid, ancient.Snapshot().Status)
}

func TestSnapshot_Stale(t *testing.T) {
	store := writeJar(t, 20, StaleThreshold+time.Hour)
	assert.Equal(t, StatusStale, store.Snapshot().Status)
}

func TestSnapshot_CriticalBoundaryIsCriticalNotStale(t *testing.T) {
	store := writeJar(t, 20, CriticalThreshold)
	assert.Equal(t, StatusCritical, store.Snapshot().Status)
}

func TestSnapshot_CommentAndBlankLinesNotCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# comment\n\n# another\n.youtube.com\tTRUE\t/\tTRUE\t1999999999\tA\t1\nnot-a-cookie-line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	snap := NewStore(path).Snapshot()
	assert.Equal(t, 1, snap.EntryCount)
	assert.Equal(t, StatusInvalid, snap.Status)
}
