package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/takiuddin/nameharvest/internal/harvest"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	tracker := New(path, nil)

	saved := harvest.RunProgress{
		RunID: "run-1",
		CompletedPages: map[harvest.Category][]int{
			harvest.CategoryMale:   {1, 2, 5},
			harvest.CategoryFemale: {1},
		},
		TotalRecords: 42,
		LastUpdated:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, tracker.Save(saved))

	loaded, err := tracker.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, saved, *loaded)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	tracker := New(filepath.Join(t.TempDir(), "absent.json"), nil)
	loaded, err := tracker.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "progress.json")
	tracker := New(path, nil)

	require.NoError(t, tracker.Save(harvest.RunProgress{RunID: "run-1", TotalRecords: 1}))
	require.NoError(t, tracker.Save(harvest.RunProgress{RunID: "run-1", TotalRecords: 9}))

	loaded, err := tracker.Load()
	require.NoError(t, err)
	require.Equal(t, 9, loaded.TotalRecords)
}
