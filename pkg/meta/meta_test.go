package meta

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	tr, err := Load(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)
	assert.Empty(t, tr.Merged())
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err, "corrupt state must not be silently discarded")
}

func TestMerge_KeepsUntouchedRegions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")

	// First run: two regions
	tr, err := Load(path)
	require.NoError(t, err)
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tr.Record("lombardia", RegionFreshness{MapDataAsOf: t1, Features: 10})
	tr.Record("abruzzo", RegionFreshness{MapDataAsOf: t1, Features: 5})
	require.NoError(t, tr.Persist("run-1"))

	// Second run: only one region processed
	tr2, err := Load(path)
	require.NoError(t, err)
	t2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tr2.Record("lombardia", RegionFreshness{MapDataAsOf: t2, Features: 11})
	require.NoError(t, tr2.Persist("run-2"))

	// The untouched region survives the merge
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var md RunMetadata
	require.NoError(t, json.Unmarshal(data, &md))

	assert.Equal(t, "run-2", md.RunID)
	assert.Len(t, md.Regions, 2)
	assert.Equal(t, 5, md.Regions["abruzzo"].Features)
	assert.Equal(t, 11, md.Regions["lombardia"].Features)
	assert.True(t, md.Regions["lombardia"].MapDataAsOf.Equal(t2))
}

func TestSummary(t *testing.T) {
	tr, err := Load(filepath.Join(t.TempDir(), "metadata.json"))
	require.NoError(t, err)

	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	tr.Record("a", RegionFreshness{MapDataAsOf: t1})
	tr.Record("b", RegionFreshness{MapDataAsOf: t2})

	latest, approximate := tr.Summary()
	assert.True(t, latest.Equal(t2))
	assert.False(t, approximate)

	tr.Record("c", RegionFreshness{MapDataAsOf: t1, MapDataCached: true})
	_, approximate = tr.Summary()
	assert.True(t, approximate, "any cached entry makes the summary approximate")
}

func TestPersist_Atomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "metadata.json")
	tr, err := Load(path)
	require.NoError(t, err)
	tr.Record("r", RegionFreshness{MapDataAsOf: time.Now()})
	require.NoError(t, tr.Persist("run-x"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not remain")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPrior(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	tr, err := Load(path)
	require.NoError(t, err)
	tr.Record("r", RegionFreshness{MapDataStamp: "01/03/2026 10:00 (UTC+1)"})
	require.NoError(t, tr.Persist("run-1"))

	tr2, err := Load(path)
	require.NoError(t, err)
	prior, ok := tr2.Prior("r")
	require.True(t, ok)
	assert.Equal(t, "01/03/2026 10:00 (UTC+1)", prior.MapDataStamp)

	_, ok = tr2.Prior("unknown")
	assert.False(t, ok)
}

func TestCachedLabel_Idempotent(t *testing.T) {
	stamp := "01/03/2026 10:00 (UTC+1)"
	once := CachedLabel(stamp)
	assert.Equal(t, "01/03/2026 10:00 (UTC+1) (Cached)", once)

	twice := CachedLabel(once)
	assert.Equal(t, once, twice, "cache annotation must never stack")
}

func TestFormatStamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, "14/03/2026 12:00 (UTC+1)", FormatStamp(ts))
}
