//go:build !windows

package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tsbridge/rrdcache"
	"github.com/tsbridge/rrdcache/config"
	"github.com/tsbridge/rrdcache/engine"
)

// fakeEngine is a /bin/sh script standing in for the RRA engine: "create"
// touches the named file, "update" is a no-op that always succeeds,
// matching real engine semantics closely enough to exercise ensureCreated
// and the cache handoff end to end.
const fakeEngineScript = `
case "$1" in
  create) shift; touch "$1" ;;
  update) exit 0 ;;
  *) echo "unknown command: $1" >&2; exit 1 ;;
esac
`

func newTestCollector(t *testing.T, dataDir string) *Collector {
	t.Helper()
	runner := newScriptRunner(t)

	cfg := config.New()
	if err := cfg.Set("CacheTimeout", "3600"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("DataDir", dataDir); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("StepSize", "10"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("HeartBeat", "20"); err != nil {
		t.Fatal(err)
	}
	cfg.Resolve(nil)

	col, err := Init(cfg, runner, nil)
	if err != nil {
		t.Fatal(err)
	}
	return col
}

// newScriptRunner builds a Runner whose bin is a small wrapper script on
// disk, since exec.Command can't take inline -c script bodies as cleanly
// once the "create"/"update" argv already starts at argv[1].
func newScriptRunner(t *testing.T) *engine.Runner {
	t.Helper()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-engine.sh")
	body := "#!/bin/sh\n" + fakeEngineScript
	if err := os.WriteFile(scriptPath, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return engine.NewRunner(scriptPath, nil).WithTimeout(2 * time.Second)
}

func testIdentity() rrdcache.Identity {
	return rrdcache.Identity{
		Host:   "h1",
		Plugin: "cpu",
		Type:   "cpu",
		Schema: []rrdcache.DataSource{
			{Name: "value", Kind: rrdcache.Gauge, Min: rrdcache.Unknown, Max: rrdcache.Unknown},
		},
	}
}

func TestWriteCreatesArchiveOnFirstUse(t *testing.T) {
	dataDir := t.TempDir()
	col := newTestCollector(t, dataDir)
	defer col.Shutdown()

	id := testIdentity()
	err := col.Write(id, rrdcache.Sample{Values: []float64{1.5}, ValueTime: 1_700_000_000})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dataDir, "h1", "cpu", "cpu.rrd")
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected archive file to be created at %s: %v", path, statErr)
	}
}

func TestWriteDoesNotRecreateExistingArchive(t *testing.T) {
	dataDir := t.TempDir()
	col := newTestCollector(t, dataDir)
	defer col.Shutdown()

	id := testIdentity()
	if err := col.Write(id, rrdcache.Sample{Values: []float64{1}, ValueTime: 1000}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dataDir, "h1", "cpu", "cpu.rrd")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := col.Write(id, rrdcache.Sample{Values: []float64{2}, ValueTime: 1010}); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if before.ModTime() != after.ModTime() {
		t.Fatal("archive file was recreated on a second write")
	}
}

func TestWriteRejectsInvalidIdentity(t *testing.T) {
	dataDir := t.TempDir()
	col := newTestCollector(t, dataDir)
	defer col.Shutdown()

	id := rrdcache.Identity{} // missing Host/Plugin/Type/Schema
	err := col.Write(id, rrdcache.Sample{Values: nil, ValueTime: 1000})
	if err == nil {
		t.Fatal("expected an error for an invalid identity")
	}
}

func TestStatsReflectInsertsAndRejects(t *testing.T) {
	dataDir := t.TempDir()
	col := newTestCollector(t, dataDir)
	defer col.Shutdown()

	id := testIdentity()
	if err := col.Write(id, rrdcache.Sample{Values: []float64{1}, ValueTime: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := col.Write(id, rrdcache.Sample{Values: []float64{2}, ValueTime: 999}); err == nil {
		t.Fatal("expected a non-monotonic rejection")
	}

	stats := col.Stats()
	if stats.Inserts != 1 {
		t.Fatalf("Inserts = %d, want 1", stats.Inserts)
	}
	if stats.Rejects != 1 {
		t.Fatalf("Rejects = %d, want 1", stats.Rejects)
	}
}
