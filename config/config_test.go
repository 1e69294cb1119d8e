package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testLogger struct {
	lines []string
}

func (l *testLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, format)
}

func TestSetRejectsUnknownKey(t *testing.T) {
	c := New()
	if err := c.Set("Bogus", "1"); err == nil {
		t.Fatal("expected an error for an unrecognized key")
	}
}

func TestSetCaseInsensitiveKeys(t *testing.T) {
	c := New()
	if err := c.Set("cachetimeout", "300"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("CACHETIMEOUT", "60"); err != nil {
		t.Fatal(err)
	}
	if c.CacheTimeout != 60*time.Second {
		t.Fatalf("CacheTimeout = %s, want 60s", c.CacheTimeout)
	}
}

func TestDataDirStripsTrailingSlashes(t *testing.T) {
	c := New()
	if err := c.Set("DataDir", "/var/lib/collectd///"); err != nil {
		t.Fatal(err)
	}
	if c.DataDir != "/var/lib/collectd" {
		t.Fatalf("DataDir = %q", c.DataDir)
	}
	if err := c.Set("DataDir", "///"); err != nil {
		t.Fatal(err)
	}
	if c.DataDir != "" {
		t.Fatalf("DataDir after stripping to empty = %q, want unset", c.DataDir)
	}
}

func TestRRATimespanSkipsZeroAndSplitsOnAnyDelimiter(t *testing.T) {
	c := New()
	if err := c.Set("RRATimespan", "3600, 0\t86400  604800"); err != nil {
		t.Fatal(err)
	}
	want := []int64{3600, 86400, 604800}
	if len(c.Timespans) != len(want) {
		t.Fatalf("Timespans = %v, want %v", c.Timespans, want)
	}
	for i := range want {
		if c.Timespans[i] != want[i] {
			t.Fatalf("Timespans = %v, want %v", c.Timespans, want)
		}
	}
}

func TestRRATimespanRejectsNegative(t *testing.T) {
	c := New()
	if err := c.Set("RRATimespan", "-10"); err == nil {
		t.Fatal("expected an error for a negative timespan")
	}
}

func TestXFFMustBeInUnitInterval(t *testing.T) {
	c := New()
	if err := c.Set("XFF", "1"); err == nil {
		t.Fatal("expected an error: XFF must be in [0, 1)")
	}
	if err := c.Set("XFF", "0.75"); err != nil {
		t.Fatal(err)
	}
	if c.XFF != 0.75 {
		t.Fatalf("XFF = %v", c.XFF)
	}
}

// TestResolveDisablesCacheBelowTwoSeconds covers the derived invariant:
// cache_timeout < 2 forces both timeouts to zero.
func TestResolveDisablesCacheBelowTwoSeconds(t *testing.T) {
	c := New()
	if err := c.Set("CacheTimeout", "1"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("CacheFlush", "500"); err != nil {
		t.Fatal(err)
	}
	c.Resolve(nil)
	if c.CacheTimeout != 0 || c.CacheFlushTimeout != 0 {
		t.Fatalf("CacheTimeout=%s CacheFlushTimeout=%s, want both zero", c.CacheTimeout, c.CacheFlushTimeout)
	}
}

func TestResolveDefaultsCacheFlushTo10xCacheTimeout(t *testing.T) {
	c := New()
	if err := c.Set("CacheTimeout", "300"); err != nil {
		t.Fatal(err)
	}
	c.Resolve(nil)
	if c.CacheFlushTimeout != 3000*time.Second {
		t.Fatalf("CacheFlushTimeout = %s, want 3000s", c.CacheFlushTimeout)
	}
}

func TestResolveRejectsExplicitCacheFlushBelowCacheTimeout(t *testing.T) {
	c := New()
	if err := c.Set("CacheTimeout", "300"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("CacheFlush", "60"); err != nil {
		t.Fatal(err)
	}
	c.Resolve(nil)
	if c.CacheFlushTimeout != 3000*time.Second {
		t.Fatalf("CacheFlushTimeout = %s, want the 10x floor of 3000s", c.CacheFlushTimeout)
	}
}

func TestResolveStepAndHeartbeatDefaultFromInterval(t *testing.T) {
	c := New()
	if err := c.Set("Interval", "10"); err != nil {
		t.Fatal(err)
	}
	c.Resolve(nil)
	if c.StepSize != 10*time.Second {
		t.Fatalf("StepSize = %s, want 10s", c.StepSize)
	}
	if c.HeartBeat != 20*time.Second {
		t.Fatalf("HeartBeat = %s, want 20s", c.HeartBeat)
	}
}

func TestResolveWarnsOnLowHeartbeat(t *testing.T) {
	c := New()
	if err := c.Set("Interval", "10"); err != nil {
		t.Fatal(err)
	}
	if err := c.Set("HeartBeat", "5"); err != nil {
		t.Fatal(err)
	}
	lg := &testLogger{}
	c.Resolve(lg)
	if len(lg.lines) == 0 {
		t.Fatal("expected a warning for HeartBeat < Interval")
	}
}

func TestLoadFileAppliesPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rrdcache.yaml")
	doc := "cacheTimeout: \"300\"\ndataDir: /var/lib/collectd\nxff: \"0.5\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New()
	if err := c.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if c.CacheTimeout != 300*time.Second {
		t.Fatalf("CacheTimeout = %s", c.CacheTimeout)
	}
	if c.DataDir != "/var/lib/collectd" {
		t.Fatalf("DataDir = %q", c.DataDir)
	}
}

func TestLoadFileRejectsBadValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rrdcache.yaml")
	if err := os.WriteFile(path, []byte("xff: \"2\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New()
	if err := c.LoadFile(path); err == nil {
		t.Fatal("expected an error for an out-of-range XFF")
	}
}
