package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// fileConfig mirrors the config() keys as a static document, letting a
// deployment ship one rrdcache.yaml instead of issuing a config() call
// per key. Unset fields are left untouched so LoadFile composes with
// subsequent Set calls.
type fileConfig struct {
	Interval     *string `json:"interval,omitempty"`
	CacheTimeout *string `json:"cacheTimeout,omitempty"`
	CacheFlush   *string `json:"cacheFlush,omitempty"`
	DataDir      *string `json:"dataDir,omitempty"`
	StepSize     *string `json:"stepSize,omitempty"`
	HeartBeat    *string `json:"heartBeat,omitempty"`
	RRARows      *string `json:"rraRows,omitempty"`
	RRATimespan  *string `json:"rraTimespan,omitempty"`
	XFF          *string `json:"xff,omitempty"`
}

// LoadFile reads a YAML configuration document from path and applies
// each present field to c via Set, in the same order as the struct
// above. It is meant to run before the host's config() callbacks, which
// may still override anything it sets; it does not call Resolve.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	fields := []struct {
		key string
		val *string
	}{
		{"Interval", fc.Interval},
		{"CacheTimeout", fc.CacheTimeout},
		{"CacheFlush", fc.CacheFlush},
		{"DataDir", fc.DataDir},
		{"StepSize", fc.StepSize},
		{"HeartBeat", fc.HeartBeat},
		{"RRARows", fc.RRARows},
		{"RRATimespan", fc.RRATimespan},
		{"XFF", fc.XFF},
	}
	for _, f := range fields {
		if f.val == nil {
			continue
		}
		if err := c.Set(f.key, *f.val); err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return nil
}
