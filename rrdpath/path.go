// Package rrdpath implements Path Derivation: mapping a
// sample's identity tuple to its canonical archive file path.
package rrdpath

import (
	"path"
	"strings"

	"github.com/dchest/siphash"

	"github.com/tsbridge/rrdcache"
)

// MaxLen is the implementation-defined fixed buffer assumed for archive
// paths. Derive fails with rrdcache.ErrPathTooLong if the canonical path
// would not fit.
const MaxLen = 512

// siphash key: fixed and arbitrary, for fast, non-adversarial hashing of
// internal identifiers, not as a security primitive.
const (
	sipK0 = 0x726a7264636163ab
	sipK1 = 0x68c965ac61fe1775
)

// Derive maps an identity tuple to the canonical archive path:
// {dataDir "/" if set}{host}/{plugin[-plugin_instance]}/{type[-type_instance]}.rrd
//
// dataDir, if non-empty, is expected to already have trailing slashes
// stripped (config.Config does this at parse time). Separator characters
// embedded in a field are not sanitized; callers are responsible for
// producing clean identifiers.
func Derive(dataDir string, id rrdcache.Identity) (string, error) {
	plugin := id.Plugin
	if id.PluginInstance != "" {
		plugin = plugin + "-" + id.PluginInstance
	}
	typ := id.Type
	if id.TypeInstance != "" {
		typ = typ + "-" + id.TypeInstance
	}

	var b strings.Builder
	if dataDir != "" {
		b.WriteString(dataDir)
		b.WriteByte('/')
	}
	b.WriteString(id.Host)
	b.WriteByte('/')
	b.WriteString(plugin)
	b.WriteByte('/')
	b.WriteString(typ)
	b.WriteString(".rrd")

	p := b.String()
	if len(p) > MaxLen {
		return "", rrdcache.ErrPathTooLong
	}
	return path.Clean(p), nil
}

// Digest computes a stable 64-bit siphash of a canonical archive path: a
// short, fixed-key handle for a given file. It carries no security
// meaning. The cache and queue key entries by the full path and do not
// call Digest.
func Digest(archivePath string) uint64 {
	return siphash.Hash(sipK0, sipK1, []byte(archivePath))
}
