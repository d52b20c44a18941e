// Package keys builds the on-wire names of cache entries.
//
// The default layout is "{prefix}:{version}:{key}". A Key remembers the name
// and version it was built from, so turning a Key into a Key again is a no-op
// and a value can be re-addressed at another version.
package keys

import (
	"strconv"
	"strings"
)

// Func builds the on-wire key from a user key, the namespace prefix and a version.
type Func func(key, prefix string, version int) string

// Default is "{prefix}:{version}:{key}".
func Default(key, prefix string, version int) string {
	return prefix + ":" + strconv.Itoa(version) + ":" + key
}

// Key is a fully built cache key.
type Key struct {
	original string
	version  int
	wire     string
}

// String returns the on-wire key.
func (k Key) String() string { return k.wire }

func (k Key) Original() string { return k.original }

func (k Key) Version() int { return k.version }

// Namer holds the namespace settings keys are built with.
type Namer struct {
	Prefix string
	Func   Func // nil => Default
}

func (n Namer) build(key string, version int) Key {
	f := n.Func
	if f == nil {
		f = Default
	}
	return Key{original: key, version: version, wire: f(key, n.Prefix, version)}
}

// Make turns k into a Key at version. A Key passes through unchanged whatever
// version is asked for.
func Make[T string | Key](n Namer, k T, version int) Key {
	switch v := any(k).(type) {
	case Key:
		return v
	case string:
		return n.build(v, version)
	}
	panic("unreachable")
}

// At rebuilds k at another version.
func (n Namer) At(k Key, version int) Key {
	return n.build(k.original, version)
}

// Pattern builds the on-wire glob for a user pattern at version.
func (n Namer) Pattern(pattern string, version int) string {
	return n.build(pattern, version).wire
}

// Strip recovers the user key from an on-wire key of the default layout: the
// part after the second ':'. Keys without two separators come back unchanged.
func (n Namer) Strip(wire string) string {
	parts := strings.SplitN(wire, ":", 3)
	if len(parts) < 3 {
		return wire
	}
	return parts[2]
}
