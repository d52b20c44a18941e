// Package hashring maps cache keys to nodes with consistent hashing.
//
// Every node is placed on a 64-bit ring Replicas*FanOut times. A key belongs to
// the first point at or after its own hash, wrapping around to the smallest
// point. Removing a node only moves the keys that node owned (about 1/N of the
// keyspace).
//
// The digest is xxhash64 with no seed, so the same node list maps the same key
// to the same node in every process.
//
// Hash tags: when a key contains `{...}`, only the first bracketed substring is
// hashed. "user:{42}:profile" and "user:{42}:orders" therefore land on the same
// node.
package hashring

import (
	"encoding/binary"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	DefaultReplicas = 40
	DefaultFanOut   = 4
)

var ErrEmpty = errors.New("hashring: no nodes")

type point struct {
	hash uint64
	node string
}

// Ring is immutable after New and safe for concurrent use.
type Ring struct {
	points   []point
	nodes    []string
	replicas int
	fanOut   int
}

type Option func(*Ring)

// WithReplicas sets the replica points per node. n <= 0 keeps the default.
func WithReplicas(n int) Option {
	return func(r *Ring) {
		if n > 0 {
			r.replicas = n
		}
	}
}

// WithFanOut sets the sub-hashes derived from every replica. n <= 0 keeps the default.
func WithFanOut(n int) Option {
	return func(r *Ring) {
		if n > 0 {
			r.fanOut = n
		}
	}
}

// New builds a ring over nodes. Duplicate nodes are ignored.
func New(nodes []string, opts ...Option) *Ring {
	r := &Ring{replicas: DefaultReplicas, fanOut: DefaultFanOut}
	for _, o := range opts {
		o(r)
	}

	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		r.nodes = append(r.nodes, n)
	}

	r.points = make([]point, 0, len(r.nodes)*r.replicas*r.fanOut)
	var buf [8]byte
	for _, n := range r.nodes {
		for i := range r.replicas {
			h := xxhash.Sum64String(n + "-" + strconv.Itoa(i))
			for range r.fanOut {
				r.points = append(r.points, point{hash: h, node: n})
				binary.BigEndian.PutUint64(buf[:], h)
				h = xxhash.Sum64(buf[:])
			}
		}
	}
	// ties resolve by node name so collisions stay deterministic
	sort.Slice(r.points, func(i, j int) bool {
		if r.points[i].hash != r.points[j].hash {
			return r.points[i].hash < r.points[j].hash
		}
		return r.points[i].node < r.points[j].node
	})
	return r
}

// Get returns the node owning key.
func (r *Ring) Get(key string) (string, error) {
	if len(r.points) == 0 {
		return "", ErrEmpty
	}
	h := xxhash.Sum64String(HashTag(key))
	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].hash >= h
	})
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].node, nil
}

// Nodes returns the distinct nodes in the order they were given.
func (r *Ring) Nodes() []string {
	out := make([]string, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len is the number of points on the ring.
func (r *Ring) Len() int { return len(r.points) }

// HashTag returns the part of key that is hashed: the content of the first
// `{...}` pair when it is non-empty, otherwise the whole key.
func HashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}
