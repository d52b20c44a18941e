// Package router decides which connection serves a read or a write.
//
// Three strategies exist:
//
//	Single         one node serves everything
//	MasterReplica  writes go to nodes[0], reads to a random replica (nodes[1:])
//	Ring           every key is routed through a consistent-hash ring
//
// A Router owns its connection table. The table is built once by the caller and
// never mutated afterwards, so lookups need no locking.
package router

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/unkn0wn-root/rcache/hashring"
	"github.com/unkn0wn-root/rcache/store"
)

type Kind int

const (
	// Auto picks Single for one node and MasterReplica otherwise.
	Auto Kind = iota
	Single
	MasterReplica
	Ring
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Single:
		return "single"
	case MasterReplica:
		return "master-replica"
	case Ring:
		return "ring"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrNoNodes     = errors.New("router: no nodes")
	ErrUnknownKind = errors.New("router: unknown kind")
	ErrSingleNodes = errors.New("router: single routing needs exactly one node")
	ErrMissingConn = errors.New("router: node has no connection")
)

// ParseKind accepts the names used in configuration files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "single":
		return Single, nil
	case "master-replica", "master_replica", "master_slave", "master-slave":
		return MasterReplica, nil
	case "ring", "shard", "sharded":
		return Ring, nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Router maps keys to connections.
type Router interface {
	Kind() Kind
	// ForRead returns the connection for reading key. Single and
	// MasterReplica ignore key.
	ForRead(key string) (store.Store, error)
	// ForWrite returns the connection for writing key.
	ForWrite(key string) (store.Store, error)
	// Primary is the default write connection. Under Ring it is the first node.
	Primary() store.Store
	// All returns every connection in node order.
	All() []store.Store
	Nodes() []string
	// NodeFor returns the node that owns writes for key.
	NodeFor(key string) (string, error)
	// Conn returns the connection of node, nil when node is unknown.
	Conn(node string) store.Store
	// Close closes every connection and joins their errors. onErr, when not
	// nil, is called for each failing node as it happens.
	Close(onErr func(node string, err error)) error
}

// New builds a router of kind over nodes. conns must hold a connection for
// every node; extra entries are ignored.
func New(kind Kind, nodes []string, conns map[string]store.Store) (Router, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	for _, n := range nodes {
		if conns[n] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingConn, n)
		}
	}
	if kind == Auto {
		kind = Single
		if len(nodes) > 1 {
			kind = MasterReplica
		}
	}

	t := table{nodes: append([]string(nil), nodes...), conns: make(map[string]store.Store, len(nodes))}
	for _, n := range nodes {
		t.conns[n] = conns[n]
	}
	switch kind {
	case Single:
		if len(nodes) != 1 {
			return nil, fmt.Errorf("%w (got %d)", ErrSingleNodes, len(nodes))
		}
		return &single{table: t}, nil
	case MasterReplica:
		return &masterReplica{table: t}, nil
	case Ring:
		return &ring{table: t, hr: hashring.New(t.nodes)}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
}

type table struct {
	nodes []string
	conns map[string]store.Store
}

func (t table) Primary() store.Store { return t.conns[t.nodes[0]] }

func (t table) All() []store.Store {
	out := make([]store.Store, len(t.nodes))
	for i, n := range t.nodes {
		out[i] = t.conns[n]
	}
	return out
}

func (t table) Nodes() []string { return append([]string(nil), t.nodes...) }

func (t table) NodeFor(string) (string, error) { return t.nodes[0], nil }

func (t table) Conn(node string) store.Store { return t.conns[node] }

func (t table) Close(onErr func(node string, err error)) error {
	var errs []error
	for _, n := range t.nodes {
		if err := t.conns[n].Close(); err != nil {
			if onErr != nil {
				onErr(n, err)
			}
			errs = append(errs, fmt.Errorf("close %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}

type single struct{ table }

func (*single) Kind() Kind { return Single }

func (s *single) ForRead(string) (store.Store, error) { return s.Primary(), nil }

func (s *single) ForWrite(string) (store.Store, error) { return s.Primary(), nil }

type masterReplica struct{ table }

func (*masterReplica) Kind() Kind { return MasterReplica }

// ForRead picks a replica uniformly at random. With one node the master serves reads.
func (m *masterReplica) ForRead(string) (store.Store, error) {
	if len(m.nodes) == 1 {
		return m.Primary(), nil
	}
	return m.conns[m.nodes[1+rand.IntN(len(m.nodes)-1)]], nil
}

func (m *masterReplica) ForWrite(string) (store.Store, error) { return m.Primary(), nil }

type ring struct {
	table
	hr *hashring.Ring
}

func (*ring) Kind() Kind { return Ring }

func (r *ring) ForRead(key string) (store.Store, error) { return r.lookup(key) }

func (r *ring) ForWrite(key string) (store.Store, error) { return r.lookup(key) }

func (r *ring) NodeFor(key string) (string, error) { return r.hr.Get(key) }

func (r *ring) lookup(key string) (store.Store, error) {
	node, err := r.hr.Get(key)
	if err != nil {
		return nil, err
	}
	return r.conns[node], nil
}

// CloseAll closes every connection of conns and joins their errors.
// It releases a connection table that never made it into a Router.
func CloseAll(conns map[string]store.Store) error {
	var errs []error
	for n, s := range conns {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
