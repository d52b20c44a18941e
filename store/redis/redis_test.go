package redis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/rcache/store"
)

func TestParseAddress(t *testing.T) {
	for _, testCase := range []struct {
		in   string
		want Address
	}{
		{in: "localhost:6379:1", want: Address{Network: "tcp", Addr: "localhost:6379", DB: 1}},
		{in: "10.0.0.1:6380", want: Address{Network: "tcp", Addr: "10.0.0.1:6380", DB: DefaultDB}},
		{in: "unix:/tmp/redis.sock:2", want: Address{Network: "unix", Addr: "/tmp/redis.sock", DB: 2}},
	} {
		t.Run(testCase.in, func(t *testing.T) {
			got, err := ParseAddress(testCase.in)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"localhost",
		"localhost:port:0",
		"localhost:6379:db",
		"localhost:6379:-1",
		":6379:0",
		"unix::0",
		"unix:/tmp/s.sock:x",
		"a:b:c:d",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAddress(in)
			assert.ErrorIs(t, err, store.ErrInvalidAddress)
		})
	}
}

func TestAddressString(t *testing.T) {
	a, err := ParseAddress("unix:/var/run/redis.sock:3")
	require.NoError(t, err)
	assert.Equal(t, "unix:/var/run/redis.sock:3", a.String())

	b, err := ParseAddress("cache1:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache1:6379:1", b.String())
}

func TestNew_NilClient(t *testing.T) {
	_, err := New("n", nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestDialer_RejectsBadAddress(t *testing.T) {
	_, err := Dialer(Config{})("nope")
	assert.ErrorIs(t, err, store.ErrInvalidAddress)
}

// An unreachable node must surface as a connectivity failure so the cache can fail over.
func TestUnreachableNodeIsConnectivityFailure(t *testing.T) {
	node := "unix:" + filepath.Join(t.TempDir(), "missing.sock") + ":0"
	s, err := Dialer(Config{DialTimeout: 200 * time.Millisecond})(node)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, _, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, store.IsConnectivity(err), "got %v", err)

	var ce *store.ConnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, node, ce.Node)
}

func TestServerErrorsAreNotConnectivity(t *testing.T) {
	s := &Store{node: "n"}
	err := s.wrap(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))
	assert.False(t, store.IsConnectivity(err))
	assert.Nil(t, s.wrap(nil))
}

func TestClosedClientIsConnectivity(t *testing.T) {
	s := &Store{node: "n"}
	assert.True(t, store.IsConnectivity(s.wrap(goredis.ErrClosed)))
}

// pttlClient answers PTTL with a fixed reply; every other command panics.
type pttlClient struct {
	goredis.UniversalClient
	reply time.Duration
	err   error
}

func (c pttlClient) PTTL(context.Context, string) *goredis.DurationCmd {
	return goredis.NewDurationResult(c.reply, c.err)
}

func TestTTL_Replies(t *testing.T) {
	cases := []struct {
		name   string
		reply  time.Duration
		want   time.Duration
		wantOK bool
	}{
		{name: "absent", reply: -2, want: 0, wantOK: false},
		{name: "persistent", reply: -1, want: 0, wantOK: true},
		{name: "millis", reply: 1500 * time.Millisecond, want: 1500 * time.Millisecond, wantOK: true},
		{name: "sub-second", reply: 300 * time.Millisecond, want: 300 * time.Millisecond, wantOK: true},
		{name: "about to expire", reply: 0, want: time.Millisecond, wantOK: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New("n", pttlClient{reply: tc.reply})
			require.NoError(t, err)
			d, ok, err := s.TTL(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, d)
		})
	}
}

func TestTTL_TransportError(t *testing.T) {
	s, err := New("n", pttlClient{err: goredis.ErrClosed})
	require.NoError(t, err)
	_, _, err = s.TTL(context.Background(), "k")
	assert.True(t, store.IsConnectivity(err))
}

func TestClassify(t *testing.T) {
	err := Classify("ver", goredis.ErrClosed)
	var ce *store.ConnError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ver", ce.Node)
	assert.NoError(t, Classify("ver", nil))
	assert.False(t, store.IsConnectivity(Classify("ver", goredis.Nil)))
}
