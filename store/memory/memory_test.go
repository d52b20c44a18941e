package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Del(ctx, "a", "never-set"))
	exists, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Unix(1_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Second))
	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Second, ttl)

	now = now.Add(10 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "entry should expire exactly at its deadline")
	_, ok, _ = s.TTL(ctx, "k")
	assert.False(t, ok)
}

func TestStore_TTLWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))

	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, ttl)
}

func TestStore_MGetKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", []byte("A"), 0))
	require.NoError(t, s.Set(ctx, "c", []byte("C"), 0))

	got, err := s.MGet(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("A"), nil, []byte("C")}, got)
}

func TestStore_KeysGlob(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, k := range []string{"p:1:foo-aa", "p:1:foo-ab", "p:1:foo-bb", "p:2:foo-aa"} {
		require.NoError(t, s.Set(ctx, k, []byte("x"), 0))
	}

	for _, testCase := range []struct {
		name    string
		pattern string
		want    []string
	}{
		{name: "star", pattern: "p:1:*", want: []string{"p:1:foo-aa", "p:1:foo-ab", "p:1:foo-bb"}},
		{name: "inner star", pattern: "p:1:*foo-a*", want: []string{"p:1:foo-aa", "p:1:foo-ab"}},
		{name: "question mark", pattern: "p:?:foo-aa", want: []string{"p:1:foo-aa", "p:2:foo-aa"}},
		{name: "no match", pattern: "q:*", want: nil},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := s.Keys(ctx, testCase.pattern)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestStore_KeysRejectsCharacterClasses(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "ka", []byte("x"), 0))

	_, err := s.Keys(ctx, "k[ab]")
	assert.ErrorIs(t, err, ErrPattern)
}

func TestStore_PipelineAppliesOnExec(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "old", []byte("x"), 0))

	p := s.Pipeline()
	p.Set("a", []byte("1"), 0)
	p.Set("b", []byte("2"), time.Minute)
	p.Del("old")
	assert.Equal(t, 1, s.Len(), "nothing applied before Exec")

	require.NoError(t, p.Exec(ctx))
	assert.Equal(t, 2, s.Len())
	exists, _ := s.Exists(ctx, "old")
	assert.False(t, exists)
}

func TestStore_FlushAndClose(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.FlushDB(ctx))
	assert.Zero(t, s.Len())

	assert.False(t, s.Closed())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
}

func TestDialer_RecordsStores(t *testing.T) {
	dial, opened := Dialer()
	a, err := dial("a:6379:0")
	require.NoError(t, err)
	_, err = dial("b:6379:0")
	require.NoError(t, err)

	assert.Len(t, opened, 2)
	assert.Same(t, opened["a:6379:0"], a)
}
