package bigcache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestRoundTripAndIdempotentDelete(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, hit, err := p.Get(ctx, "k"); err != nil || hit {
		t.Fatalf("empty Get = %v, %v", hit, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 0, time.Second); err != nil || !ok {
		t.Fatalf("Set = %v, %v", ok, err)
	}
	got, hit, err := p.Get(ctx, "k")
	if err != nil || !hit || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("Get = %q, %v, %v", got, hit, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("second Del: %v", err)
	}
}
