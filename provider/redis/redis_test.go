package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/rcache/store"
)

func TestNewNeedsClientOrAddr(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoClient) {
		t.Fatalf("err = %v; want ErrNoClient", err)
	}
}

func TestNewRejectsBadAddr(t *testing.T) {
	if _, err := New(Config{Addr: "nope"}); !errors.Is(err, store.ErrInvalidAddress) {
		t.Fatalf("err = %v; want ErrInvalidAddress", err)
	}
}

func TestNewOwnsDialedClient(t *testing.T) {
	p, err := New(Config{Addr: "127.0.0.1:6390:2"})
	if err != nil {
		t.Fatal(err)
	}
	if !p.closeClient {
		t.Fatal("provider should own a client it dialed")
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
