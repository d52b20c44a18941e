package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type user struct {
	ID    int       `json:"id" msgpack:"id" cbor:"id"`
	Name  string    `json:"name" msgpack:"name" cbor:"name"`
	Since time.Time `json:"since" msgpack:"since" cbor:"since"`
}

func TestByName(t *testing.T) {
	u := user{ID: 7, Name: "ada", Since: time.Unix(1_700_000_000, 0).UTC()}
	for _, name := range []string{"", "json", "MSGPACK", "cbor"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName[user](name, 1)
			if err != nil {
				t.Fatal(err)
			}
			b, err := c.Encode(u)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Decode(b)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != u.ID || got.Name != u.Name || !got.Since.Equal(u.Since) {
				t.Fatalf("got %+v; want %+v", got, u)
			}
		})
	}
}

func TestByNameString(t *testing.T) {
	c, err := ByName[string]("string", 0)
	if err != nil {
		t.Fatal(err)
	}
	if b, _ := c.Encode("hi"); string(b) != "hi" {
		t.Fatalf("Encode = %q", b)
	}
	if _, err := ByName[int]("string", 0); !errors.Is(err, ErrUnknown) {
		t.Fatalf("string codec for int: err = %v", err)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName[int]("pickle", 0); !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v; want ErrUnknown", err)
	}
}

func TestCBORDeterministicMapOrder(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	in := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := c.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		again, _ := c.Encode(in)
		if !bytes.Equal(first, again) {
			t.Fatal("deterministic CBOR produced different bytes")
		}
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v; want ErrTooLarge", err)
	}
	if v, err := c.Decode([]byte("1234")); err != nil || v != "1234" {
		t.Fatalf("Decode = %q, %v", v, err)
	}
	off := Limit[string]{Inner: String{}}
	if _, err := off.Decode(bytes.Repeat([]byte("x"), 1<<16)); err != nil {
		t.Fatalf("disabled limit: %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("hello"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if !proto.Equal(got, wrapperspb.String("hello")) {
		t.Fatalf("got %v", got)
	}
}

func TestBytesIsIdentity(t *testing.T) {
	in := []byte{0, 1, 2}
	out, _ := Bytes{}.Encode(in)
	back, _ := Bytes{}.Decode(out)
	if !bytes.Equal(in, back) {
		t.Fatalf("got %v", back)
	}
}
