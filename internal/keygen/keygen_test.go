package keygen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewUnknownScheme(t *testing.T) {
	if _, err := New("rot13"); err == nil {
		t.Fatal("expected error for unknown scheme")
	}
}

func TestUUIDScheme(t *testing.T) {
	g, err := New(SchemeUUID)
	if err != nil {
		t.Fatal(err)
	}
	key, err := g.NewKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(key); err != nil {
		t.Fatalf("not a uuid: %q", key)
	}
}

func TestAlphabetScheme(t *testing.T) {
	g, err := New(SchemeAlphabet)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := g.NewKey()
		if err != nil {
			t.Fatal(err)
		}
		if len(key) != DefaultAlphabetLength {
			t.Fatalf("length %d, want %d", len(key), DefaultAlphabetLength)
		}
		for _, c := range key {
			if !strings.ContainsRune(keyAlphabet, c) {
				t.Fatalf("character %q outside alphabet in %q", c, key)
			}
		}
		if seen[key] {
			t.Fatalf("duplicate key in 50 draws: %q", key)
		}
		seen[key] = true
	}
}

func TestPrefixedScheme(t *testing.T) {
	g, err := New(SchemePrefixed)
	if err != nil {
		t.Fatal(err)
	}
	key, err := g.NewKey()
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(key, "-")
	if len(parts) != 3 || parts[0] != "HAISOFT" {
		t.Fatalf("unexpected shape: %q", key)
	}
	if len(parts[1]) != 6 {
		t.Fatalf("random part: %q", parts[1])
	}
}

func TestEmptySchemeDefaultsToAlphabet(t *testing.T) {
	g, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if g.Scheme() != SchemeAlphabet {
		t.Fatalf("default scheme: %q", g.Scheme())
	}
}

func TestNewBatchID(t *testing.T) {
	a := NewBatchID()
	b := NewBatchID()
	if len(a) != 26 || a == b {
		t.Fatalf("batch ids: %q %q", a, b)
	}
}
