package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for range 100 {
		next := gen()
		if next <= prev {
			t.Fatalf("UUIDv7 not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	id := Session()
	if !strings.HasPrefix(id, "ses_") {
		t.Fatalf("session id %q lacks ses_ prefix", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "ses_")); err != nil {
		t.Fatalf("%q is not a prefixed uuid: %v", id, err)
	}
	if !strings.HasPrefix(Report(), "rep_") {
		t.Fatal("report id lacks rep_ prefix")
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("s")
	if a, b := gen(), gen(); a != "s1" || b != "s2" {
		t.Fatalf("got %q, %q", a, b)
	}
}
