package replacer_test

import (
	"testing"

	"bufftree/internal/replacer"
)

func TestVictimEmpty(t *testing.T) {
	r := replacer.New()
	if _, ok := r.Victim(); ok {
		t.Fatal("expected no victim from an empty replacer")
	}
}

func TestVictimOrder(t *testing.T) {
	r := replacer.New()
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	for _, want := range []replacer.FrameID{1, 2, 3} {
		got, ok := r.Victim()
		if !ok || got != want {
			t.Fatalf("victim = %v, %v; want %v, true", got, ok, want)
		}
	}
	if _, ok := r.Victim(); ok {
		t.Fatal("expected replacer to be empty")
	}
}

func TestPinRemovesCandidacy(t *testing.T) {
	r := replacer.New()
	r.Unpin(1)
	r.Unpin(2)
	r.Pin(1)
	got, ok := r.Victim()
	if !ok || got != 2 {
		t.Fatalf("victim = %v, %v; want 2, true", got, ok)
	}
	if _, ok := r.Victim(); ok {
		t.Fatal("frame 1 should have been pinned out of candidacy")
	}
}

func TestPinAbsentFrameIsNoop(t *testing.T) {
	r := replacer.New()
	r.Pin(42) // must not panic
	if r.Size() != 0 {
		t.Fatalf("size = %d, want 0", r.Size())
	}
}

func TestUnpinRedundantIsNoop(t *testing.T) {
	r := replacer.New()
	r.Unpin(1)
	r.Unpin(2)
	// Redundant unpin of frame 1 must not move it to the MRU end.
	r.Unpin(1)
	got, ok := r.Victim()
	if !ok || got != 1 {
		t.Fatalf("victim = %v, %v; want 1, true (first-unpin-wins)", got, ok)
	}
}

func TestSize(t *testing.T) {
	r := replacer.New()
	if r.Size() != 0 {
		t.Fatalf("size = %d, want 0", r.Size())
	}
	r.Unpin(1)
	r.Unpin(2)
	if r.Size() != 2 {
		t.Fatalf("size = %d, want 2", r.Size())
	}
	r.Victim()
	if r.Size() != 1 {
		t.Fatalf("size = %d, want 1", r.Size())
	}
}
