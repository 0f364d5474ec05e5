package sequencing

import (
	"errors"
	"math"
	"net/netip"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter(0)

	for want := range uint32(3) {
		got, err := c.Next()
		if err != nil || got != want {
			t.Fatalf("Next() = (%d, %v), expected (%d, nil)", got, err, want)
		}
	}
}

func TestCounterDoesNotWrap(t *testing.T) {
	c := NewCounter(math.MaxUint32 - 1)

	for _, want := range []uint32{math.MaxUint32 - 1, math.MaxUint32} {
		got, err := c.Next()
		if err != nil || got != want {
			t.Fatalf("Next() = (%d, %v), expected (%d, nil)", got, err, want)
		}
	}

	if _, err := c.Next(); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("expected ErrSequenceExhausted, got %v", err)
	}
	if _, err := c.Next(); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("Next() after exhaustion must keep failing, got %v", err)
	}
}

func TestTransferBlocker(t *testing.T) {
	dest := netip.MustParseAddrPort("10.0.0.1:9000")
	other := netip.MustParseAddrPort("10.0.0.2:9000")

	b := GetTransferBlocker(dest)
	if !b.Block() {
		t.Fatalf("first Block() should succeed")
	}
	defer b.Unblock()

	if GetTransferBlocker(dest).Block() {
		t.Errorf("second Block() for the same destination should fail")
	}

	o := GetTransferBlocker(other)
	if !o.Block() {
		t.Errorf("Block() for another destination should succeed")
	}
	o.Unblock()
	o.Unblock() // no-op
}
