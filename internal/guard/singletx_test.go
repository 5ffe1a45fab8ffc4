package guard

import (
	"context"
	"testing"
)

func TestSingleTxGuard_EnforcesMinAndMax(t *testing.T) {
	min := mustAmount(t, "5")
	max := mustAmount(t, "100")
	g, err := NewSingleTxGuard("bounds", &min, &max)
	if err != nil {
		t.Fatalf("NewSingleTxGuard: %v", err)
	}

	cases := []struct {
		amount  string
		allowed bool
	}{
		{"1", false},
		{"5", true},
		{"50", true},
		{"100", true},
		{"101", false},
	}
	for _, c := range cases {
		res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, c.amount)})
		if err != nil {
			t.Fatalf("Check(%s): %v", c.amount, err)
		}
		if res.Allowed != c.allowed {
			t.Errorf("Check(%s).Allowed = %v, want %v", c.amount, res.Allowed, c.allowed)
		}
	}
}

func TestSingleTxGuard_RequiresAtLeastOneBound(t *testing.T) {
	if _, err := NewSingleTxGuard("empty", nil, nil); err == nil {
		t.Fatalf("expected an error when neither min nor max is set")
	}
}

func TestSingleTxGuard_ReserveBlocksOverMax(t *testing.T) {
	max := mustAmount(t, "10")
	g, err := NewSingleTxGuard("max-only", nil, &max)
	if err != nil {
		t.Fatalf("NewSingleTxGuard: %v", err)
	}
	if _, err := g.Reserve(context.Background(), Context{Amount: mustAmount(t, "11")}); err == nil {
		t.Fatalf("expected Reserve to block an amount over max")
	}
	if _, err := g.Reserve(context.Background(), Context{Amount: mustAmount(t, "10")}); err != nil {
		t.Fatalf("Reserve at exactly max should succeed: %v", err)
	}
}
