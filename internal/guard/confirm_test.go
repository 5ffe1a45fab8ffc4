package guard

import (
	"context"
	"errors"
	"testing"
)

type fakeApprover struct {
	approved bool
	err      error
}

func (f fakeApprover) Approve(ctx context.Context, pc Context) (bool, error) {
	return f.approved, f.err
}

func TestConfirmGuard_BelowThresholdNeverConfirms(t *testing.T) {
	threshold := mustAmount(t, "100")
	g := NewConfirmGuard("confirm", fakeApprover{approved: false}, &threshold, false)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "50")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("an amount below threshold must not require confirmation")
	}
}

func TestConfirmGuard_AboveThresholdRequiresApproval(t *testing.T) {
	threshold := mustAmount(t, "100")
	g := NewConfirmGuard("confirm", fakeApprover{approved: true}, &threshold, false)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "150")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected an approved confirmation to allow the payment")
	}
}

func TestConfirmGuard_DeniedApprovalBlocks(t *testing.T) {
	threshold := mustAmount(t, "100")
	g := NewConfirmGuard("confirm", fakeApprover{approved: false}, &threshold, false)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "150")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected a denied approval to block")
	}
}

func TestConfirmGuard_NoApproverBlocksOutright(t *testing.T) {
	threshold := mustAmount(t, "10")
	g := NewConfirmGuard("confirm", nil, &threshold, false)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "50")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected a missing approver to block a payment that needs confirmation")
	}
}

func TestConfirmGuard_AlwaysConfirmIgnoresThreshold(t *testing.T) {
	g := NewConfirmGuard("confirm", fakeApprover{approved: true}, nil, true)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "0.01")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected the approved confirmation to allow even a tiny amount under always_confirm")
	}
}

func TestConfirmGuard_ApproverErrorBlocks(t *testing.T) {
	threshold := mustAmount(t, "10")
	g := NewConfirmGuard("confirm", fakeApprover{err: errors.New("approval service down")}, &threshold, false)

	res, err := g.Check(context.Background(), Context{Amount: mustAmount(t, "50")})
	if err != nil {
		t.Fatalf("Check should surface the failure via Result, not an error: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected an approver error to block the payment")
	}
}
