package guard

import (
	"context"
	"testing"

	"github.com/omniagent/agentpaycore/internal/storage"
)

func TestChain_ReserveReleasesEverythingOnLaterBlock(t *testing.T) {
	store := storage.NewMemoryBackend()
	rateLimit, err := NewRateLimitGuard("rate", RateLimits{PerMinute: 100}, ScopeByWallet, store)
	if err != nil {
		t.Fatalf("NewRateLimitGuard: %v", err)
	}
	max := mustAmount(t, "10")
	singleTx, err := NewSingleTxGuard("max-10", nil, &max)
	if err != nil {
		t.Fatalf("NewSingleTxGuard: %v", err)
	}

	chain := NewChain(rateLimit, singleTx)
	pc := Context{WalletID: "wallet-1", Amount: mustAmount(t, "50")}

	tokens, result, err := chain.Reserve(context.Background(), pc)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected the single-tx guard to block a 50-unit payment against a 10 max")
	}
	if tokens != nil {
		t.Fatalf("a blocked chain reserve must not return any tokens")
	}

	// The rate-limit guard's counter, incremented before the block was
	// discovered, must have been rolled back — a second reserve at the same
	// scope should behave identically, not see an inflated count.
	tokens2, result2, err := chain.Reserve(context.Background(), Context{WalletID: "wallet-1", Amount: mustAmount(t, "5")})
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if !result2.Allowed {
		t.Fatalf("expected an in-bounds amount to be allowed, got %+v", result2)
	}
	if len(tokens2) != 2 {
		t.Fatalf("expected a token from each guard in the chain, got %d", len(tokens2))
	}
}

func TestChain_CheckStopsAtFirstBlock(t *testing.T) {
	max := mustAmount(t, "10")
	singleTx, err := NewSingleTxGuard("max-10", nil, &max)
	if err != nil {
		t.Fatalf("NewSingleTxGuard: %v", err)
	}
	recipient, err := NewRecipientGuard("deny", RecipientConfig{Mode: RecipientBlacklist, Addresses: []string{"0xbad"}})
	if err != nil {
		t.Fatalf("NewRecipientGuard: %v", err)
	}

	chain := NewChain(singleTx, recipient)
	result, passed, err := chain.Check(context.Background(), Context{Amount: mustAmount(t, "999"), Recipient: "0xbad"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected the over-max amount to block before the recipient guard runs")
	}
	if len(passed) != 0 {
		t.Fatalf("expected no guards to have passed, got %v", passed)
	}
}

func TestRegistry_ChainForCombinesWalletAndSetGuards(t *testing.T) {
	r := NewRegistry()
	max := mustAmount(t, "10")
	walletGuard, _ := NewSingleTxGuard("wallet-cap", nil, &max)
	setMax := mustAmount(t, "5")
	setGuard, _ := NewSingleTxGuard("set-cap", nil, &setMax)

	r.Add("wallet-1", walletGuard)
	r.AddForSet("set-1", setGuard)

	chain := r.ChainFor("wallet-1", "set-1")
	if len(chain.Guards()) != 2 {
		t.Fatalf("expected the combined chain to carry both guards, got %d", len(chain.Guards()))
	}

	result, _, err := chain.Check(context.Background(), Context{Amount: mustAmount(t, "7")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected the tighter set-level cap of 5 to block a 7-unit payment")
	}
}
