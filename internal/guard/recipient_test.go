package guard

import (
	"context"
	"testing"
)

func TestRecipientGuard_Whitelist(t *testing.T) {
	g, err := NewRecipientGuard("allowlist", RecipientConfig{
		Mode:      RecipientWhitelist,
		Addresses: []string{"0xAAAA"},
		Domains:   []string{"trusted.example"},
	})
	if err != nil {
		t.Fatalf("NewRecipientGuard: %v", err)
	}

	cases := []struct {
		recipient string
		allowed   bool
	}{
		{"0xaaaa", true},
		{"https://pay.trusted.example/invoice", true},
		{"0xbbbb", false},
	}
	for _, c := range cases {
		res, err := g.Check(context.Background(), Context{Recipient: c.recipient})
		if err != nil {
			t.Fatalf("Check(%s): %v", c.recipient, err)
		}
		if res.Allowed != c.allowed {
			t.Errorf("Check(%s).Allowed = %v, want %v", c.recipient, res.Allowed, c.allowed)
		}
	}
}

func TestRecipientGuard_Blacklist(t *testing.T) {
	g, err := NewRecipientGuard("denylist", RecipientConfig{
		Mode:     RecipientBlacklist,
		Patterns: []string{`^0xdead`},
	})
	if err != nil {
		t.Fatalf("NewRecipientGuard: %v", err)
	}

	res, err := g.Check(context.Background(), Context{Recipient: "0xDEADbeef"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected a blacklisted pattern match to block")
	}

	res, err = g.Check(context.Background(), Context{Recipient: "0xfeedbeef"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected a non-matching recipient to pass the blacklist")
	}
}

func TestRecipientGuard_RejectsInvalidMode(t *testing.T) {
	if _, err := NewRecipientGuard("bad", RecipientConfig{Mode: "invalid"}); err == nil {
		t.Fatalf("expected an error for an unrecognized mode")
	}
}
