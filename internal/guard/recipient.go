package guard

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// RecipientMode selects whitelist or blacklist evaluation.
type RecipientMode string

const (
	RecipientWhitelist RecipientMode = "whitelist"
	RecipientBlacklist RecipientMode = "blacklist"
)

// RecipientGuard controls which recipients may receive funds, grounded on
// omniclaw/guards/recipient.py. Match sources are evaluated in order —
// exact address, then domain substring, then regex pattern (spec §4.3) —
// stopping at the first match.
type RecipientGuard struct {
	name      string
	mode      RecipientMode
	addresses map[string]struct{}
	domains   []string
	patterns  []*regexp.Regexp
}

// RecipientConfig configures a RecipientGuard.
type RecipientConfig struct {
	Mode      RecipientMode
	Addresses []string
	Domains   []string
	Patterns  []string
}

// NewRecipientGuard constructs a RecipientGuard.
func NewRecipientGuard(name string, cfg RecipientConfig) (*RecipientGuard, error) {
	if cfg.Mode != RecipientWhitelist && cfg.Mode != RecipientBlacklist {
		return nil, fmt.Errorf("guard: recipient guard %q mode must be whitelist or blacklist", name)
	}
	addrs := make(map[string]struct{}, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		addrs[strings.ToLower(a)] = struct{}{}
	}
	domains := make([]string, len(cfg.Domains))
	for i, d := range cfg.Domains {
		domains[i] = strings.ToLower(d)
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("guard: recipient guard %q pattern %q: %w", name, p, err)
		}
		patterns = append(patterns, re)
	}
	return &RecipientGuard{
		name:      name,
		mode:      cfg.Mode,
		addresses: addrs,
		domains:   domains,
		patterns:  patterns,
	}, nil
}

func (g *RecipientGuard) Name() string { return g.name }

func (g *RecipientGuard) matches(recipient string) bool {
	lower := strings.ToLower(recipient)
	if _, ok := g.addresses[lower]; ok {
		return true
	}
	for _, d := range g.domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	for _, re := range g.patterns {
		if re.MatchString(recipient) {
			return true
		}
	}
	return false
}

func (g *RecipientGuard) Check(_ context.Context, pc Context) (Result, error) {
	matched := g.matches(pc.Recipient)
	allowed := matched
	if g.mode == RecipientBlacklist {
		allowed = !matched
	}

	if allowed {
		return Result{Allowed: true, Name: g.name, Metadata: map[string]any{"mode": string(g.mode), "matched": matched}}, nil
	}

	reason := fmt.Sprintf("recipient %s not in whitelist", pc.Recipient)
	if g.mode == RecipientBlacklist {
		reason = fmt.Sprintf("recipient %s is blacklisted", pc.Recipient)
	}
	return Result{
		Allowed:  false,
		Name:     g.name,
		Reason:   reason,
		Metadata: map[string]any{"mode": string(g.mode), "matched": matched},
	}, nil
}

// Reserve is Check with no side effects: this guard is stateless.
func (g *RecipientGuard) Reserve(ctx context.Context, pc Context) (string, error) {
	res, err := g.Check(ctx, pc)
	if err != nil {
		return "", err
	}
	if !res.Allowed {
		return "", &BlockedError{GuardName: g.name, Reason: res.Reason}
	}
	return "", nil
}

func (g *RecipientGuard) Commit(_ context.Context, _ string) error  { return nil }
func (g *RecipientGuard) Release(_ context.Context, _ string) error { return nil }
