package guard

// ScopeFunc extracts the key a guard scopes its counters by. A guard added
// via a wallet registration scopes per wallet; one added to a wallet-set
// scopes per set, so every wallet in that set shares the same limit (spec
// §4.3: "the effective chain for a payment is wallet-set-chain ⊕
// wallet-chain").
type ScopeFunc func(Context) string

// ScopeByWallet scopes a guard's counters to the individual wallet.
func ScopeByWallet(pc Context) string { return pc.WalletID }

// ScopeByWalletSet scopes a guard's counters to the wallet set.
func ScopeByWalletSet(pc Context) string { return pc.WalletSetID }
