package ledger

import (
	"context"
	"testing"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/storage"
	"github.com/omniagent/agentpaycore/internal/types"
)

func mustAmount(t *testing.T, s string) money.Amount {
	t.Helper()
	a, err := money.NewFromString(s)
	if err != nil {
		t.Fatalf("money.NewFromString(%q): %v", s, err)
	}
	return a
}

func TestLedger_RecordAssignsIDAndTimestamps(t *testing.T) {
	l := New(storage.NewMemoryBackend())
	entry := &types.LedgerEntry{WalletID: "wallet-1", Amount: mustAmount(t, "10"), Status: types.StatusPending}

	recorded, err := l.Record(context.Background(), entry)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if recorded.ID == "" {
		t.Fatalf("expected an assigned ID")
	}
	if recorded.CreatedAt.IsZero() || recorded.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	fetched, err := l.Get(context.Background(), recorded.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !fetched.Amount.Equal(entry.Amount) {
		t.Fatalf("expected the amount to round trip, got %s", fetched.Amount)
	}
}

func TestLedger_UpdateStatusIsWriteOnceOnceTerminal(t *testing.T) {
	l := New(storage.NewMemoryBackend())
	entry, err := l.Record(context.Background(), &types.LedgerEntry{WalletID: "wallet-1", Amount: mustAmount(t, "10"), Status: types.StatusPending})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, err := l.UpdateStatus(context.Background(), entry.ID, types.StatusCompleted, "0xhash", nil); err != nil {
		t.Fatalf("UpdateStatus to completed: %v", err)
	}

	updated, err := l.UpdateStatus(context.Background(), entry.ID, types.StatusFailed, "", nil)
	if err != nil {
		t.Fatalf("UpdateStatus after terminal: %v", err)
	}
	if updated.Status != types.StatusCompleted {
		t.Fatalf("expected the terminal status to be preserved, got %s", updated.Status)
	}
}

func TestLedger_UpdateStatusMergesMetadata(t *testing.T) {
	l := New(storage.NewMemoryBackend())
	entry, err := l.Record(context.Background(), &types.LedgerEntry{
		WalletID: "wallet-1", Amount: mustAmount(t, "10"), Status: types.StatusPending,
		Metadata: map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	updated, err := l.UpdateStatus(context.Background(), entry.ID, types.StatusBlocked, "", MetadataDelta{"b": 2})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Metadata["a"] != float64(1) && updated.Metadata["a"] != 1 {
		t.Fatalf("expected the original metadata key to survive, got %+v", updated.Metadata)
	}
	if updated.Metadata["b"] != float64(2) && updated.Metadata["b"] != 2 {
		t.Fatalf("expected the merged metadata key to be present, got %+v", updated.Metadata)
	}
}

func TestLedger_QueryFiltersByWalletAndCapsLimit(t *testing.T) {
	l := New(storage.NewMemoryBackend())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Record(ctx, &types.LedgerEntry{WalletID: "wallet-1", Amount: mustAmount(t, "1"), Status: types.StatusPending}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if _, err := l.Record(ctx, &types.LedgerEntry{WalletID: "wallet-2", Amount: mustAmount(t, "1"), Status: types.StatusPending}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	results, err := l.Query(ctx, Filter{WalletID: "wallet-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 entries for wallet-1, got %d", len(results))
	}

	capped, err := l.Query(ctx, Filter{WalletID: "wallet-1", Limit: 2})
	if err != nil {
		t.Fatalf("Query with limit: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("expected the limit to cap results to 2, got %d", len(capped))
	}
}

func TestLedger_GetUnknownIDErrors(t *testing.T) {
	l := New(storage.NewMemoryBackend())
	if _, err := l.Get(context.Background(), "never-recorded"); err == nil {
		t.Fatalf("expected an error for an unknown ledger entry id")
	}
}
