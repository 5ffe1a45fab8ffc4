package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/omniagent/agentpaycore/internal/custody"
	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/types"
)

type fakeBurner struct {
	approveErr error
	burnTxHash string
	depositErr error
}

func (f *fakeBurner) ApproveBurn(ctx context.Context, walletID string, amount money.Amount) error {
	return f.approveErr
}
func (f *fakeBurner) DepositForBurn(ctx context.Context, req custody.TransferRequest, destDomain uint32, mintRecipient string) (string, error) {
	if f.depositErr != nil {
		return "", f.depositErr
	}
	return f.burnTxHash, nil
}

type fakeAttester struct {
	message, attestation []byte
	url                  string
	err                  error
}

func (f *fakeAttester) PollAttestation(ctx context.Context, sourceDomain uint32, txHash string, timeout time.Duration) ([]byte, []byte, string, error) {
	if f.err != nil {
		return nil, nil, "", f.err
	}
	return f.message, f.attestation, f.url, nil
}

type fakeMinter struct {
	mintTxHash string
	err        error
}

func (f *fakeMinter) ReceiveMessage(ctx context.Context, message, attestation []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.mintTxHash, nil
}

func TestCrossChainAdapter_CanHandle(t *testing.T) {
	a := NewCrossChainAdapter(&fakeBurner{}, &fakeAttester{}, &fakeMinter{}, NewTransferAdapter(&fakeTransferProvider{}))

	if a.CanHandle(router.Request{SourceNetwork: types.NetworkETH, Recipient: "0x1"}) {
		t.Fatalf("a same-network request is not cross-chain")
	}
	if !a.CanHandle(router.Request{SourceNetwork: types.NetworkETH, DestinationNetwork: types.NetworkBase, Recipient: "0x1"}) {
		t.Fatalf("expected a supported source/destination pair to be handled")
	}
	if a.CanHandle(router.Request{SourceNetwork: types.NetworkETH, DestinationNetwork: types.Network("unsupported"), Recipient: "0x1"}) {
		t.Fatalf("an unsupported destination domain must not be handled")
	}
}

func TestCrossChainAdapter_ExecuteBurnAttestMint(t *testing.T) {
	burner := &fakeBurner{burnTxHash: "burn-1"}
	attester := &fakeAttester{message: []byte("msg"), attestation: []byte("att"), url: "https://attest.example/1"}
	minter := &fakeMinter{mintTxHash: "mint-1"}
	a := NewCrossChainAdapter(burner, attester, minter, NewTransferAdapter(&fakeTransferProvider{}))

	result, err := a.Execute(context.Background(), router.Request{
		WalletID: "wallet-1", Recipient: "0x2", Amount: money.Zero,
		SourceNetwork: types.NetworkETH, DestinationNetwork: types.NetworkBase,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.ProviderTxID != "burn-1" || result.OnChainTxHash != "mint-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Metadata["source_domain_id"] != uint32(0) || result.Metadata["destination_domain_id"] != uint32(6) {
		t.Fatalf("unexpected domain metadata: %+v", result.Metadata)
	}
}

func TestCrossChainAdapter_ExecuteDelegatesWhenSameNetwork(t *testing.T) {
	provider := &fakeTransferProvider{transfer: custody.TransferResponse{ProviderTxID: "ptx-1"}}
	a := NewCrossChainAdapter(&fakeBurner{}, &fakeAttester{}, &fakeMinter{}, NewTransferAdapter(provider))

	result, err := a.Execute(context.Background(), router.Request{
		WalletID: "wallet-1", Recipient: "0x1111111111111111111111111111111111111111",
		SourceNetwork: types.NetworkETH, DestinationNetwork: types.NetworkETH,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ProviderTxID != "ptx-1" {
		t.Fatalf("expected the transfer adapter's result to pass through, got %+v", result)
	}
}

func TestCrossChainAdapter_ExecutePropagatesAttestationTimeout(t *testing.T) {
	burner := &fakeBurner{burnTxHash: "burn-1"}
	attester := &fakeAttester{err: errors.New("attestation service unavailable")}
	a := NewCrossChainAdapter(burner, attester, &fakeMinter{}, NewTransferAdapter(&fakeTransferProvider{}))

	_, err := a.Execute(context.Background(), router.Request{
		WalletID: "wallet-1", Recipient: "0x2",
		SourceNetwork: types.NetworkETH, DestinationNetwork: types.NetworkBase,
	})
	if err == nil {
		t.Fatalf("expected the attestation failure to propagate")
	}
}
