package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/types"
)

type fakeSigner struct {
	signature string
	err       error
}

func (f fakeSigner) SignPayment(ctx context.Context, walletID string, descriptor PaymentRequirements) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.signature, nil
}

func TestX402Adapter_CanHandle(t *testing.T) {
	a := NewX402Adapter(nil, nil)
	if !a.CanHandle(router.Request{Recipient: "https://api.example.com/resource"}) {
		t.Fatalf("expected a URL recipient to be handled")
	}
	if a.CanHandle(router.Request{Recipient: "0x1111111111111111111111111111111111111111"}) {
		t.Fatalf("an address recipient must not be handled")
	}
	if a.CanHandle(router.Request{SourceNetwork: types.NetworkETH, DestinationNetwork: types.NetworkBase, Recipient: "https://api.example.com"}) {
		t.Fatalf("a cross-chain request must not be handled by x402")
	}
}

func TestX402Adapter_ExecuteFullFlow(t *testing.T) {
	paid := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerPaymentV1) != "" || r.Header.Get(headerPaymentSignatureV2) != "" {
			paid = true
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := json.Marshal(map[string]any{
			"requirements": map[string]string{
				"scheme":            "exact",
				"network":           "base",
				"maxAmountRequired": "1.50",
				"resource":          "/resource",
				"paymentAddress":    "0x2222222222222222222222222222222222222222",
			},
		})
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write(body)
	}))
	defer server.Close()

	a := NewX402Adapter(server.Client(), fakeSigner{signature: "signed-proof"})
	result, err := a.Execute(context.Background(), router.Request{WalletID: "wallet-1", Recipient: server.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.Metadata["x402_scheme"] != "exact" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !paid {
		t.Fatalf("expected the retry request to carry a payment header")
	}
}

func TestX402Adapter_ExecuteNoPaymentRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	a := NewX402Adapter(server.Client(), nil)
	result, err := a.Execute(context.Background(), router.Request{Recipient: server.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("a 2xx probe means no payment was required, expected success")
	}
}

func TestX402Adapter_ExecuteWithoutSignerFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"requirements": map[string]string{"scheme": "exact", "maxAmountRequired": "1.00", "paymentAddress": "0x2"},
		})
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write(body)
	}))
	defer server.Close()

	a := NewX402Adapter(server.Client(), nil)
	if _, err := a.Execute(context.Background(), router.Request{Recipient: server.URL}); err == nil {
		t.Fatalf("expected an error when no signer is configured and payment is required")
	}
}

func TestX402Adapter_SimulateNeverSigns(t *testing.T) {
	signed := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerPaymentV1) != "" {
			signed = true
		}
		body, _ := json.Marshal(map[string]any{
			"requirements": map[string]string{"scheme": "exact", "maxAmountRequired": "1.00", "network": "base", "paymentAddress": "0x2"},
		})
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write(body)
	}))
	defer server.Close()

	a := NewX402Adapter(server.Client(), fakeSigner{signature: "would-be-signed"})
	sim, err := a.Simulate(context.Background(), router.Request{Recipient: server.URL})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if !sim.WouldSucceed {
		t.Fatalf("expected the simulation to predict success, got %+v", sim)
	}
	if signed {
		t.Fatalf("Simulate must never send a signed payment header")
	}
}
