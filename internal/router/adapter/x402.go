package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/omniagent/agentpaycore/internal/apperr"
	"github.com/omniagent/agentpaycore/internal/obslog"
	"github.com/omniagent/agentpaycore/internal/router"
	"github.com/omniagent/agentpaycore/internal/types"
)

// X402Priority loses to TransferPriority's specificity only in that a URL
// recipient never matches the transfer adapter's address shapes, so the
// ordering mainly matters as a tie-breaker document (spec §4.8).
const X402Priority = 10

const (
	headerPaymentRequiredV1 = "X-Payment-Required"
	headerPaymentV1         = "X-Payment"
	headerPaymentSignatureV2 = "PAYMENT-SIGNATURE"
)

// PaymentSigner produces the signed payment proof the x402 flow attaches
// to the retried request, using the custody wallet's identity. The core
// does not prescribe the signing scheme beyond the descriptor it is given.
type PaymentSigner interface {
	SignPayment(ctx context.Context, walletID string, descriptor PaymentRequirements) (string, error)
}

// PaymentRequirements is the payment descriptor parsed from a 402
// response, grounded on omniclaw/protocols/x402.py's PaymentRequirements.
type PaymentRequirements struct {
	Scheme            string
	Network           string
	MaxAmountRequired string
	Resource          string
	Description       string
	Recipient         string
}

// X402Adapter implements the HTTP-402 payment protocol: probe, parse,
// sign, retry. Grounded on omniclaw/protocols/x402.py's ProtocolAdapter,
// generalized to use an injected http.Client and PaymentSigner.
type X402Adapter struct {
	client *http.Client
	signer PaymentSigner
	log    *obslog.Logger
}

// NewX402Adapter constructs an X402Adapter. A nil client is replaced by a
// new http.Client with a 10s timeout.
func NewX402Adapter(client *http.Client, signer PaymentSigner) *X402Adapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &X402Adapter{client: client, signer: signer, log: obslog.New("adapter.x402")}
}

func (a *X402Adapter) Method() types.PaymentMethod { return types.MethodX402 }
func (a *X402Adapter) Priority() int                { return X402Priority }

func (a *X402Adapter) CanHandle(req router.Request) bool {
	if req.IsCrossChain() {
		return false
	}
	return router.IsURL(req.Recipient)
}

// probe issues the unauthenticated request and returns the raw response.
// Its callers classify it: 402 with a parseable descriptor, any other >=400
// status is a protocol error, and 2xx means no payment was actually
// required.
func (a *X402Adapter) probe(ctx context.Context, url string) (*http.Response, error) {
	reqHTTP, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return a.client.Do(reqHTTP)
}

func (a *X402Adapter) parseRequirements(resp *http.Response) (PaymentRequirements, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PaymentRequirements{}, apperr.Wrap(apperr.KindProtocolError, "read 402 body", err)
	}

	var v2 struct {
		Requirements *struct {
			Scheme            string `json:"scheme"`
			Network           string `json:"network"`
			MaxAmountRequired string `json:"maxAmountRequired"`
			Amount            string `json:"amount"`
			Resource          string `json:"resource"`
			Description       string `json:"description"`
			PaymentAddress    string `json:"paymentAddress"`
			Recipient         string `json:"recipient"`
		} `json:"requirements"`
	}
	if json.Unmarshal(body, &v2) == nil && v2.Requirements != nil {
		r := v2.Requirements
		amount := r.MaxAmountRequired
		if amount == "" {
			amount = r.Amount
		}
		recipient := r.PaymentAddress
		if recipient == "" {
			recipient = r.Recipient
		}
		return PaymentRequirements{Scheme: r.Scheme, Network: r.Network, MaxAmountRequired: amount, Resource: r.Resource, Description: r.Description, Recipient: recipient}, nil
	}

	if header := resp.Header.Get(headerPaymentRequiredV1); header != "" {
		return a.parseV1Header(header)
	}

	return PaymentRequirements{}, apperr.New(apperr.KindProtocolError, "no valid x402 payment requirements in 402 response body or header")
}

func (a *X402Adapter) parseV1Header(header string) (PaymentRequirements, error) {
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return PaymentRequirements{}, apperr.Wrap(apperr.KindProtocolError, "decode v1 payment header", err)
	}
	var data struct {
		Scheme            string `json:"scheme"`
		Network           string `json:"network"`
		MaxAmountRequired string `json:"maxAmountRequired"`
		Resource          string `json:"resource"`
		Description       string `json:"description"`
		PaymentAddress    string `json:"paymentAddress"`
	}
	if err := json.Unmarshal(decoded, &data); err != nil {
		return PaymentRequirements{}, apperr.Wrap(apperr.KindProtocolError, "parse v1 payment header", err)
	}
	return PaymentRequirements{Scheme: data.Scheme, Network: data.Network, MaxAmountRequired: data.MaxAmountRequired, Resource: data.Resource, Description: data.Description, Recipient: data.PaymentAddress}, nil
}

// Simulate probes the URL and parses the descriptor but never signs or
// retries, so the counterparty sees no payment attempt.
func (a *X402Adapter) Simulate(ctx context.Context, req router.Request) (router.SimulateResult, error) {
	resp, err := a.probe(ctx, req.Recipient)
	if err != nil {
		return router.SimulateResult{WouldSucceed: false, Route: types.MethodX402, Reason: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		if resp.StatusCode >= 400 {
			return router.SimulateResult{WouldSucceed: false, Route: types.MethodX402, Reason: fmt.Sprintf("probe returned %d", resp.StatusCode)}, nil
		}
		return router.SimulateResult{WouldSucceed: true, Route: types.MethodX402, Reason: "resource does not require payment"}, nil
	}

	reqs, err := a.parseRequirements(resp)
	if err != nil {
		return router.SimulateResult{WouldSucceed: false, Route: types.MethodX402, Reason: err.Error()}, nil
	}
	return router.SimulateResult{WouldSucceed: true, Route: types.MethodX402, Reason: fmt.Sprintf("would pay %s on %s", reqs.MaxAmountRequired, reqs.Network)}, nil
}

// Execute runs the full probe -> parse -> sign -> retry flow.
func (a *X402Adapter) Execute(ctx context.Context, req router.Request) (types.PaymentResult, error) {
	resp, err := a.probe(ctx, req.Recipient)
	if err != nil {
		return types.PaymentResult{}, apperr.Wrap(apperr.KindNetworkError, "x402 probe", err)
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return types.PaymentResult{}, apperr.New(apperr.KindProtocolError, fmt.Sprintf("x402 probe returned %d, expected 402", resp.StatusCode))
		}
		return types.PaymentResult{Success: true, Status: types.StatusCompleted, Method: types.MethodX402, Amount: req.Amount, Recipient: req.Recipient}, nil
	}

	reqs, err := a.parseRequirements(resp)
	if err != nil {
		return types.PaymentResult{}, err
	}

	if a.signer == nil {
		return types.PaymentResult{}, apperr.New(apperr.KindProtocolError, "x402 adapter has no payment signer configured")
	}
	signed, err := a.signer.SignPayment(ctx, req.WalletID, reqs)
	if err != nil {
		return types.PaymentResult{}, apperr.Wrap(apperr.KindProtocolError, "sign x402 payment", err)
	}

	retryReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Recipient, nil)
	if err != nil {
		return types.PaymentResult{}, err
	}
	// Both header schemes are attached; the server reads whichever it
	// understands (spec §4.8: "both must be supported").
	retryReq.Header.Set(headerPaymentV1, signed)
	retryReq.Header.Set(headerPaymentSignatureV2, signed)

	retryResp, err := a.client.Do(retryReq)
	if err != nil {
		return types.PaymentResult{}, apperr.Wrap(apperr.KindNetworkError, "x402 retry", err)
	}
	defer retryResp.Body.Close()

	if retryResp.StatusCode >= 400 {
		return types.PaymentResult{}, apperr.New(apperr.KindProtocolError, fmt.Sprintf("x402 retry with payment proof returned %d", retryResp.StatusCode))
	}

	a.log.Printf("x402 payment settled for %s, resource=%s", req.Recipient, reqs.Resource)
	return types.PaymentResult{
		Success:   true,
		Status:    types.StatusCompleted,
		Method:    types.MethodX402,
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Metadata: map[string]any{
			"x402_scheme":  reqs.Scheme,
			"x402_network": reqs.Network,
			"x402_resource": reqs.Resource,
		},
	}, nil
}
