package intent

import (
	"encoding/json"
	"time"

	"github.com/omniagent/agentpaycore/internal/money"
	"github.com/omniagent/agentpaycore/internal/types"
)

type wireIntent struct {
	ID                 string         `json:"id"`
	WalletID           string         `json:"wallet_id"`
	WalletSetID        string         `json:"wallet_set_id"`
	Recipient          string         `json:"recipient"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
	Status             string         `json:"status"`
	ReservedAmount     string         `json:"reserved_amount"`
	CreatedAt          time.Time      `json:"created_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
	Metadata           map[string]any `json:"metadata"`
	ClientSecret       string         `json:"client_secret"`
	CancelReason       string         `json:"cancel_reason"`
	Purpose            string         `json:"purpose"`
	DestinationNetwork string         `json:"destination_network"`
	Strategy           string         `json:"strategy"`
	CCTPFastMode       bool           `json:"cctp_fast_mode"`
}

func encodeIntent(in *types.PaymentIntent) ([]byte, error) {
	w := wireIntent{
		ID:                 in.ID,
		WalletID:           in.WalletID,
		WalletSetID:        in.WalletSetID,
		Recipient:          in.Recipient,
		Amount:             in.Amount.String(),
		Currency:           in.Currency,
		Status:             string(in.Status),
		ReservedAmount:     in.ReservedAmount.String(),
		CreatedAt:          in.CreatedAt,
		ExpiresAt:          in.ExpiresAt,
		Metadata:           in.Metadata,
		ClientSecret:       in.ClientSecret,
		CancelReason:       in.CancelReason,
		Purpose:            in.Purpose,
		DestinationNetwork: string(in.DestinationNetwork),
		Strategy:           string(in.Strategy),
		CCTPFastMode:       in.CCTPFastMode,
	}
	return json.Marshal(w)
}

func decodeIntent(raw []byte) (*types.PaymentIntent, error) {
	var w wireIntent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	amount, err := money.NewFromString(w.Amount)
	if err != nil {
		return nil, err
	}
	reserved := money.Zero
	if w.ReservedAmount != "" {
		reserved, err = money.NewFromString(w.ReservedAmount)
		if err != nil {
			return nil, err
		}
	}
	return &types.PaymentIntent{
		ID:                 w.ID,
		WalletID:           w.WalletID,
		WalletSetID:        w.WalletSetID,
		Recipient:          w.Recipient,
		Amount:             amount,
		Currency:           w.Currency,
		Status:             types.PaymentIntentStatus(w.Status),
		ReservedAmount:     reserved,
		CreatedAt:          w.CreatedAt,
		ExpiresAt:          w.ExpiresAt,
		Metadata:           w.Metadata,
		ClientSecret:       w.ClientSecret,
		CancelReason:       w.CancelReason,
		Purpose:            w.Purpose,
		DestinationNetwork: types.Network(w.DestinationNetwork),
		Strategy:           types.ResilienceStrategy(w.Strategy),
		CCTPFastMode:       w.CCTPFastMode,
	}, nil
}
