package custody

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/omniagent/agentpaycore/internal/money"
)

// transferABI is a minimal ERC20-style transfer surface, standing in for
// whatever custody contract an embedder actually deploys. It exists so the
// EVM implementation below has something concrete to bind to; production
// embedders pass their own ABI via EVMCustodyConfig.ABI.
const transferABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// EVMCustody is a custody.Provider backed directly by an EVM chain, the
// generalization of fiatrails/internal/escrow.EthClient (which binds a
// single MintEscrow ABI) to an arbitrary custody contract's transfer
// method. Embedders who don't run their own chain node instead implement
// custody.Provider against their wallet API and never need this type.
type EVMCustody struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	abi       abi.ABI
	address   common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
	network   string
}

// EVMCustodyConfig configures an EVMCustody instance.
type EVMCustodyConfig struct {
	RPCURL        string
	PrivateKeyHex string
	ContractAddr  string
	Network       string
	// ABI overrides transferABI when the deployed custody contract's
	// transfer entrypoint has a different signature.
	ABI string
}

// NewEVMCustody dials an EVM RPC endpoint and prepares a transactor, the
// same construction sequence as fiatrails/internal/escrow.NewEthClient.
func NewEVMCustody(ctx context.Context, cfg EVMCustodyConfig) (*EVMCustody, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("custody: rpc url is required")
	}
	if cfg.ContractAddr == "" {
		return nil, fmt.Errorf("custody: contract address is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("custody: private key is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("custody: dial rpc: %w", err)
	}

	abiSrc := cfg.ABI
	if abiSrc == "" {
		abiSrc = transferABI
	}
	parsedABI, err := abi.JSON(strings.NewReader(abiSrc))
	if err != nil {
		return nil, fmt.Errorf("custody: parse abi: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddr)
	bound := bind.NewBoundContract(address, parsedABI, cli, cli, cli)

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("custody: fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("custody: transactor: %w", err)
	}
	txOpts.Context = ctx

	return &EVMCustody{
		client:    cli,
		contract:  bound,
		abi:       parsedABI,
		address:   address,
		chainID:   chainID,
		transacts: txOpts,
		network:   cfg.Network,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("custody: parse private key: %w", err)
	}
	return key, nil
}

// Transfer calls the bound contract's transfer(to, value) method.
func (c *EVMCustody) Transfer(ctx context.Context, req TransferRequest) (TransferResponse, error) {
	if !common.IsHexAddress(req.Recipient) {
		return TransferResponse{}, fmt.Errorf("custody: invalid recipient address %q", req.Recipient)
	}

	amount, err := amountToWei(req.Amount)
	if err != nil {
		return TransferResponse{}, err
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "transfer", common.HexToAddress(req.Recipient), amount)
	if err != nil {
		return TransferResponse{}, fmt.Errorf("custody: transfer tx: %w", err)
	}

	return TransferResponse{
		ProviderTxID:  tx.Hash().Hex(),
		OnChainTxHash: tx.Hash().Hex(),
	}, nil
}

// Balance queries the wallet's native balance. Embedders running a token
// (not native-asset) custody contract override this via their own Provider.
func (c *EVMCustody) Balance(ctx context.Context, walletID string) (money.Amount, error) {
	if !common.IsHexAddress(walletID) {
		return money.Zero, fmt.Errorf("custody: invalid wallet address %q", walletID)
	}
	wei, err := c.client.BalanceAt(ctx, common.HexToAddress(walletID), nil)
	if err != nil {
		return money.Zero, fmt.Errorf("custody: balance at: %w", err)
	}
	return weiToAmount(wei), nil
}

// NetworkOf returns the network tag this custody instance was configured
// for; every wallet it knows about lives on the same chain.
func (c *EVMCustody) NetworkOf(_ context.Context, _ string) (string, error) {
	return c.network, nil
}

// Ping checks RPC connectivity.
func (c *EVMCustody) Ping(ctx context.Context) error {
	_, err := c.client.BlockNumber(ctx)
	return err
}

// amountToWei shifts a's decimal string into 18-decimal base units using
// big.Float arbitrary-precision arithmetic, never IEEE float64, so the
// conversion itself carries no rounding surprises beyond truncation to an
// integer base-unit count.
func amountToWei(a money.Amount) (*big.Int, error) {
	s := a.String()
	v, ok := new(big.Float).SetPrec(256).SetString(s)
	if !ok {
		return nil, fmt.Errorf("custody: cannot convert amount %q to wei", s)
	}
	weiFloat := new(big.Float).SetPrec(256).Mul(v, big.NewFloat(1e18))
	wei, _ := weiFloat.Int(nil)
	return wei, nil
}

func weiToAmount(wei *big.Int) money.Amount {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	return money.MustFromString(f.Text('f', int(money.Precision)))
}
