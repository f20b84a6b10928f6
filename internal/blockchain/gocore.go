package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/core-coin/go-core/v2"
	"github.com/core-coin/go-core/v2/accounts/abi"
	"github.com/core-coin/go-core/v2/accounts/abi/bind"
	"github.com/core-coin/go-core/v2/common"
	"github.com/core-coin/go-core/v2/core/types"
	"github.com/core-coin/go-core/v2/crypto"
	"github.com/core-coin/go-core/v2/xcbclient"

	"github.com/geomark-app/geomark/internal/config"
	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
)

// Gocore talks to a Core blockchain node and mints collectible tokens.
// When the chain integration is disabled it connects to nothing and the
// mint coordinator completes records locally.
type Gocore struct {
	logger *logger.Logger
	config *config.Config
	client *xcbclient.Client

	parsedABI   abi.ABI
	collectible *bind.BoundContract
	signer      *bind.TransactOpts
}

// NewGocore creates a new Gocore instance. Call Run before use.
func NewGocore(config *config.Config, logger *logger.Logger) *Gocore {
	return &Gocore{config: config, logger: logger}
}

func (g *Gocore) Run() error {
	if !g.config.ChainEnabled {
		g.logger.Info("Chain integration disabled, mints will complete locally")
		return nil
	}
	err := g.ConnectToRPC()
	if err != nil {
		return fmt.Errorf("failed to connect to the core RPC server: %w", err)
	}
	err = g.BuildBindings()
	if err != nil {
		return fmt.Errorf("failed to build bindings: %w", err)
	}
	err = g.BuildSigner()
	if err != nil {
		return fmt.Errorf("failed to build the mint signer: %w", err)
	}
	return nil
}

func (g *Gocore) ConnectToRPC() error {
	client, err := xcbclient.Dial(g.config.ChainRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to the core RPC server: %w", err)
	}
	g.client = client
	return nil
}

func (g *Gocore) BuildBindings() error {
	contractAddress, err := common.HexToAddress(g.config.CollectibleContractAddress)
	if err != nil {
		return fmt.Errorf("failed to parse collectible contract address: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(CollectibleABI))
	if err != nil {
		return fmt.Errorf("failed to parse collectible ABI: %w", err)
	}
	g.parsedABI = parsedABI

	g.collectible = bind.NewBoundContract(contractAddress, parsedABI, g.client, g.client, g.client)

	return nil
}

func (g *Gocore) BuildSigner() error {
	key, err := crypto.UnmarshalPrivateKeyHex(g.config.MintSignerKey)
	if err != nil {
		return fmt.Errorf("failed to parse mint signer key: %w", err)
	}
	signer, err := bind.NewKeyedTransactorWithNetworkID(key, g.config.NetworkID)
	if err != nil {
		return fmt.Errorf("failed to build the mint signer: %w", err)
	}
	g.signer = signer
	return nil
}

// Enabled reports whether the chain integration is active.
func (g *Gocore) Enabled() bool {
	return g.config.ChainEnabled
}

// SubmitMint submits a mint transaction for the recipient and returns the
// transaction hash. The transaction is not confirmed yet when this returns.
func (g *Gocore) SubmitMint(ctx context.Context, recipient string, metadataURI string) (string, error) {
	to, err := common.HexToAddress(recipient)
	if err != nil {
		return "", fmt.Errorf("failed to parse recipient address: %w", err)
	}

	opts := *g.signer
	opts.Context = ctx

	tx, err := g.collectible.Transact(&opts, "mint", to, metadataURI)
	if err != nil {
		return "", fmt.Errorf("failed to submit mint transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// MintReceipt looks up the receipt of a mint transaction. A transaction
// that has not been included yet returns models.ErrReceiptPending.
func (g *Gocore) MintReceipt(ctx context.Context, txHash string) (*models.MintReceipt, error) {
	hash := common.HexToHash(txHash)
	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, core.NotFound) {
			return nil, models.ErrReceiptPending
		}
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	out := &models.MintReceipt{
		TxHash:      txHash,
		Succeeded:   receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
	}
	if out.Succeeded {
		out.TokenID = mintedTokenID(g.parsedABI, receipt)
	}
	return out, nil
}

// AddressBalance returns how many collectible tokens the address holds.
func (g *Gocore) AddressBalance(ctx context.Context, address string) (*big.Int, error) {
	owner, err := common.HexToAddress(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner address: %w", err)
	}

	results := []interface{}{}
	err = g.collectible.Call(&bind.CallOpts{Context: ctx}, &results, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	balance := results[0].(*big.Int)
	return balance, nil
}

var _ models.ChainClient = (*Gocore)(nil)

func (g *Gocore) Close() error {
	if g.client != nil {
		g.client.Close()
	}
	return nil
}
