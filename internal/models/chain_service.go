package models

import (
	"context"
	"math/big"
)

// MintReceipt is the outcome of a confirmed mint transaction.
type MintReceipt struct {
	// TxHash is the hash of the mint transaction.
	TxHash string
	// Succeeded reports whether the chain executed the transaction
	// successfully. False means the transaction reverted.
	Succeeded bool
	// TokenID is the minted token identifier extracted from the
	// transfer event log. Empty when Succeeded is false.
	TokenID string
	// BlockNumber is the block the transaction was included in.
	BlockNumber uint64
}

// ChainClient abstracts the external blockchain used to mint collectibles.
// Chain unavailability must never block the reward path; callers treat all
// errors as mint-path failures only.
type ChainClient interface {
	// Enabled reports whether a live chain is configured. When false the
	// mint coordinator short-circuits to a locally generated token id.
	Enabled() bool

	// SubmitMint submits a signed mint transaction for the recipient and
	// metadata URI and returns the transaction hash.
	SubmitMint(ctx context.Context, recipient string, metadataURI string) (string, error)

	// MintReceipt fetches the receipt of a previously submitted mint.
	// Returns ErrReceiptPending while the transaction is not yet included
	// in a block.
	MintReceipt(ctx context.Context, txHash string) (*MintReceipt, error)

	// AddressBalance returns the collectible balance of an address.
	AddressBalance(ctx context.Context, address string) (*big.Int, error)
}

// AlertService delivers operator-facing alerts (mint failures, stuck
// confirmations). Implementations must be safe for concurrent use.
type AlertService interface {
	Alert(message string)
}
