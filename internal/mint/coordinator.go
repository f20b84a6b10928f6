// Package mint runs the asynchronous mint state machine: it hands verified
// collections to the external chain and reconciles the outcome. Chain
// unavailability never blocks the reward path; points are settled before a
// record ever reaches this package.
package mint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/geomark-app/geomark/internal/models"
	"github.com/geomark-app/geomark/pkg/logger"
	"github.com/geomark-app/geomark/pkg/validation"
)

// Defaults for the polling and reconciliation loops.
const (
	DefaultPickupInterval    = 15 * time.Second
	DefaultConfirmAttempts   = 10
	DefaultConfirmBackoff    = 6 * time.Second
	DefaultReconcileInterval = 5 * time.Minute
	DefaultReconcileAge      = 10 * time.Minute
	DefaultBatchSize         = 20

	// submitTimeout bounds one chain submission.
	submitTimeout = 30 * time.Second
)

// Options tunes the coordinator loops. Zero fields fall back to defaults.
type Options struct {
	PickupInterval    time.Duration
	ConfirmAttempts   int
	ConfirmBackoff    time.Duration
	ReconcileInterval time.Duration
	ReconcileAge      time.Duration
	BatchSize         int
}

func (o Options) withDefaults() Options {
	if o.PickupInterval <= 0 {
		o.PickupInterval = DefaultPickupInterval
	}
	if o.ConfirmAttempts <= 0 {
		o.ConfirmAttempts = DefaultConfirmAttempts
	}
	if o.ConfirmBackoff <= 0 {
		o.ConfirmBackoff = DefaultConfirmBackoff
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = DefaultReconcileInterval
	}
	if o.ReconcileAge <= 0 {
		o.ReconcileAge = DefaultReconcileAge
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Coordinator drives records through
// PENDING -> MINTING -> {CONFIRMING -> MINTED | FAILED} | FAILED.
// It shares no lock with the synchronous collect path.
type Coordinator struct {
	logger *logger.Logger
	repo   models.Repository
	chain  models.ChainClient
	alerts models.AlertService
	opts   Options
}

// NewCoordinator creates a mint coordinator.
func NewCoordinator(repo models.Repository, chain models.ChainClient, alerts models.AlertService, logger *logger.Logger, opts Options) *Coordinator {
	return &Coordinator{
		repo:   repo,
		chain:  chain,
		alerts: alerts,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// Start runs the pickup and reconciliation loops until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.opts.PickupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.ProcessPending(ctx); err != nil {
					c.logger.Error("Failed to process pending mints ", "error ", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(c.opts.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.Reconcile(ctx); err != nil {
					c.logger.Error("Failed to reconcile confirming mints ", "error ", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ProcessPending picks up PENDING records, oldest first, and runs each
// through the state machine.
func (c *Coordinator) ProcessPending(ctx context.Context) error {
	records, err := c.repo.ListCollectionsByMintStatus(models.MintStatusPending, c.opts.BatchSize)
	if err != nil {
		return err
	}
	for _, record := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.ProcessRecord(ctx, record); err != nil {
			c.logger.Error("Mint processing failed ", "record ", record.ID, " error ", err)
		}
	}
	return nil
}

// ProcessRecord advances one record. Every terminal transition is
// persisted before returning; an exhausted confirmation bound leaves the
// record in CONFIRMING for the reconciliation loop.
func (c *Coordinator) ProcessRecord(ctx context.Context, record *models.CollectionRecord) error {
	// Without a live chain the record is still completed so downstream
	// consumers of tokenId keep working.
	if !c.chain.Enabled() {
		token := "local-" + uuid.NewString()
		if err := c.repo.UpdateMintState(record.ID, models.MintStatusMinted, token, ""); err != nil {
			return err
		}
		c.logger.Debug("Chain disabled, minted locally ", "record ", record.ID, " token ", token)
		return nil
	}

	user, err := c.repo.GetUser(record.UserID)
	if err != nil {
		return err
	}
	location, err := c.repo.GetLocation(record.LocationID)
	if err != nil {
		return err
	}

	if err := c.repo.UpdateMintState(record.ID, models.MintStatusMinting, "", ""); err != nil {
		return err
	}

	if user == nil || user.WalletAddress == "" {
		return c.fail(record, fmt.Errorf("user %s has no wallet address", record.UserID))
	}
	if err := validation.ValidateAddress(user.WalletAddress); err != nil {
		return c.fail(record, fmt.Errorf("user %s has an invalid wallet address: %w", record.UserID, err))
	}
	metadataURI := ""
	if location != nil {
		metadataURI = location.MetadataURI
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	txHash, err := c.chain.SubmitMint(submitCtx, user.WalletAddress, metadataURI)
	cancel()
	if err != nil {
		// No retry loop here: points are already settled, the mint is a
		// bonus on-chain record. Retrying is an operator decision.
		return c.fail(record, fmt.Errorf("mint submission failed: %w", err))
	}

	if err := c.repo.UpdateMintState(record.ID, models.MintStatusConfirming, "", txHash); err != nil {
		return err
	}
	c.logger.Info("Mint submitted ", "record ", record.ID, " tx ", txHash)

	return c.awaitReceipt(ctx, record, txHash, c.opts.ConfirmAttempts)
}

// awaitReceipt polls for the transaction receipt with fixed backoff, up to
// maxAttempts. Exhausting the bound is not a failure: the transaction may
// still land, so the record stays in CONFIRMING.
func (c *Coordinator) awaitReceipt(ctx context.Context, record *models.CollectionRecord, txHash string, maxAttempts int) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		receipt, err := c.chain.MintReceipt(ctx, txHash)
		if err == nil {
			if !receipt.Succeeded {
				return c.fail(record, fmt.Errorf("mint transaction %s reverted", txHash))
			}
			if err := c.repo.UpdateMintState(record.ID, models.MintStatusMinted, receipt.TokenID, txHash); err != nil {
				return err
			}
			c.logger.Info("Mint confirmed ", "record ", record.ID, " token ", receipt.TokenID, " block ", receipt.BlockNumber)
			return nil
		}
		if !errors.Is(err, models.ErrReceiptPending) {
			c.logger.Warn("Receipt poll failed ", "record ", record.ID, " attempt ", attempt+1, " error ", err)
		}

		select {
		case <-time.After(c.opts.ConfirmBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.logger.Warn("Confirmation bound exhausted, leaving record in CONFIRMING ", "record ", record.ID, " tx ", txHash)
	return nil
}

// Reconcile re-polls CONFIRMING records whose last state change is older
// than the configured age. This is the requeue path for transactions that
// outlived the synchronous confirmation bound.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	cutoff := time.Now().Add(-c.opts.ReconcileAge).Unix()
	records, err := c.repo.ListStuckConfirming(cutoff, c.opts.BatchSize)
	if err != nil {
		return err
	}
	for _, record := range records {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if record.TxHash == "" {
			// CONFIRMING without a transaction hash should be impossible.
			c.alert(fmt.Sprintf("Mint record %s is CONFIRMING without a tx hash; operator attention required", record.ID))
			continue
		}
		c.logger.Info("Reconciling confirming mint ", "record ", record.ID, " tx ", record.TxHash)
		if err := c.awaitReceipt(ctx, record, record.TxHash, 1); err != nil {
			c.logger.Error("Reconciliation poll failed ", "record ", record.ID, " error ", err)
		}
	}
	return nil
}

func (c *Coordinator) fail(record *models.CollectionRecord, cause error) error {
	c.logger.Error("Mint failed ", "record ", record.ID, " error ", cause)
	if err := c.repo.UpdateMintState(record.ID, models.MintStatusFailed, "", ""); err != nil {
		return err
	}
	c.alert(fmt.Sprintf("Mint failed for record %s: %v", record.ID, cause))
	return nil
}

func (c *Coordinator) alert(message string) {
	if c.alerts != nil {
		c.alerts.Alert(message)
	}
}
