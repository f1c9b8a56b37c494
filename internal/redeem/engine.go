// Package redeem settles vendors' redeem requests exactly once per committed chain.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/congo-pay/payword/internal/commitment"
	"github.com/congo-pay/payword/internal/hashchain"
	"github.com/congo-pay/payword/internal/ledger"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/notification"
	"github.com/congo-pay/payword/internal/payments"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/registry"
)

// VendorDirectory resolves the vendor a commitment names.
type VendorDirectory interface {
	Vendor(ctx context.Context, id protocol.Identity) (registry.Record, error)
}

// Outcome describes a settled redemption.
type Outcome struct {
	Root          hashchain.Payword
	Amount        int64
	TransactionID string
	UserBalance   int64
	VendorBalance int64
}

// Engine verifies and settles redeem requests.
type Engine struct {
	commits  *commitment.Verifier
	hasher   hashchain.Hasher
	vendors  VendorDirectory
	ledger   ledger.Ledger
	store    Store
	locks    *keyedMutex
	maxChain int
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine wires an engine. notifier and m may be nil.
func NewEngine(commits *commitment.Verifier, hasher hashchain.Hasher, vendors VendorDirectory, led ledger.Ledger, store Store, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		commits:  commits,
		hasher:   hasher,
		vendors:  vendors,
		ledger:   led,
		store:    store,
		locks:    newKeyedMutex(),
		maxChain: commitment.DefaultMaxChainLength,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// SetMaxChainLength bounds the chain length of redeemable commitments. n <= 0
// keeps the default.
func (e *Engine) SetMaxChainLength(n int) {
	if n > 0 {
		e.maxChain = n
	}
}

// Redeem runs the verification gates in order and settles the request. No
// balance changes unless every gate passes, and a chain root is paid at most
// once however many requests reference it.
func (e *Engine) Redeem(ctx context.Context, req payments.RedeemRequest) (Outcome, error) {
	out, err := e.redeem(ctx, req)
	reason := protocol.Reason(err)
	e.metrics.Redemption(reason, out.Amount)

	attrs := []any{
		"vendor", req.Commitment.VendorIdentity.String(),
		"user", req.Commitment.User().String(),
		"denomination", int(req.Link.Denomination),
		"index", req.Link.Index,
	}
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "redeem settled", append(attrs, "root", out.Root.String(), "amount", out.Amount, "tx", out.TransactionID)...)
	case errors.Is(err, protocol.ErrAlreadyRedeemed):
		e.logger.InfoContext(ctx, "redeem duplicate", attrs...)
	case reason == protocol.ReasonInternal:
		e.logger.ErrorContext(ctx, "redeem failed", append(attrs, "error", err)...)
	default:
		e.logger.WarnContext(ctx, "redeem rejected", append(attrs, "reason", reason, "error", err)...)
	}
	return out, err
}

func (e *Engine) redeem(ctx context.Context, req payments.RedeemRequest) (Outcome, error) {
	if err := req.Commitment.CheckChainLength(e.maxChain); err != nil {
		return Outcome{}, err
	}
	holder, err := e.commits.Verify(req.Commitment)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", protocol.ErrUntrustedCommitment, err)
	}

	root, err := req.Root()
	if err != nil {
		return Outcome{}, err
	}
	link := req.Link
	if link.Index > req.Commitment.ChainLength-2 ||
		!e.hasher.VerifyRedemption(root, link.Payword, link.Steps()) {
		return Outcome{}, fmt.Errorf("%w: root %s index %d", protocol.ErrBrokenChain, root, link.Index)
	}

	vendor, err := e.vendors.Vendor(ctx, req.Commitment.VendorIdentity)
	if err != nil {
		return Outcome{}, err
	}

	unlock := e.locks.Lock(root)
	defer unlock()

	claimed, err := e.store.Claim(ctx, root)
	if err != nil {
		return Outcome{}, err
	}
	if !claimed {
		return Outcome{}, fmt.Errorf("%w: root %s", protocol.ErrAlreadyRedeemed, root)
	}

	amount := link.Value()
	res, err := e.ledger.Transfer(ctx, ledger.TransferInput{
		From:       ledger.AccountCode(holder.AccountNumber),
		To:         ledger.AccountCode(vendor.AccountNumber),
		Kind:       ledger.KindRedeem,
		ClientTxID: root.String(),
		Amount:     amount,
		Overdraft:  holder.CreditLimit,
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicateTransaction):
		// Settled earlier by another instance or before the store was populated.
		if cerr := e.store.Confirm(ctx, root, res.TransactionID); cerr != nil {
			e.logger.ErrorContext(ctx, "confirm redeemed root", "root", root.String(), "error", cerr)
		}
		return Outcome{}, fmt.Errorf("%w: root %s", protocol.ErrAlreadyRedeemed, root)
	case err != nil:
		if rerr := e.store.Release(ctx, root); rerr != nil {
			e.logger.ErrorContext(ctx, "release root claim", "root", root.String(), "error", rerr)
		}
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return Outcome{}, fmt.Errorf("%w: %d exceeds credit of account %d", protocol.ErrInsufficientCredit, amount, holder.AccountNumber)
		case errors.Is(err, ledger.ErrAccountNotFound):
			return Outcome{}, fmt.Errorf("%w: %w", protocol.ErrUnknownIdentity, err)
		}
		return Outcome{}, fmt.Errorf("settle root %s: %w", root, err)
	}

	// The ledger's unique transaction key keeps the root settled even if this fails.
	if err := e.store.Confirm(ctx, root, res.TransactionID); err != nil {
		e.logger.ErrorContext(ctx, "confirm redeemed root", "root", root.String(), "error", err)
	}

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindRedeemSettled,
			Destination: vendor.Identity.String(),
			Body:        fmt.Sprintf("chain %s settled for %d", root, amount),
			Attrs:       map[string]any{"amount": amount, "account": vendor.AccountNumber},
		})
	}

	return Outcome{
		Root:          root,
		Amount:        amount,
		TransactionID: res.TransactionID,
		UserBalance:   res.FromBalance,
		VendorBalance: res.ToBalance,
	}, nil
}
