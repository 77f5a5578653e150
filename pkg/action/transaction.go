// Package action implements the three-phase action-handler contract and
// the per-transaction pipeline that drives it: parse, check_stateless
// (parallel), check_stateful (sequential against the block overlay),
// execute (sequential against a per-tx delta), then merge-or-discard.
package action

import (
	"github.com/shieldnet/core/pkg/apperrors"
	"github.com/shieldnet/core/pkg/component/chain"
	"github.com/shieldnet/core/pkg/component/shieldedpool"
	"github.com/shieldnet/core/pkg/store"
	"github.com/shieldnet/core/pkg/wire"
)

// ApplyTransaction runs the full five-step pipeline for one decoded
// transaction against the block's overlay, merging a per-tx delta on
// success or discarding it on any tx-fatal error. A block-fatal error
// (apperrors.IsBlockFatal) must halt the node rather than simply reject the
// transaction; callers should check for it on return.
func ApplyTransaction(blockOverlay *store.Layer, comps *Components, tx wire.Transaction) error {
	if err := checkEnvelope(blockOverlay, tx); err != nil {
		return err
	}

	handlers := make([]Handler, len(tx.Body.Actions))
	for i, a := range tx.Body.Actions {
		h, err := NewHandler(a.Kind, a.Payload, comps)
		if err != nil {
			return err
		}
		handlers[i] = h
	}

	if errs := runStatelessPool(handlers); errs != nil {
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}

	for _, h := range handlers {
		if err := h.CheckStateful(blockOverlay); err != nil {
			return err
		}
	}

	balances := make([]int64, len(handlers))
	for i, h := range handlers {
		balances[i] = h.NativeBalance()
	}
	if err := shieldedpool.CheckBalance(balances, tx.Body.Fee); err != nil {
		return err
	}

	delta := blockOverlay.BeginTransaction()
	for _, h := range handlers {
		if err := h.Execute(delta); err != nil {
			store.DiscardTransaction(delta)
			return err
		}
	}
	blockOverlay.CommitTransaction(delta)
	return nil
}

// checkEnvelope enforces the transaction-wide structural rules ahead of any
// per-action check: chain id, expiry height, and the fmd-clues/memo
// accounting spec.md ties to the outputs in the action list.
func checkEnvelope(r store.Reader, tx wire.Transaction) error {
	params, err := chain.LoadParams(r)
	if err != nil {
		return err
	}
	if tx.Body.ChainID != params.ChainID {
		return apperrors.Tx(apperrors.ErrChainIDMismatch, "transaction chain_id does not match this chain")
	}

	height, err := chain.BlockHeight(r)
	if err != nil {
		return err
	}
	if tx.Body.ExpiryHeight != 0 && uint64(height) > tx.Body.ExpiryHeight {
		return apperrors.Tx(apperrors.ErrExpiredTransaction, "transaction expiry height has passed")
	}

	outputCount := 0
	for _, a := range tx.Body.Actions {
		if a.Kind == wire.ActionOutput {
			outputCount++
		}
	}
	if tx.Body.FmdClues != outputCount {
		return apperrors.Tx(apperrors.ErrMalformedAction, "fmd_clues count does not match output count")
	}
	if outputCount > 0 && len(tx.Body.Memo) == 0 {
		return apperrors.Tx(apperrors.ErrMalformedAction, "transaction with outputs must carry a memo")
	}

	if len(tx.BindingSig) == 0 {
		return apperrors.Tx(apperrors.ErrInvalidSignature, "transaction is missing a binding signature")
	}

	return nil
}
