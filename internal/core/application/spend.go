package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	log "github.com/sirupsen/logrus"
)

var voicemailViews = []domain.View{
	domain.InboxView, domain.SentView, domain.ArchivedView,
}

func (s *service) RedeemAndArchive(
	ctx context.Context, outpoint domain.Outpoint,
) (domain.Outpoint, error) {
	const op = "redeem"

	record, err := s.spendable(ctx, op, outpoint, domain.InboxView)
	if err != nil {
		return domain.Outpoint{}, err
	}
	vm, ok := record.(*domain.Voicemail)
	if !ok {
		return domain.Outpoint{}, domain.NewOperationError(op, outpoint, domain.ErrMalformedToken, fmt.Errorf("not a voicemail"))
	}

	if vm.Satoshis <= s.config.ArchiveFee {
		return domain.Outpoint{}, domain.NewOperationError(
			op, outpoint, domain.ErrSpendConstruction,
			fmt.Errorf("value %d does not cover archive fee %d", vm.Satoshis, s.config.ArchiveFee),
		)
	}

	archivedNs := domain.MustNamespaceFor(domain.VoicemailArchivedCopy)
	archivedKey := domain.NewKeyRef(archivedNs.Name, domain.SelfCounterparty)
	note := ""
	if vm.HasNote {
		note = vm.Note
	}
	timestamp := vm.Timestamp
	if vm.TimestampUnknown {
		timestamp = time.Time{}
	}
	script, err := s.buildVoicemailToken(
		ctx, archivedKey, nil, vm.Audio, timestamp, note,
		withProtectedHead([]byte(vm.Sender)),
	)
	if err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, outpoint, domain.ErrSpendConstruction, err)
	}

	intent, err := domain.NewSpendIntent(&vm.Token, []domain.TokenOutput{{
		LockingScript: script,
		Satoshis:      vm.Satoshis - s.config.ArchiveFee,
		Basket:        archivedNs.DefaultBasket,
		Description:   "archived voicemail",
	}}, "redeem and archive voicemail")
	if err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, outpoint, domain.ErrSpendConstruction, err)
	}

	res, err := s.spend(ctx, op, intent)
	if err != nil {
		return domain.Outpoint{}, err
	}

	if _, err := vm.Lifecycle.Redeem(res.Txid); err != nil {
		log.WithError(err).Warnf("failed to update lifecycle of %s", outpoint)
	}
	s.cache.remove(domain.InboxView, outpoint)
	s.cache.invalidate(domain.ArchivedView)

	archived := domain.NewOutpoint(res.Txid, 0)
	log.Debugf("redeemed voicemail %s into %s", outpoint, archived)
	return archived, nil
}

func (s *service) Forget(ctx context.Context, outpoint domain.Outpoint) error {
	return s.forget(ctx, "forget", outpoint, voicemailViews...)
}

// forget spends the token at outpoint, found in any of views, without
// creating new outputs.
func (s *service) forget(
	ctx context.Context, op string, outpoint domain.Outpoint, views ...domain.View,
) error {
	record, err := s.spendable(ctx, op, outpoint, views...)
	if err != nil {
		return err
	}
	tok := record.GetToken()

	intent, err := domain.NewSpendIntent(tok, nil, op)
	if err != nil {
		return domain.NewOperationError(op, outpoint, domain.ErrSpendConstruction, err)
	}
	res, err := s.spend(ctx, op, intent)
	if err != nil {
		return err
	}

	if _, err := tok.Lifecycle.Forget(res.Txid); err != nil {
		log.WithError(err).Warnf("failed to update lifecycle of %s", outpoint)
	}
	view, _ := domain.ViewForBasket(tok.Basket)
	s.cache.remove(view, outpoint)

	log.Debugf("forgot %s with tx %s", outpoint, res.Txid)
	return nil
}

// spendable looks up the record at outpoint and checks that its output is
// still live in the wallet. The token is refreshed with the current proof
// bundle.
func (s *service) spendable(
	ctx context.Context, op string, outpoint domain.Outpoint, views ...domain.View,
) (domain.Record, error) {
	var record domain.Record
	for _, view := range views {
		if _, err := s.view(ctx, view); err != nil {
			return nil, domain.NewOperationError(op, outpoint, domain.ErrTransactionNotFound, err)
		}
		if r, ok := s.cache.find(view, outpoint); ok {
			record = r
			break
		}
	}
	if record == nil {
		return nil, domain.NewOperationError(op, outpoint, domain.ErrTransactionNotFound, nil)
	}

	tok := record.GetToken()
	outputs, err := s.wallet.Outputs().ListOutputs(ctx, ports.ListOutputsArgs{
		Basket:        tok.Basket,
		IncludeBundle: true,
	})
	if err != nil {
		return nil, domain.NewOperationError(op, outpoint, domain.ErrTransactionNotFound, err)
	}
	out, ok := findOutput(outputs, outpoint)
	if !ok || len(out.Bundle) <= 0 {
		if view, err := domain.ViewForBasket(tok.Basket); err == nil {
			s.cache.remove(view, outpoint)
		}
		return nil, domain.NewOperationError(op, outpoint, domain.ErrTransactionNotFound, nil)
	}

	if !tok.Lifecycle.IsSpendable() {
		return nil, domain.NewOperationError(
			op, outpoint, domain.ErrInvalidTransition,
			fmt.Errorf("token is %s", tok.Lifecycle.Stage),
		)
	}
	tok.Bundle = out.Bundle
	return record, nil
}

// spend consumes the intent target in two phases: the wallet builds the
// unsigned tx, we unlock the target input with the key it was locked to,
// then the wallet finalizes the tx. Any failure after the first phase
// releases the unsigned tx.
func (s *service) spend(
	ctx context.Context, op string, intent *domain.SpendIntent,
) (*ports.SignActionResult, error) {
	target := intent.Target

	actionCtx, cancel := context.WithTimeout(ctx, s.config.SpendTimeout)
	defer cancel()
	res, err := s.wallet.Actions().CreateAction(actionCtx, ports.CreateActionArgs{
		Description: intent.Description,
		InputBundle: intent.Bundle,
		Inputs: []ports.ActionInput{{
			Outpoint: target,
			// DER signature plus push opcode.
			UnlockingScriptLength: 74,
			Description:           intent.Description,
		}},
		Outputs: intent.Outputs,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.config.SpendTimeout, err)
		}
		return nil, domain.NewOperationError(op, target, domain.ErrSpendConstruction, err)
	}
	if res.Signable == nil {
		return nil, domain.NewOperationError(op, target, domain.ErrSpendConstruction, fmt.Errorf("missing signable tx"))
	}
	reference := res.Signable.Reference

	abort := func(kind, cause error) error {
		if err := s.wallet.Actions().AbortAction(ctx, reference); err != nil {
			log.WithError(err).Warnf("failed to abort action %s", reference)
		}
		return domain.NewOperationError(op, target, kind, cause)
	}

	tx, err := deserializeTx(res.Signable.Tx)
	if err != nil {
		return nil, abort(domain.ErrSpendConstruction, err)
	}
	inputIndex, err := findInput(tx, target)
	if err != nil {
		return nil, abort(domain.ErrSpendConstruction, err)
	}

	digest, err := token.SignatureHash(
		tx, inputIndex, intent.LockingScript, intent.Satoshis,
	)
	if err != nil {
		return nil, abort(domain.ErrSigning, err)
	}
	sig, err := s.wallet.Keys().CreateSignature(ctx, intent.Key, digest)
	if err != nil {
		return nil, abort(domain.ErrSigning, err)
	}
	unlockingScript, err := token.UnlockingScript(sig)
	if err != nil {
		return nil, abort(domain.ErrSigning, err)
	}

	signed, err := s.wallet.Actions().SignAction(ctx, reference, map[uint32]ports.SpendArgs{
		uint32(inputIndex): {UnlockingScript: unlockingScript},
	})
	if err != nil {
		return nil, abort(domain.ErrSigning, err)
	}
	return signed, nil
}
