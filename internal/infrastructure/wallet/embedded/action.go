package embeddedwallet

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/bundle"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
)

type actionInput struct {
	outputDTO
	// external inputs are unlocked by the caller through SignAction.
	external bool
}

type pendingAction struct {
	reference   string
	description string
	tx          *wire.MsgTx
	inputs      []actionInput
	outputs     []domain.TokenOutput
	ancestors   *bundle.Bundle
}

func (a *pendingAction) hasExternalInputs() bool {
	for _, in := range a.inputs {
		if in.external {
			return true
		}
	}
	return false
}

// Fund mints a new output of the given value into the default basket. The
// funding tx spends the null outpoint, which makes it the root of every
// proof bundle built by this wallet.
func (w *Service) Fund(ctx context.Context, satoshis uint64) (domain.Outpoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.Outpoint{}, err
	}
	if satoshis <= 0 || satoshis > math.MaxInt64 {
		return domain.Outpoint{}, fmt.Errorf("invalid amount %d", satoshis)
	}

	changeScript, err := w.changeScript()
	if err != nil {
		return domain.Outpoint{}, err
	}
	nonce, err := randomNonce()
	if err != nil {
		return domain.Outpoint{}, err
	}

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(
		wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), nonce, nil,
	))
	tx.AddTxOut(wire.NewTxOut(int64(satoshis), changeScript))

	w.actionLock.Lock()
	defer w.actionLock.Unlock()

	action := &pendingAction{
		description: "fund wallet",
		tx:          tx,
		outputs: []domain.TokenOutput{{
			LockingScript: changeScript,
			Satoshis:      satoshis,
			Basket:        DefaultBasket,
			Description:   "funding",
		}},
		ancestors: bundle.New(),
	}
	res, err := w.finalize(action)
	if err != nil {
		return domain.Outpoint{}, err
	}
	return domain.NewOutpoint(res.Txid, 0), nil
}

func (w *Service) CreateAction(
	ctx context.Context, args ports.CreateActionArgs,
) (*ports.CreateActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := w.getPrivateKey(); err != nil {
		return nil, err
	}
	if len(args.Inputs) <= 0 && len(args.Outputs) <= 0 {
		return nil, fmt.Errorf("action must have at least one input or output")
	}

	outAmount := uint64(0)
	for i, out := range args.Outputs {
		if out.Satoshis <= 0 || out.Satoshis > math.MaxInt64 {
			return nil, fmt.Errorf("invalid amount for output %d", i)
		}
		if len(out.LockingScript) <= 0 {
			return nil, fmt.Errorf("missing locking script for output %d", i)
		}
		outAmount += out.Satoshis
	}

	ancestors := bundle.New()
	if len(args.InputBundle) > 0 {
		inputBundle, err := bundle.Deserialize(args.InputBundle)
		if err != nil {
			return nil, fmt.Errorf("invalid input bundle: %s", err)
		}
		ancestors.Merge(inputBundle)
	}

	w.actionLock.Lock()
	defer w.actionLock.Unlock()

	inputs := make([]actionInput, 0, len(args.Inputs))
	inAmount := uint64(0)
	for _, in := range args.Inputs {
		key := in.Outpoint.String()
		if ref, ok := w.reserved[key]; ok {
			return nil, fmt.Errorf("input %s is reserved by action %s", key, ref)
		}
		out, err := w.store.getOutput(key)
		if err != nil {
			return nil, err
		}
		if out == nil || !out.Spendable {
			return nil, fmt.Errorf("%w: %s", ErrOutputNotFound, key)
		}
		inputs = append(inputs, actionInput{*out, true})
		inAmount += out.Satoshis
	}

	if outAmount > inAmount {
		funding, err := w.selectFunds(outAmount - inAmount)
		if err != nil {
			return nil, err
		}
		for _, out := range funding {
			inputs = append(inputs, actionInput{out, false})
			inAmount += out.Satoshis
		}
	}

	tx := wire.NewMsgTx(1)
	for _, in := range inputs {
		hash, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, in.VOut), nil, nil))

		parent, err := w.store.getTx(in.Txid)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("missing proof bundle for input %s", in.Outpoint)
		}
		parentBundle, err := bundle.Deserialize(parent.Bundle)
		if err != nil {
			return nil, fmt.Errorf("invalid proof bundle for input %s: %s", in.Outpoint, err)
		}
		ancestors.Merge(parentBundle)
	}

	outputs := append([]domain.TokenOutput{}, args.Outputs...)
	for _, out := range outputs {
		tx.AddTxOut(wire.NewTxOut(int64(out.Satoshis), out.LockingScript))
	}
	if change := inAmount - outAmount; change > 0 {
		changeScript, err := w.changeScript()
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
		outputs = append(outputs, domain.TokenOutput{
			LockingScript: changeScript,
			Satoshis:      change,
			Basket:        DefaultBasket,
			Description:   "change",
		})
	}

	action := &pendingAction{
		reference:   uuid.New().String(),
		description: args.Description,
		tx:          tx,
		inputs:      inputs,
		outputs:     outputs,
		ancestors:   ancestors,
	}

	if !action.hasExternalInputs() {
		res, err := w.finalize(action)
		if err != nil {
			return nil, err
		}
		return &ports.CreateActionResult{
			Txid:   res.Txid,
			Tx:     res.Tx,
			Bundle: res.Bundle,
		}, nil
	}

	var buf bytes.Buffer
	if err := tx.SerializeNoWitness(&buf); err != nil {
		return nil, err
	}

	for _, in := range inputs {
		w.reserved[in.Outpoint] = action.reference
	}
	w.pending[action.reference] = action

	return &ports.CreateActionResult{
		Signable: &ports.SignableTransaction{
			Reference: action.reference,
			Tx:        buf.Bytes(),
		},
	}, nil
}

func (w *Service) SignAction(
	ctx context.Context, reference string, spends map[uint32]ports.SpendArgs,
) (*ports.SignActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.actionLock.Lock()
	defer w.actionLock.Unlock()

	action, ok := w.pending[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, reference)
	}

	for i, in := range action.inputs {
		if !in.external {
			continue
		}
		spend, ok := spends[uint32(i)]
		if !ok {
			return nil, fmt.Errorf("missing unlocking script for input %d", i)
		}
		action.tx.TxIn[i].SignatureScript = spend.UnlockingScript
	}
	for i, in := range action.inputs {
		if !in.external {
			continue
		}
		if err := token.Verify(action.tx, i, in.LockingScript, in.Satoshis); err != nil {
			for _, txIn := range action.tx.TxIn {
				txIn.SignatureScript = nil
			}
			return nil, fmt.Errorf("invalid unlocking script for input %d: %w", i, err)
		}
	}

	return w.finalize(action)
}

func (w *Service) AbortAction(_ context.Context, reference string) error {
	w.actionLock.Lock()
	defer w.actionLock.Unlock()

	action, ok := w.pending[reference]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, reference)
	}
	w.release(action)
	return nil
}

func (w *Service) InternalizeAction(
	ctx context.Context, args ports.InternalizeActionArgs,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(args.Outputs) <= 0 {
		return fmt.Errorf("missing outputs to internalize")
	}

	b, err := bundle.Deserialize(args.Bundle)
	if err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	subject := b.Subject()
	txid := subject.TxHash().String()

	w.actionLock.Lock()
	defer w.actionLock.Unlock()

	now := time.Now().UnixNano()
	outputs := make([]outputDTO, 0, len(args.Outputs))
	for _, out := range args.Outputs {
		if int(out.OutputIndex) >= len(subject.TxOut) {
			return fmt.Errorf("%w: %s:%d", ErrOutputNotFound, txid, out.OutputIndex)
		}
		if len(out.Basket) <= 0 {
			return fmt.Errorf("missing basket for output %d", out.OutputIndex)
		}

		outpoint := domain.NewOutpoint(txid, out.OutputIndex).String()
		existing, err := w.store.getOutput(outpoint)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		txOut := subject.TxOut[out.OutputIndex]
		outputs = append(outputs, outputDTO{
			Outpoint:      outpoint,
			Txid:          txid,
			VOut:          out.OutputIndex,
			Satoshis:      uint64(txOut.Value),
			LockingScript: txOut.PkScript,
			Basket:        out.Basket,
			Spendable:     true,
			CreatedAt:     now,
		})
	}
	if len(outputs) <= 0 {
		return nil
	}

	return w.store.commit(nil, "", outputs, txDTO{txid, args.Bundle, now})
}

// finalize signs the wallet owned inputs, persists the transaction and
// releases the action.
func (w *Service) finalize(action *pendingAction) (*ports.SignActionResult, error) {
	prvkey, err := w.getPrivateKey()
	if err != nil {
		return nil, err
	}

	for i, in := range action.inputs {
		if in.external {
			continue
		}
		unlockingScript, err := token.Sign(
			action.tx, i, in.LockingScript, in.Satoshis, prvkey,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to sign input %d: %s", i, err)
		}
		action.tx.TxIn[i].SignatureScript = unlockingScript
	}

	txBundle := bundle.New()
	txBundle.Merge(action.ancestors)
	txBundle.Add(action.tx)
	if err := txBundle.Validate(); err != nil {
		return nil, err
	}
	serializedBundle, err := txBundle.Serialize()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := action.tx.SerializeNoWitness(&buf); err != nil {
		return nil, err
	}

	txid := action.tx.TxHash().String()
	now := time.Now().UnixNano()

	spent := make([]string, 0, len(action.inputs))
	for _, in := range action.inputs {
		spent = append(spent, in.Outpoint)
	}
	outputs := make([]outputDTO, 0, len(action.outputs))
	for i, out := range action.outputs {
		// Outputs without basket belong to someone else.
		if len(out.Basket) <= 0 {
			continue
		}
		outputs = append(outputs, outputDTO{
			Outpoint:      domain.NewOutpoint(txid, uint32(i)).String(),
			Txid:          txid,
			VOut:          uint32(i),
			Satoshis:      out.Satoshis,
			LockingScript: out.LockingScript,
			Basket:        out.Basket,
			Spendable:     true,
			CreatedAt:     now,
		})
	}

	if err := w.store.commit(
		spent, txid, outputs, txDTO{txid, serializedBundle, now},
	); err != nil {
		return nil, fmt.Errorf("failed to store tx %s: %s", txid, err)
	}

	w.release(action)

	return &ports.SignActionResult{
		Txid:   txid,
		Tx:     buf.Bytes(),
		Bundle: serializedBundle,
	}, nil
}

func (w *Service) release(action *pendingAction) {
	for _, in := range action.inputs {
		if w.reserved[in.Outpoint] == action.reference {
			delete(w.reserved, in.Outpoint)
		}
	}
	delete(w.pending, action.reference)
}

// selectFunds picks the oldest unreserved outputs of the default basket
// until amount is covered.
func (w *Service) selectFunds(amount uint64) ([]outputDTO, error) {
	candidates, err := w.store.listSpendableOutputs(DefaultBasket, 0)
	if err != nil {
		return nil, err
	}

	selected := make([]outputDTO, 0)
	selectedAmount := uint64(0)
	for _, out := range candidates {
		if selectedAmount >= amount {
			break
		}
		if _, ok := w.reserved[out.Outpoint]; ok {
			continue
		}
		selected = append(selected, out)
		selectedAmount += out.Satoshis
	}

	if selectedAmount < amount {
		return nil, fmt.Errorf(
			"%w: missing %d sats", ErrInsufficientFunds, amount-selectedAmount,
		)
	}
	return selected, nil
}

func (w *Service) changeScript() ([]byte, error) {
	prvkey, err := w.getPrivateKey()
	if err != nil {
		return nil, err
	}
	return token.Encode(prvkey.PubKey(), nil)
}
