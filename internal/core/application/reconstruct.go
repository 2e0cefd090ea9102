package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// reconstruct lists the outputs of every basket of view and rebuilds one
// record per output. Records that can't be rebuilt are left nil.
func (s *service) reconstruct(
	ctx context.Context, view domain.View,
) ([]domain.Record, error) {
	baskets, err := domain.BasketsToScan(view)
	if err != nil {
		return nil, err
	}

	outputs := make([]ports.Output, 0)
	for _, basket := range baskets {
		outs, err := s.wallet.Outputs().ListOutputs(ctx, ports.ListOutputsArgs{
			Basket:        basket,
			IncludeBundle: true,
			Limit:         s.config.ListLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list outputs of basket %s: %w", basket, err)
		}
		for _, out := range outs {
			if len(out.Basket) <= 0 {
				out.Basket = basket
			}
			outputs = append(outputs, out)
		}
	}

	identity, err := s.IdentityKey(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Record, len(outputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.ReconstructConcurrency)
	for i, out := range outputs {
		i, out := i, out
		g.Go(func() error {
			record, err := s.reconstructRecord(gctx, identity, out)
			if err != nil {
				log.WithError(err).Warnf(
					"skipping output %s of basket %s", out.Outpoint, out.Basket,
				)
				return nil
			}
			records[i] = record
			return nil
		})
	}
	// nolint:all
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *service) reconstructRecord(
	ctx context.Context, identity string, out ports.Output,
) (domain.Record, error) {
	purpose, err := domain.PurposeForBasket(out.Basket)
	if err != nil {
		return nil, err
	}
	ns := domain.MustNamespaceFor(purpose)
	layout, err := domain.LayoutFor(ns.Name)
	if err != nil {
		return nil, err
	}

	tok, err := token.Decode(out.LockingScript)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedToken, err)
	}
	if len(tok.Fields) != layout.Len() {
		return nil, fmt.Errorf(
			"%w: expected %d fields, got %d",
			domain.ErrMalformedToken, layout.Len(), len(tok.Fields),
		)
	}

	base := domain.Token{
		Outpoint:      out.Outpoint,
		Satoshis:      out.Satoshis,
		LockingScript: out.LockingScript,
		Basket:        out.Basket,
		Bundle:        out.Bundle,
		Key:           domain.NewKeyRef(ns.Name, domain.SelfCounterparty),
		Lifecycle: domain.RestoreLifecycle(
			purpose, out.Outpoint, purpose == domain.VoicemailToPeer,
		),
	}

	switch purpose {
	case domain.VoicemailToPeer, domain.VoicemailToSelf:
		// The sender is in clear, the fields are protected and the token is
		// locked under the sender as counterparty.
		sender := string(tok.Fields[layout.Index(domain.SenderField)])
		if _, err := parsePubKey(sender); err != nil {
			return nil, fmt.Errorf("%w: invalid sender: %s", domain.ErrMalformedToken, err)
		}
		if sender != identity {
			base.Key.Counterparty = sender
		}
		if err := s.checkLockingKey(ctx, base.Key, tok); err != nil {
			return nil, err
		}
		return s.revealVoicemail(ctx, base, layout, tok, sender, "")

	case domain.VoicemailSentCopy:
		recipient, err := s.crypto.reveal(
			ctx, base.Key, tok.Fields[layout.Index(domain.RecipientField)],
		)
		if err != nil {
			return nil, err
		}
		return s.revealVoicemail(ctx, base, layout, tok, identity, string(recipient))

	case domain.VoicemailArchivedCopy:
		sender, err := s.crypto.reveal(
			ctx, base.Key, tok.Fields[layout.Index(domain.SenderField)],
		)
		if err != nil {
			return nil, err
		}
		return s.revealVoicemail(ctx, base, layout, tok, string(sender), "")

	case domain.ContactRecord:
		plaintexts, err := s.revealAll(ctx, base.Key, tok.Fields)
		if err != nil {
			return nil, err
		}
		createdAt, _ := parseTimestamp(
			plaintexts[layout.Index(domain.CreatedAtField)], time.Now(),
		)
		return &domain.Contact{
			Token:       base,
			Name:        string(plaintexts[layout.Index(domain.NameField)]),
			IdentityKey: string(plaintexts[layout.Index(domain.IdentityKeyField)]),
			CreatedAt:   createdAt,
		}, nil

	case domain.TaskRecord:
		plaintexts, err := s.revealAll(ctx, base.Key, tok.Fields)
		if err != nil {
			return nil, err
		}
		return &domain.Task{
			Token:       base,
			Description: string(plaintexts[layout.Index(domain.DescriptionField)]),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPurpose, purpose)
}

// revealVoicemail decrypts the fields shared by every voicemail layout. The
// audio is mandatory, timestamp and note fall back to defaults.
func (s *service) revealVoicemail(
	ctx context.Context, base domain.Token, layout domain.Layout,
	tok *token.Token, sender, recipient string,
) (*domain.Voicemail, error) {
	audio, err := s.crypto.reveal(
		ctx, base.Key, tok.Fields[layout.Index(domain.AudioField)],
	)
	if err != nil {
		return nil, err
	}
	timestamp, unknown := s.crypto.revealTimestamp(
		ctx, base.Key, tok.Fields[layout.Index(domain.TimestampField)],
	)
	note, hasNote := s.crypto.revealNote(
		ctx, base.Key, tok.Fields[layout.Index(domain.NoteField)],
	)

	return &domain.Voicemail{
		Token:            base,
		Sender:           sender,
		Recipient:        recipient,
		Audio:            audio,
		Timestamp:        timestamp,
		TimestampUnknown: unknown,
		Note:             note,
		HasNote:          hasNote,
	}, nil
}

func (s *service) revealAll(
	ctx context.Context, key domain.KeyRef, fields [][]byte,
) ([][]byte, error) {
	plaintexts := make([][]byte, 0, len(fields))
	for _, field := range fields {
		plaintext, err := s.crypto.reveal(ctx, key, field)
		if err != nil {
			return nil, err
		}
		plaintexts = append(plaintexts, plaintext)
	}
	return plaintexts, nil
}

// checkLockingKey makes sure we can sign for the token before exposing it as
// spendable.
func (s *service) checkLockingKey(
	ctx context.Context, key domain.KeyRef, tok *token.Token,
) error {
	ownKey, err := s.wallet.Keys().GetPublicKey(ctx, key, true)
	if err != nil {
		return err
	}
	lockKey := hex.EncodeToString(tok.LockingKey.SerializeCompressed())
	if ownKey != lockKey {
		return fmt.Errorf("%w: token is not locked to us", domain.ErrMalformedToken)
	}
	return nil
}
