package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/bundle"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	log "github.com/sirupsen/logrus"
)

// notify tells the recipient where to find the voicemail. Delivery is best
// effort, the token is valid whether or not the peer gets notified.
func (s *service) notify(
	ctx context.Context, lifecycle *domain.Lifecycle, recipient string,
	notification Notification,
) {
	outpoint := lifecycle.Outpoint

	body, err := json.Marshal(notification)
	if err == nil {
		err = s.relay.SendMessage(ctx, recipient, NotificationBox, body)
	}
	if err != nil {
		log.WithError(
			domain.NewOperationError("notify", outpoint, domain.ErrNotificationDelivery, err),
		).Warnf("failed to notify %s", recipient)
		return
	}

	if _, err := lifecycle.Notify(); err != nil {
		log.WithError(err).Warnf("failed to update lifecycle of %s", outpoint)
		return
	}
	log.Debugf("notified %s about voicemail %s", recipient, outpoint)
}

func (s *service) Absorb(ctx context.Context, notification Notification) error {
	outpoint := domain.NewOutpoint(notification.Txid, notification.OutputIndex)

	buf, tok, err := validateNotification(notification)
	if err != nil {
		return domain.NewOperationError("absorb", outpoint, domain.ErrMalformedToken, err)
	}

	identity, err := s.IdentityKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to get identity key: %w", err)
	}
	key := domain.NewKeyRef(domain.VoicemailNamespace, notification.Sender)
	if notification.Sender == identity {
		key.Counterparty = domain.SelfCounterparty
	}
	if err := s.checkLockingKey(ctx, key, tok); err != nil {
		return fmt.Errorf("failed to absorb voicemail %s: %w", outpoint, err)
	}

	if err := s.wallet.Actions().InternalizeAction(ctx, ports.InternalizeActionArgs{
		Bundle: buf,
		Outputs: []ports.InternalizeOutput{{
			OutputIndex: notification.OutputIndex,
			Basket:      domain.MustNamespaceFor(domain.VoicemailToPeer).DefaultBasket,
		}},
		Description: "receive voicemail",
	}); err != nil {
		return fmt.Errorf("failed to internalize voicemail %s: %w", outpoint, err)
	}

	s.cache.invalidate(domain.InboxView)
	log.Debugf("absorbed voicemail %s from %s", outpoint, notification.Sender)
	return nil
}

func (s *service) SyncInbox(ctx context.Context) (int, error) {
	messages, err := s.relay.ListMessages(ctx, NotificationBox)
	if err != nil {
		return 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	absorbed := 0
	acked := make([]string, 0, len(messages))
	for _, msg := range messages {
		var notification Notification
		if err := json.Unmarshal(msg.Body, &notification); err != nil {
			log.WithError(err).Warnf("dropping malformed notification %s", msg.Id)
			acked = append(acked, msg.Id)
			continue
		}
		if notification.Sender != msg.Sender {
			log.Warnf(
				"dropping notification %s, sender %s does not match relay identity %s",
				msg.Id, notification.Sender, msg.Sender,
			)
			acked = append(acked, msg.Id)
			continue
		}

		if err := s.Absorb(ctx, notification); err != nil {
			if errors.Is(err, domain.ErrMalformedToken) {
				log.WithError(err).Warnf("dropping notification %s", msg.Id)
				acked = append(acked, msg.Id)
				continue
			}
			// Left on the relay to retry on next sync.
			log.WithError(err).Warnf("failed to absorb notification %s", msg.Id)
			continue
		}
		absorbed++
		acked = append(acked, msg.Id)
	}

	if len(acked) > 0 {
		if err := s.relay.AcknowledgeMessages(ctx, acked); err != nil {
			return absorbed, fmt.Errorf("failed to acknowledge notifications: %w", err)
		}
	}
	return absorbed, nil
}

func (s *service) syncInbox() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SpendTimeout)
	defer cancel()

	absorbed, err := s.SyncInbox(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to sync inbox")
		return
	}
	if absorbed > 0 {
		log.Infof("received %d new voicemail(s)", absorbed)
	}
}

// validateNotification checks that the notification points to a voicemail
// token sent by the notifier and returns the raw proof bundle along with the
// decoded token.
func validateNotification(n Notification) ([]byte, *token.Token, error) {
	if _, err := parsePubKey(n.Sender); err != nil {
		return nil, nil, fmt.Errorf("invalid sender: %s", err)
	}
	buf, err := hex.DecodeString(n.Bundle)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid bundle: %s", err)
	}
	b, err := bundle.Deserialize(buf)
	if err != nil {
		return nil, nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	subject := b.Subject()
	if subject == nil || subject.TxHash().String() != n.Txid {
		return nil, nil, fmt.Errorf("bundle subject does not match txid %s", n.Txid)
	}
	if int(n.OutputIndex) >= len(subject.TxOut) {
		return nil, nil, fmt.Errorf("output %d not found", n.OutputIndex)
	}
	out := subject.TxOut[n.OutputIndex]
	if uint64(out.Value) != n.Satoshis {
		return nil, nil, fmt.Errorf(
			"output value %d does not match notified amount %d", out.Value, n.Satoshis,
		)
	}

	tok, err := token.Decode(out.PkScript)
	if err != nil {
		return nil, nil, err
	}
	layout, err := domain.LayoutFor(domain.VoicemailNamespace)
	if err != nil {
		return nil, nil, err
	}
	if len(tok.Fields) != layout.Len() {
		return nil, nil, fmt.Errorf("expected %d fields, got %d", layout.Len(), len(tok.Fields))
	}
	if string(tok.Fields[layout.Index(domain.SenderField)]) != n.Sender {
		return nil, nil, fmt.Errorf("token sender does not match notifier")
	}
	return buf, tok, nil
}
