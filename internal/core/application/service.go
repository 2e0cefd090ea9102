package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/domain"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	"github.com/bsvhackathon/P2P-Voicemail-sub001/pkg/token"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type service struct {
	config Config

	wallet    ports.WalletService
	relay     ports.Relay
	scheduler ports.SchedulerService
	crypto    fieldCrypto
	cache     *viewCache
}

// NewService returns the voicemail service. The scheduler is optional and
// only needed for the periodic inbox sync.
func NewService(
	config Config, walletSvc ports.WalletService, relay ports.Relay,
	schedulerSvc ports.SchedulerService,
) (Service, error) {
	if walletSvc == nil {
		return nil, fmt.Errorf("missing wallet service")
	}
	if relay == nil {
		return nil, fmt.Errorf("missing relay")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &service{
		config:    config.withDefaults(),
		wallet:    walletSvc,
		relay:     relay,
		scheduler: schedulerSvc,
		crypto:    fieldCrypto{walletSvc.Keys()},
		cache:     newViewCache(),
	}, nil
}

func (s *service) Start() error {
	if s.scheduler == nil || s.config.InboxSyncInterval <= 0 {
		return nil
	}

	startImmediately := true
	if err := s.scheduler.ScheduleTask(
		s.config.InboxSyncInterval, startImmediately, s.syncInbox,
	); err != nil {
		return fmt.Errorf("failed to schedule inbox sync: %s", err)
	}
	s.scheduler.Start()
	log.Debugf("scheduled inbox sync every %ds", s.config.InboxSyncInterval)
	return nil
}

func (s *service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
		log.Debug("stopped scheduler")
	}
}

func (s *service) IdentityKey(ctx context.Context) (string, error) {
	return s.wallet.Keys().IdentityKey(ctx)
}

func (s *service) Send(ctx context.Context, intent SendIntent) (*SendResult, error) {
	const op = "send"

	if len(intent.Audio) <= 0 {
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("missing audio"))
	}
	if intent.Satoshis <= 0 {
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("voicemail must carry at least 1 satoshi"))
	}

	identity, err := s.IdentityKey(ctx)
	if err != nil {
		return nil, err
	}

	recipient := strings.TrimSpace(intent.Recipient)
	toSelf := len(recipient) <= 0 || recipient == domain.SelfCounterparty ||
		recipient == identity
	purpose, counterparty := domain.VoicemailToPeer, recipient
	if toSelf {
		purpose, counterparty = domain.VoicemailToSelf, domain.SelfCounterparty
	} else if _, err := parsePubKey(recipient); err != nil {
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("invalid recipient: %s", err))
	}

	lifecycle := domain.NewLifecycle(purpose)
	now := time.Now()

	ns := domain.MustNamespaceFor(purpose)
	key := domain.NewKeyRef(ns.Name, counterparty)
	primary, err := s.buildVoicemailToken(
		ctx, key, []byte(identity), intent.Audio, now, intent.Note,
	)
	if err != nil {
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
	}

	outputs := []domain.TokenOutput{{
		LockingScript: primary,
		Satoshis:      intent.Satoshis,
		Description:   "voicemail",
	}}
	// The output of a peer voicemail is tracked by the recipient's wallet once
	// internalized, not by ours.
	if toSelf {
		outputs[0].Basket = ns.DefaultBasket
	} else {
		sentNs := domain.MustNamespaceFor(domain.VoicemailSentCopy)
		sentKey := domain.NewKeyRef(sentNs.Name, domain.SelfCounterparty)
		sentCopy, err := s.buildVoicemailToken(
			ctx, sentKey, nil, intent.Audio, now, intent.Note,
			withProtectedHead([]byte(recipient)),
		)
		if err != nil {
			return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
		}
		outputs = append(outputs, domain.TokenOutput{
			LockingScript: sentCopy,
			Satoshis:      s.config.SentCopySatoshis,
			Basket:        sentNs.DefaultBasket,
			Description:   "voicemail sent copy",
		})
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.config.SpendTimeout)
	defer cancel()
	res, err := s.wallet.Actions().CreateAction(actionCtx, ports.CreateActionArgs{
		Description: fmt.Sprintf("send voicemail (%s)", purpose),
		Outputs:     outputs,
	})
	if err != nil {
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
	}
	if res.Signable != nil {
		// nolint:all
		s.wallet.Actions().AbortAction(ctx, res.Signable.Reference)
		return nil, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("unexpected signable tx"))
	}

	outpoint := domain.NewOutpoint(res.Txid, 0)
	if _, err := lifecycle.Commit(outpoint); err != nil {
		return nil, domain.NewOperationError(op, outpoint, domain.ErrInvalidTransition, err)
	}
	log.Debugf("committed voicemail %s (%s)", outpoint, purpose)

	result := &SendResult{
		Txid:      res.Txid,
		Outpoint:  outpoint,
		Lifecycle: lifecycle,
	}
	if toSelf {
		s.cache.invalidate(domain.InboxView)
		return result, nil
	}

	sentCopy := domain.NewOutpoint(res.Txid, 1)
	result.SentCopy = &sentCopy
	s.cache.invalidate(domain.SentView)

	s.notify(ctx, lifecycle, recipient, Notification{
		Txid:        res.Txid,
		OutputIndex: outpoint.VOut,
		Satoshis:    intent.Satoshis,
		Sender:      identity,
		Bundle:      hex.EncodeToString(res.Bundle),
	})

	return result, nil
}

func (s *service) Refresh(
	ctx context.Context, view domain.View,
) ([]domain.Record, error) {
	records, err := s.reconstruct(ctx, view)
	if err != nil {
		return nil, err
	}
	s.cache.set(view, records)
	return records, nil
}

func (s *service) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, view := range domain.Views {
		view := view
		g.Go(func() error {
			_, err := s.Refresh(gctx, view)
			return err
		})
	}
	return g.Wait()
}

func (s *service) Inbox(ctx context.Context) ([]*domain.Voicemail, error) {
	return s.voicemails(ctx, domain.InboxView)
}

func (s *service) Sent(ctx context.Context) ([]*domain.Voicemail, error) {
	return s.voicemails(ctx, domain.SentView)
}

func (s *service) Archived(ctx context.Context) ([]*domain.Voicemail, error) {
	return s.voicemails(ctx, domain.ArchivedView)
}

func (s *service) AddContact(
	ctx context.Context, name, identityKey string,
) (domain.Outpoint, error) {
	const op = "add contact"

	name = strings.TrimSpace(name)
	if len(name) <= 0 {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("missing name"))
	}
	if _, err := parsePubKey(identityKey); err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("invalid identity key: %s", err))
	}

	key := domain.NewKeyRef(domain.ContactsNamespace, domain.SelfCounterparty)
	fields := [][]byte{
		[]byte(name), []byte(identityKey), encodeTimestamp(time.Now()),
	}
	outpoint, err := s.createRecord(
		ctx, op, domain.ContactRecord, key, fields, contactSatoshis,
	)
	if err != nil {
		return domain.Outpoint{}, err
	}
	s.cache.invalidate(domain.ContactsView)
	return outpoint, nil
}

func (s *service) Contacts(ctx context.Context) ([]*domain.Contact, error) {
	records, err := s.view(ctx, domain.ContactsView)
	if err != nil {
		return nil, err
	}
	contacts := make([]*domain.Contact, 0, len(records))
	for _, r := range records {
		if c, ok := r.(*domain.Contact); ok {
			contacts = append(contacts, c)
		}
	}
	sort.SliceStable(contacts, func(i, j int) bool {
		return strings.ToLower(contacts[i].Name) < strings.ToLower(contacts[j].Name)
	})
	return contacts, nil
}

func (s *service) RemoveContact(ctx context.Context, outpoint domain.Outpoint) error {
	return s.forget(ctx, "remove contact", outpoint, domain.ContactsView)
}

func (s *service) AddTask(
	ctx context.Context, description string, bounty uint64,
) (domain.Outpoint, error) {
	const op = "add task"

	description = strings.TrimSpace(description)
	if len(description) <= 0 {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("missing description"))
	}
	if bounty <= 0 {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, fmt.Errorf("task bounty must be at least 1 satoshi"))
	}

	key := domain.NewKeyRef(domain.TasksNamespace, domain.SelfCounterparty)
	outpoint, err := s.createRecord(
		ctx, op, domain.TaskRecord, key, [][]byte{[]byte(description)}, bounty,
	)
	if err != nil {
		return domain.Outpoint{}, err
	}
	s.cache.invalidate(domain.TasksView)
	return outpoint, nil
}

func (s *service) Tasks(ctx context.Context) ([]*domain.Task, error) {
	records, err := s.view(ctx, domain.TasksView)
	if err != nil {
		return nil, err
	}
	tasks := make([]*domain.Task, 0, len(records))
	for _, r := range records {
		if t, ok := r.(*domain.Task); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *service) CompleteTask(ctx context.Context, outpoint domain.Outpoint) error {
	return s.forget(ctx, "complete task", outpoint, domain.TasksView)
}

// view returns the cached records of view, reconstructing it on first use.
func (s *service) view(ctx context.Context, view domain.View) ([]domain.Record, error) {
	if records, ok := s.cache.get(view); ok {
		return records, nil
	}
	if _, err := s.Refresh(ctx, view); err != nil {
		return nil, err
	}
	records, _ := s.cache.get(view)
	return records, nil
}

func (s *service) voicemails(
	ctx context.Context, view domain.View,
) ([]*domain.Voicemail, error) {
	records, err := s.view(ctx, view)
	if err != nil {
		return nil, err
	}
	voicemails := make([]*domain.Voicemail, 0, len(records))
	for _, r := range records {
		if vm, ok := r.(*domain.Voicemail); ok {
			voicemails = append(voicemails, vm)
		}
	}
	sort.SliceStable(voicemails, func(i, j int) bool {
		return voicemails[i].Timestamp.After(voicemails[j].Timestamp)
	})
	return voicemails, nil
}

type voicemailTokenOption func(*voicemailTokenOptions)

type voicemailTokenOptions struct {
	protectedHead []byte
}

// withProtectedHead encrypts the head field instead of leaving it in clear.
func withProtectedHead(head []byte) voicemailTokenOption {
	return func(o *voicemailTokenOptions) {
		o.protectedHead = head
	}
}

// buildVoicemailToken returns the locking script of a voicemail token under
// the given key: head, audio, timestamp, note.
func (s *service) buildVoicemailToken(
	ctx context.Context, key domain.KeyRef, clearHead, audio []byte,
	timestamp time.Time, note string, opts ...voicemailTokenOption,
) ([]byte, error) {
	o := &voicemailTokenOptions{}
	for _, opt := range opts {
		opt(o)
	}

	head := clearHead
	if o.protectedHead != nil {
		protected, err := s.crypto.protect(ctx, key, o.protectedHead)
		if err != nil {
			return nil, err
		}
		head = protected
	}
	encryptedAudio, err := s.crypto.protect(ctx, key, audio)
	if err != nil {
		return nil, err
	}
	encryptedTimestamp, err := s.crypto.protectTimestamp(ctx, key, timestamp)
	if err != nil {
		return nil, err
	}
	encryptedNote, err := s.crypto.protectNote(ctx, key, note)
	if err != nil {
		return nil, err
	}

	return s.lockingScript(
		ctx, key, [][]byte{head, encryptedAudio, encryptedTimestamp, encryptedNote},
	)
}

// lockingScript locks fields to the key the counterparty of key can sign
// for. For self keys that is our own child key.
func (s *service) lockingScript(
	ctx context.Context, key domain.KeyRef, fields [][]byte,
) ([]byte, error) {
	layout, err := domain.LayoutFor(key.Namespace)
	if err != nil {
		return nil, err
	}
	if len(fields) != layout.Len() {
		return nil, fmt.Errorf(
			"expected %d fields for namespace %s, got %d",
			layout.Len(), key.Namespace, len(fields),
		)
	}

	lockKey, err := s.wallet.Keys().GetPublicKey(ctx, key, false)
	if err != nil {
		return nil, err
	}
	pubkey, err := parsePubKey(lockKey)
	if err != nil {
		return nil, err
	}
	return token.Encode(pubkey, fields)
}

// createRecord encrypts every field under a self key and creates a single
// token output in the basket of purpose.
func (s *service) createRecord(
	ctx context.Context, op string, purpose domain.Purpose, key domain.KeyRef,
	plaintexts [][]byte, satoshis uint64,
) (domain.Outpoint, error) {
	ns := domain.MustNamespaceFor(purpose)
	lifecycle := domain.NewLifecycle(purpose)

	fields := make([][]byte, 0, len(plaintexts))
	for _, plaintext := range plaintexts {
		field, err := s.crypto.protect(ctx, key, plaintext)
		if err != nil {
			return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
		}
		fields = append(fields, field)
	}
	script, err := s.lockingScript(ctx, key, fields)
	if err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
	}

	actionCtx, cancel := context.WithTimeout(ctx, s.config.SpendTimeout)
	defer cancel()
	res, err := s.wallet.Actions().CreateAction(actionCtx, ports.CreateActionArgs{
		Description: op,
		Outputs: []domain.TokenOutput{{
			LockingScript: script,
			Satoshis:      satoshis,
			Basket:        ns.DefaultBasket,
			Description:   purpose.String(),
		}},
	})
	if err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, domain.Outpoint{}, domain.ErrSpendConstruction, err)
	}

	outpoint := domain.NewOutpoint(res.Txid, 0)
	if _, err := lifecycle.Commit(outpoint); err != nil {
		return domain.Outpoint{}, domain.NewOperationError(op, outpoint, domain.ErrInvalidTransition, err)
	}
	log.Debugf("committed %s %s", purpose, outpoint)
	return outpoint, nil
}
