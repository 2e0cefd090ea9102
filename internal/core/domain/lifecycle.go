package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	UndefinedStage Stage = iota
	CreatedStage
	CommittedStage
	NotifiedStage
	RedeemedStage
	ForgottenStage
)

type Stage int

func (s Stage) String() string {
	switch s {
	case CreatedStage:
		return "CREATED"
	case CommittedStage:
		return "COMMITTED"
	case NotifiedStage:
		return "NOTIFIED"
	case RedeemedStage:
		return "REDEEMED"
	case ForgottenStage:
		return "FORGOTTEN"
	default:
		return "UNDEFINED"
	}
}

// Lifecycle tracks the stage of a single token:
// Created -> Committed -> Notified -> Redeemed | Forgotten.
// Self-addressed tokens never go through Notified. Redeemed and Forgotten
// are terminal.
type Lifecycle struct {
	Id        string
	Purpose   Purpose
	Stage     Stage
	Outpoint  Outpoint
	SpentBy   string
	CreatedAt int64
	UpdatedAt int64
	Version   uint
	Changes   []LifecycleEvent
}

func NewLifecycle(purpose Purpose) *Lifecycle {
	l := &Lifecycle{
		Id:      uuid.New().String(),
		Purpose: purpose,
		Changes: make([]LifecycleEvent, 0),
	}
	l.raise(TokenCreated{
		Id:        l.Id,
		Purpose:   purpose,
		Timestamp: time.Now().Unix(),
	})
	return l
}

func NewLifecycleFromEvents(events []LifecycleEvent) *Lifecycle {
	l := &Lifecycle{}

	for _, event := range events {
		l.On(event, true)
	}

	l.Changes = append([]LifecycleEvent{}, events...)

	return l
}

// RestoreLifecycle rebuilds the lifecycle of a token found in a basket.
// Tokens absorbed from a peer notification are restored as notified.
func RestoreLifecycle(purpose Purpose, outpoint Outpoint, notified bool) *Lifecycle {
	id := uuid.New().String()
	now := time.Now().Unix()
	events := []LifecycleEvent{
		TokenCreated{id, purpose, now},
		TokenCommitted{id, outpoint, now},
	}
	if notified {
		events = append(events, PeerNotified{id, now})
	}
	return NewLifecycleFromEvents(events)
}

func (l *Lifecycle) On(event LifecycleEvent, replayed bool) {
	switch e := event.(type) {
	case TokenCreated:
		l.Stage = CreatedStage
		l.Id = e.Id
		l.Purpose = e.Purpose
		l.CreatedAt = e.Timestamp
		l.UpdatedAt = e.Timestamp
	case TokenCommitted:
		l.Stage = CommittedStage
		l.Outpoint = e.Outpoint
		l.UpdatedAt = e.Timestamp
	case PeerNotified:
		l.Stage = NotifiedStage
		l.UpdatedAt = e.Timestamp
	case TokenRedeemed:
		l.Stage = RedeemedStage
		l.SpentBy = e.SpentBy
		l.UpdatedAt = e.Timestamp
	case TokenForgotten:
		l.Stage = ForgottenStage
		l.SpentBy = e.SpentBy
		l.UpdatedAt = e.Timestamp
	}

	if replayed {
		l.Version++
	}
}

func (l *Lifecycle) Commit(outpoint Outpoint) ([]LifecycleEvent, error) {
	if l.Stage != CreatedStage {
		return nil, fmt.Errorf("%w: cannot commit token in stage %s", ErrInvalidTransition, l.Stage)
	}
	if outpoint.IsEmpty() {
		return nil, fmt.Errorf("missing outpoint")
	}

	event := TokenCommitted{
		Id:        l.Id,
		Outpoint:  outpoint,
		Timestamp: time.Now().Unix(),
	}
	l.raise(event)

	return []LifecycleEvent{event}, nil
}

func (l *Lifecycle) Notify() ([]LifecycleEvent, error) {
	if l.Stage != CommittedStage {
		return nil, fmt.Errorf("%w: cannot notify token in stage %s", ErrInvalidTransition, l.Stage)
	}
	if l.Purpose != VoicemailToPeer {
		return nil, fmt.Errorf("%w: %s tokens are never notified", ErrInvalidTransition, l.Purpose)
	}

	event := PeerNotified{
		Id:        l.Id,
		Timestamp: time.Now().Unix(),
	}
	l.raise(event)

	return []LifecycleEvent{event}, nil
}

func (l *Lifecycle) Redeem(spentBy string) ([]LifecycleEvent, error) {
	if !l.IsSpendable() {
		return nil, fmt.Errorf("%w: cannot redeem token in stage %s", ErrInvalidTransition, l.Stage)
	}

	event := TokenRedeemed{
		Id:        l.Id,
		SpentBy:   spentBy,
		Timestamp: time.Now().Unix(),
	}
	l.raise(event)

	return []LifecycleEvent{event}, nil
}

func (l *Lifecycle) Forget(spentBy string) ([]LifecycleEvent, error) {
	if !l.IsSpendable() {
		return nil, fmt.Errorf("%w: cannot forget token in stage %s", ErrInvalidTransition, l.Stage)
	}

	event := TokenForgotten{
		Id:        l.Id,
		SpentBy:   spentBy,
		Timestamp: time.Now().Unix(),
	}
	l.raise(event)

	return []LifecycleEvent{event}, nil
}

func (l *Lifecycle) IsSpendable() bool {
	return l.Stage == CommittedStage || l.Stage == NotifiedStage
}

func (l *Lifecycle) IsTerminal() bool {
	return l.Stage == RedeemedStage || l.Stage == ForgottenStage
}

func (l *Lifecycle) raise(event LifecycleEvent) {
	if l.Changes == nil {
		l.Changes = make([]LifecycleEvent, 0)
	}
	l.Changes = append(l.Changes, event)
	l.On(event, false)
}
