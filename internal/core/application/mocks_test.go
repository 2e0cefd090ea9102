package application_test

import (
	"context"
	"sync/atomic"

	"github.com/bsvhackathon/P2P-Voicemail-sub001/internal/core/ports"
	embeddedwallet "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/wallet/embedded"
	"github.com/stretchr/testify/mock"
)

// mockedActions forwards to the embedded wallet unless told otherwise.
type mockedActions struct {
	mock.Mock
	ports.ActionService
}

func (m *mockedActions) CreateAction(
	ctx context.Context, args ports.CreateActionArgs,
) (*ports.CreateActionResult, error) {
	if block := m.Called(args.Description).Bool(0); block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.ActionService.CreateAction(ctx, args)
}

func (m *mockedActions) SignAction(
	ctx context.Context, reference string, spends map[uint32]ports.SpendArgs,
) (*ports.SignActionResult, error) {
	if err := m.Called(reference).Error(0); err != nil {
		return nil, err
	}
	return m.ActionService.SignAction(ctx, reference, spends)
}

func (m *mockedActions) AbortAction(ctx context.Context, reference string) error {
	m.Called(reference)
	return m.ActionService.AbortAction(ctx, reference)
}

type mockedWallet struct {
	*embeddedwallet.Service
	actions *mockedActions
}

func (w *mockedWallet) Actions() ports.ActionService {
	return w.actions
}

// countingRelay records how many messages were sent through it.
type countingRelay struct {
	ports.Relay
	sent int32
}

func (r *countingRelay) SendMessage(
	ctx context.Context, recipient, box string, body []byte,
) error {
	atomic.AddInt32(&r.sent, 1)
	return r.Relay.SendMessage(ctx, recipient, box, body)
}

func (r *countingRelay) count() int {
	return int(atomic.LoadInt32(&r.sent))
}
