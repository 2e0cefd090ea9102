package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	scheduler "github.com/bsvhackathon/P2P-Voicemail-sub001/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

func TestScheduleTask(t *testing.T) {
	svc := scheduler.NewScheduler()

	var count int32
	err := svc.ScheduleTask(1, true, func() {
		atomic.AddInt32(&count, 1)
	})
	require.NoError(t, err)

	err = svc.ScheduleTask(0, true, func() {})
	require.Error(t, err)

	svc.Start()
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}
