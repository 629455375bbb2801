package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	defer goleak.VerifyNone(t)

	var runs atomic.Int32
	s := NewScheduler()
	s.Add(Job{Name: "count", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestScheduler_RecordsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	defer s.Stop()

	s.Add(Job{Name: "broken", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("boom")
	}})

	require.Eventually(t, func() bool {
		statuses := s.Status()
		return len(statuses) == 1 && statuses[0].Runs == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "boom", s.Status()[0].LastErr)
}

func TestScheduler_DisabledAndRemovedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler()
	defer s.Stop()

	s.Add(Job{Name: "off", Interval: 0, Run: func(context.Context) error { return nil }})
	assert.Empty(t, s.Status())

	s.Add(Job{Name: "on", Interval: time.Hour, Run: func(context.Context) error { return nil }})
	require.Len(t, s.Status(), 1)

	s.Remove("on")
	assert.Empty(t, s.Status())
}
