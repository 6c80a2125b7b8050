package autocompact

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignitedb/ignitedb/pkg/logger"
)

type countingCompactor struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingCompactor) Compact() error {
	c.calls.Add(1)
	if c.fail {
		return assertError{}
	}
	return nil
}

type assertError struct{}

func (assertError) Error() string { return "compaction failed" }

func TestTickerInvokesCompactPeriodically(t *testing.T) {
	target := &countingCompactor{}
	ticker := Start(target, 5*time.Millisecond, logger.Nop())
	defer ticker.Stop()

	require.Eventually(t, func() bool {
		return target.calls.Load() >= 2
	}, time.Second, time.Millisecond)
}

func TestTickerStopEndsTheLoop(t *testing.T) {
	target := &countingCompactor{}
	ticker := Start(target, 5*time.Millisecond, logger.Nop())

	require.Eventually(t, func() bool {
		return target.calls.Load() >= 1
	}, time.Second, time.Millisecond)

	ticker.Stop()
	seenAtStop := target.calls.Load()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, seenAtStop, target.calls.Load())
}

func TestTickerSurvivesCompactionErrors(t *testing.T) {
	target := &countingCompactor{fail: true}
	ticker := Start(target, 5*time.Millisecond, logger.Nop())
	defer ticker.Stop()

	require.Eventually(t, func() bool {
		return target.calls.Load() >= 2
	}, time.Second, time.Millisecond)
}
