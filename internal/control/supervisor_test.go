package control

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
)

type countingCleaner struct {
	calls int32
}

func (c *countingCleaner) RequestClean(now time.Time) {
	atomic.AddInt32(&c.calls, 1)
}

func TestSupervisor_RunsCleaningPeriodically(t *testing.T) {
	cfg := config.Default()
	cfg.Cleaning.Interval = 0 // forces the 1-minute floor; use a short ticker override below
	cleaner := &countingCleaner{}
	list := accesslist.New(config.AccessListOff)
	sup := NewSupervisor(cfg, []Cleanable{cleaner}, list, logrus.NewEntry(logrus.New()))

	// Bypass the 1-minute floor for the test by driving runCleaning directly
	// with a short-lived context and a config interval fast enough to fire.
	cfg.Cleaning.Interval = 1
	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	err := sup.runCleaning(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, atomic.LoadInt32(&cleaner.calls), int32(1))
}

func TestSupervisor_Run_StopsOnContextCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Cleaning.Interval = 60
	cleaner := &countingCleaner{}
	list := accesslist.New(config.AccessListOff)
	sup := NewSupervisor(cfg, []Cleanable{cleaner}, list, logrus.NewEntry(logrus.New()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after context cancel")
	}
}
