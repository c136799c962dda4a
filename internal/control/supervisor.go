// Package control implements the supervisory loops (C6): periodic swarm
// cleaning and access-list reload, run from a goroutine group separate
// from the socket workers. Cleaning requests are non-blocking sends, so a
// busy worker never stalls the supervisor; the cleaning itself runs on
// each worker's own goroutine, between socket reads.
package control

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
)

// Cleanable is implemented by each socket worker. RequestClean signals the
// worker's own goroutine to clean its private store; the store is never
// touched from the supervisor goroutine directly.
type Cleanable interface {
	RequestClean(now time.Time)
}

// Supervisor owns the cleaning ticker (message-handoff to each worker,
// per spec.md §4.6) and the access-list reload ticker.
type Supervisor struct {
	cfg        *config.Config
	workers    []Cleanable
	accessList *accesslist.List
	log        *logrus.Entry
}

// NewSupervisor constructs a Supervisor over the given workers' private
// stores and the shared access-list snapshot.
func NewSupervisor(cfg *config.Config, workers []Cleanable, accessList *accesslist.List, log *logrus.Entry) *Supervisor {
	return &Supervisor{cfg: cfg, workers: workers, accessList: accessList, log: log}
}

// Run drives both loops until ctx is cancelled, returning the first
// loop's error (errgroup cancels the sibling loop on any failure).
func (s *Supervisor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runCleaning(ctx)
	})

	if s.cfg.AccessList.Path != "" {
		g.Go(func() error {
			return s.runAccessListReload(ctx)
		})
	}

	return g.Wait()
}

func (s *Supervisor) runCleaning(ctx context.Context) error {
	interval := s.cfg.CleaningIntervalDuration()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, w := range s.workers {
				w.RequestClean(now)
			}
			s.log.WithField("workers", len(s.workers)).Debug("swarm cleaning pass requested")
		}
	}
}

func (s *Supervisor) runAccessListReload(ctx context.Context) error {
	interval := time.Duration(s.cfg.AccessList.ReloadInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.accessList.ReloadFromFile(s.cfg.AccessList.Path); err != nil {
		s.log.WithError(err).Warn("initial access list load failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.accessList.ReloadFromFile(s.cfg.AccessList.Path); err != nil {
				s.log.WithError(err).Warn("access list reload failed")
				continue
			}
			s.log.WithField("entries", s.accessList.Len()).Debug("access list reloaded")
		}
	}
}
