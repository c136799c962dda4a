// Command aquatrackd runs a standalone BitTorrent UDP tracker.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/connid"
	"github.com/kirinse/aquatic-go/internal/control"
	"github.com/kirinse/aquatic-go/internal/cpuaffinity"
	"github.com/kirinse/aquatic-go/internal/model"
	"github.com/kirinse/aquatic-go/internal/socket"
	"github.com/kirinse/aquatic-go/internal/swarm"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 1
	}

	socketWorkers := cfg.SocketWorkers
	if socketWorkers <= 0 {
		n, err := cpuaffinity.NumCores()
		if err != nil {
			log.WithError(err).Error("could not determine worker count")
			return 1
		}
		socketWorkers = n
	}

	secret, err := connid.NewSecret()
	if err != nil {
		log.WithError(err).Error("could not generate connection id secret")
		return 1
	}
	start := model.NewServerStartInstant()
	issuer := connid.NewIssuer(secret, cfg.MaxConnectionAgeDuration())
	accessList := accesslist.New(cfg.AccessList.Mode)
	if cfg.AccessList.Path != "" {
		if err := accessList.ReloadFromFile(cfg.AccessList.Path); err != nil {
			log.WithError(err).Warn("initial access list load failed; starting with an empty list")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cleanables := make([]control.Cleanable, 0, socketWorkers)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < socketWorkers; i++ {
		conn, degraded, err := socket.Listen(cfg.Network.Address, cfg.Network.SocketRecvBufferSize)
		if err != nil {
			log.WithError(err).WithField("worker", i).Error("failed to bind socket worker")
			cancel()
			return 1
		}
		if degraded {
			log.WithField("worker", i).Warn("running with degraded kernel-steered affinity")
		}

		var seedBuf [8]byte
		if _, err := rand.Read(seedBuf[:]); err != nil {
			log.WithError(err).WithField("worker", i).Error("could not seed peer sampler")
			cancel()
			return 1
		}
		store := swarm.NewStore(start, int64(binary.BigEndian.Uint64(seedBuf[:])))
		handler := socket.NewHandler(cfg, store, issuer, accessList, log.WithField("worker", i))
		worker := socket.NewWorker(i, conn, handler, log.WithField("worker", i))

		cleanables = append(cleanables, worker)

		idx := i
		g.Go(func() error {
			pin := func() error {
				return cpuaffinity.Bind(cfg.CPUPinning, cpuaffinity.WorkerIndex{Kind: cpuaffinity.SocketWorker, Index: idx}, socketWorkers)
			}
			return worker.Run(gctx, pin)
		})
	}

	supervisor := control.NewSupervisor(cfg, cleanables, accessList, log.WithField("component", "supervisor"))
	g.Go(func() error {
		return supervisor.Run(gctx)
	})

	log.WithField("address", cfg.Network.Address).WithField("workers", socketWorkers).Info("tracker started")

	// gctx is always cancelled once Wait returns, so only the signal
	// context tells a requested shutdown apart from a worker failure.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("fatal worker error")
		return 1
	}

	log.Info("tracker shut down cleanly")
	return 0
}
