// Package swarm implements the per-worker swarm store (C4): the
// info-hash-to-peer-table index, announce/scrape handling, expiry, and
// randomized sampling from spec.md §4.4. A Store is private to a single
// socket worker and is never accessed concurrently, so it carries no
// internal locking.
package swarm

import (
	"math/rand"
	"time"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/consts"
	"github.com/kirinse/aquatic-go/internal/model"
	"github.com/kirinse/aquatic-go/internal/proto"
)

// Store holds the two disjoint swarms (v4/v6) owned by one socket worker.
type Store struct {
	v4 map[model.InfoHash]*peerTable
	v6 map[model.InfoHash]*peerTable

	start model.ServerStartInstant
	rng   *rand.Rand
}

// NewStore constructs an empty Store. seed should be derived from
// crypto/rand at worker startup rather than shared across workers, so
// sampling in different workers doesn't follow correlated sequences.
func NewStore(start model.ServerStartInstant, seed int64) *Store {
	return &Store{
		v4:    make(map[model.InfoHash]*peerTable),
		v6:    make(map[model.InfoHash]*peerTable),
		start: start,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *Store) tableFor(family model.IPFamily) map[model.InfoHash]*peerTable {
	if family == model.IPv6 {
		return s.v6
	}
	return s.v4
}

// HandleAnnounce implements spec.md §4.4's handle_announce: insert/replace
// the requester's record, apply event semantics, and assemble a
// family-isolated, seeder-filtered, bounded-scan sample of peers.
func (s *Store) HandleAnnounce(cfg *config.Config, now time.Time, addr model.PeerAddress, req *proto.AnnounceRequest) *proto.AnnounceResponse {
	tables := s.tableFor(addr.Family)
	table, ok := tables[req.InfoHash]
	if !ok {
		table = newPeerTable()
		tables[req.InfoHash] = table
	}

	if req.Event == model.EventStopped {
		table.remove(req.PeerID)
		return s.assembleAnnounceResponse(cfg, table, nil, req.PeerID)
	}

	status := model.StatusFromLeft(req.Left)
	rec := &model.PeerRecord{
		PeerID: req.PeerID,
		Address: model.PeerAddress{
			IP:     addr.IP,
			Port:   req.Port,
			Family: addr.Family,
		},
		Status:     status,
		ValidUntil: model.NewValidUntil(s.start, now, cfg.MaxPeerAgeDuration()),
	}
	table.upsert(rec)

	numWant := effectiveNumWant(req.NumWant, cfg.Handlers.DefaultNumWant, cfg.Handlers.MaxPeersReturned)

	var peers []*model.PeerRecord
	if numWant > 0 {
		if status == model.Seeder {
			peers = table.sampleBoundedScan(s.rng, numWant, req.PeerID, func(r *model.PeerRecord) bool {
				return r.Status == model.Leecher
			})
		} else {
			peers = table.sampleBoundedScan(s.rng, numWant, req.PeerID, nil)
		}
	}

	return s.assembleAnnounceResponse(cfg, table, peers, req.PeerID)
}

func (s *Store) assembleAnnounceResponse(cfg *config.Config, table *peerTable, peers []*model.PeerRecord, _ model.PeerID) *proto.AnnounceResponse {
	resp := &proto.AnnounceResponse{
		Interval: uint32(cfg.Handlers.AnnounceInterval),
		Leechers: table.leechers,
		Seeders:  table.seeders,
		Peers:    make([]proto.ResponsePeer, 0, len(peers)),
	}
	for _, p := range peers {
		ip := p.Address.IP
		if p.Address.Family == model.IPv4 {
			ip = ip.To4()
		} else {
			ip = ip.To16()
		}
		resp.Peers = append(resp.Peers, proto.ResponsePeer{IP: ip, Port: p.Address.Port})
	}
	return resp
}

func effectiveNumWant(requested int32, defaultNumWant, maxPeersReturned int) int {
	n := defaultNumWant
	if requested >= 0 {
		n = int(requested)
	}
	if n > maxPeersReturned {
		n = maxPeersReturned
	}
	if n < 0 {
		n = 0
	}
	return n
}

// HandleScrape implements spec.md §4.4's handle_scrape: emit aggregate
// counts for each requested info-hash, in request order, isolated to the
// requester's address family.
func (s *Store) HandleScrape(addr model.PeerAddress, req *proto.ScrapeRequest) *proto.ScrapeResponse {
	tables := s.tableFor(addr.Family)
	stats := make([]proto.ScrapeStat, len(req.InfoHashes))
	for i, h := range req.InfoHashes {
		if t, ok := tables[h]; ok {
			stats[i] = proto.ScrapeStat{
				Complete:   t.seeders,
				Downloaded: t.completed,
				Incomplete: t.leechers,
			}
		}
	}
	return &proto.ScrapeResponse{Stats: stats}
}

// Clean implements spec.md §4.4's clean: drop access-list-rejected and
// fully-expired info-hashes from both families. Must only be called from
// the owning worker's goroutine.
func (s *Store) Clean(list *accesslist.List, now time.Time) {
	cleanFamily(s.v4, s.start, list, now)
	cleanFamily(s.v6, s.start, list, now)
}

func cleanFamily(tables map[model.InfoHash]*peerTable, start model.ServerStartInstant, list *accesslist.List, now time.Time) {
	for h, t := range tables {
		if !list.IsAllowed(h) {
			delete(tables, h)
			continue
		}
		t.clean(start, now)
		if t.len() == 0 {
			delete(tables, h)
		}
	}
}

// ErrDropSilently re-exports consts.ErrDropSilently so callers can compare
// against it without importing consts directly.
var ErrDropSilently = consts.ErrDropSilently
