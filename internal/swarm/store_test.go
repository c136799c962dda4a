package swarm

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/model"
	"github.com/kirinse/aquatic-go/internal/proto"
)

func testStore() (*Store, model.ServerStartInstant) {
	start := model.NewServerStartInstant()
	return NewStore(start, 1), start
}

func peerAddr(ip string, port uint16) model.PeerAddress {
	parsed := net.ParseIP(ip)
	family := model.IPv6
	if v4 := parsed.To4(); v4 != nil {
		family = model.IPv4
		parsed = v4
	}
	return model.PeerAddress{IP: parsed, Port: port, Family: family}
}

func announceReq(hash model.InfoHash, peerID model.PeerID, left int64, event model.AnnounceEvent, numWant int32) *proto.AnnounceRequest {
	return &proto.AnnounceRequest{
		InfoHash: hash,
		PeerID:   peerID,
		Left:     left,
		Event:    event,
		NumWant:  numWant,
		Port:     6881,
	}
}

func TestHandleAnnounce_TwoLeechersFindEachOther(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{1}
	var peerA, peerB model.PeerID
	peerA[0] = 0xAA
	peerB[0] = 0xBB

	now := time.Now()
	respA := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 6881), announceReq(hash, peerA, 100, model.EventStarted, -1))
	require.Equal(t, uint32(1), respA.Leechers)
	require.Empty(t, respA.Peers)

	respB := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.2", 6882), announceReq(hash, peerB, 100, model.EventStarted, -1))
	require.Equal(t, uint32(2), respB.Leechers)
	require.Len(t, respB.Peers, 1)
	require.Equal(t, net.ParseIP("10.0.0.1").To4(), net.IP(respB.Peers[0].IP))
}

func TestHandleAnnounce_SeederOnlySeesLeechers(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{2}
	var seeder, leecher model.PeerID
	seeder[0] = 0x01
	leecher[0] = 0x02

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, leecher, 100, model.EventStarted, -1))
	resp := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.2", 2), announceReq(hash, seeder, 0, model.EventStarted, -1))

	require.Equal(t, uint32(1), resp.Seeders)
	require.Equal(t, uint32(1), resp.Leechers)
	require.Len(t, resp.Peers, 1)
}

func TestHandleAnnounce_StoppedRemovesPeer(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{3}
	var peerA model.PeerID
	peerA[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, peerA, 100, model.EventStarted, -1))
	resp := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, peerA, 100, model.EventStopped, -1))
	require.Equal(t, uint32(0), resp.Leechers)
	require.Equal(t, uint32(0), resp.Seeders)
}

func TestHandleAnnounce_CompletedBumpsCompletedCounter(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{4}
	var peerA model.PeerID
	peerA[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, peerA, 100, model.EventStarted, -1))
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, peerA, 0, model.EventCompleted, -1))

	scrapeResp := store.HandleScrape(peerAddr("10.0.0.1", 1), &proto.ScrapeRequest{InfoHashes: []model.InfoHash{hash}})
	require.Equal(t, uint32(1), scrapeResp.Stats[0].Downloaded)
	require.Equal(t, uint32(1), scrapeResp.Stats[0].Complete)
}

func TestHandleAnnounce_CompletedWithLeftGreaterThanZeroStaysLeecher(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{5}
	var peerA model.PeerID
	peerA[0] = 1

	now := time.Now()
	resp := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, peerA, 50, model.EventCompleted, -1))
	require.Equal(t, uint32(1), resp.Leechers)
	require.Equal(t, uint32(0), resp.Seeders)
}

func TestHandleAnnounce_NumWantClampedToMax(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	cfg.Handlers.MaxPeersReturned = 2
	hash := model.InfoHash{6}

	now := time.Now()
	var requester model.PeerID
	requester[0] = 0xFF
	for i := 0; i < 5; i++ {
		var id model.PeerID
		id[0] = byte(i + 1)
		store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", uint16(i+1)), announceReq(hash, id, 100, model.EventStarted, -1))
	}
	resp := store.HandleAnnounce(cfg, now, peerAddr("10.0.0.2", 99), announceReq(hash, requester, 100, model.EventStarted, 1000))
	require.LessOrEqual(t, len(resp.Peers), 2)
}

func TestHandleScrape_UnknownHashReturnsZeroStat(t *testing.T) {
	store, _ := testStore()
	hash := model.InfoHash{7}
	resp := store.HandleScrape(peerAddr("10.0.0.1", 1), &proto.ScrapeRequest{InfoHashes: []model.InfoHash{hash}})
	require.Len(t, resp.Stats, 1)
	require.Equal(t, proto.ScrapeStat{}, resp.Stats[0])
}

func TestHandleScrape_PreservesRequestOrder(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	h1 := model.InfoHash{1}
	h2 := model.InfoHash{2}
	var p model.PeerID
	p[0] = 1
	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(h2, p, 0, model.EventStarted, -1))

	resp := store.HandleScrape(peerAddr("10.0.0.1", 1), &proto.ScrapeRequest{InfoHashes: []model.InfoHash{h1, h2}})
	require.Equal(t, uint32(0), resp.Stats[0].Complete)
	require.Equal(t, uint32(1), resp.Stats[1].Complete)
}

func TestIPFamilyIsolation(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{8}
	var p model.PeerID
	p[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, p, 100, model.EventStarted, -1))
	respV6 := store.HandleAnnounce(cfg, now, peerAddr("::1", 1), announceReq(hash, p, 100, model.EventStarted, -1))

	require.Equal(t, uint32(1), respV6.Leechers)
}

func TestClean_RemovesAccessListRejectedInfoHash(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{9}
	var p model.PeerID
	p[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, p, 100, model.EventStarted, -1))
	require.Len(t, store.v4, 1)

	// An empty allow-list rejects every info-hash, so clean should drop the
	// whole entry regardless of peer freshness.
	list := accesslist.New(config.AccessListAllow)
	store.Clean(list, now.Add(time.Second))
	require.Empty(t, store.v4)
}

func TestClean_KeepsAllowListedInfoHash(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	hash := model.InfoHash{11}
	var p model.PeerID
	p[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, p, 100, model.EventStarted, -1))

	list := accesslist.New(config.AccessListOff)
	store.Clean(list, now.Add(time.Second))
	require.Len(t, store.v4, 1)
}

func TestClean_ExpiresStalePeers(t *testing.T) {
	store, _ := testStore()
	cfg := config.Default()
	cfg.Cleaning.MaxPeerAge = 1
	hash := model.InfoHash{10}
	var p model.PeerID
	p[0] = 1

	now := time.Now()
	store.HandleAnnounce(cfg, now, peerAddr("10.0.0.1", 1), announceReq(hash, p, 100, model.EventStarted, -1))

	list := accesslist.New(config.AccessListOff)
	store.Clean(list, now.Add(5*time.Second))
	require.Empty(t, store.v4)
}
