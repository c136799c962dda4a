package swarm

import (
	"math/rand"
	"time"

	"github.com/kirinse/aquatic-go/internal/model"
)

// peerTable is the per-info-hash peer index for one address family. A
// slice backs the map lookup (by PeerID) so announce can run the bounded
// random-offset scan of spec.md §4.4.
type peerTable struct {
	byID    map[model.PeerID]int
	entries []*model.PeerRecord

	seeders   uint32
	leechers  uint32
	completed uint32
}

func newPeerTable() *peerTable {
	return &peerTable{byID: make(map[model.PeerID]int)}
}

// upsert inserts or replaces the record for rec.PeerID, bumping the
// completed counter on a leecher-to-seeder transition.
func (t *peerTable) upsert(rec *model.PeerRecord) {
	var prevStatus model.PeerStatus
	var existed bool
	if idx, ok := t.byID[rec.PeerID]; ok {
		prev := t.entries[idx]
		prevStatus = prev.Status
		existed = true
		t.adjustCounts(prevStatus, -1)
		t.entries[idx] = rec
	} else {
		t.byID[rec.PeerID] = len(t.entries)
		t.entries = append(t.entries, rec)
	}
	t.adjustCounts(rec.Status, 1)

	if existed && prevStatus == model.Leecher && rec.Status == model.Seeder {
		t.completed++
	}
}

// remove deletes the record for id, if present, using swap-with-last to
// keep removal O(1).
func (t *peerTable) remove(id model.PeerID) bool {
	idx, ok := t.byID[id]
	if !ok {
		return false
	}
	t.adjustCounts(t.entries[idx].Status, -1)

	last := len(t.entries) - 1
	if idx != last {
		t.entries[idx] = t.entries[last]
		t.byID[t.entries[idx].PeerID] = idx
	}
	t.entries = t.entries[:last]
	delete(t.byID, id)
	return true
}

func (t *peerTable) adjustCounts(status model.PeerStatus, delta int32) {
	if status == model.Seeder {
		t.seeders = addClamped(t.seeders, delta)
	} else {
		t.leechers = addClamped(t.leechers, delta)
	}
}

func addClamped(v uint32, delta int32) uint32 {
	if delta < 0 {
		if uint32(-delta) > v {
			return 0
		}
		return v - uint32(-delta)
	}
	return v + uint32(delta)
}

func (t *peerTable) len() int {
	return len(t.entries)
}

// clean retains only records whose ValidUntil has not passed, shrinking
// the backing slice's capacity when a meaningful fraction was dropped.
func (t *peerTable) clean(start model.ServerStartInstant, now time.Time) {
	live := make([]*model.PeerRecord, 0, len(t.entries))
	for _, rec := range t.entries {
		if !rec.ValidUntil.Expired(start, now) {
			live = append(live, rec)
		} else {
			t.adjustCounts(rec.Status, -1)
			delete(t.byID, rec.PeerID)
		}
	}
	t.entries = live
	for i, rec := range t.entries {
		t.byID[rec.PeerID] = i
	}
	if cap(t.entries) > 2*len(t.entries)+16 {
		shrunk := make([]*model.PeerRecord, len(t.entries))
		copy(shrunk, t.entries)
		t.entries = shrunk
	}
}

// sampleBoundedScan picks a random starting offset and walks the table
// once (with wraparound), collecting up to numWant records for which
// include returns true, skipping excludeID.
func (t *peerTable) sampleBoundedScan(rng *rand.Rand, numWant int, excludeID model.PeerID, include func(*model.PeerRecord) bool) []*model.PeerRecord {
	n := len(t.entries)
	if n == 0 || numWant <= 0 {
		return nil
	}

	out := make([]*model.PeerRecord, 0, numWant)
	start := rng.Intn(n)
	for i := 0; i < n && len(out) < numWant; i++ {
		rec := t.entries[(start+i)%n]
		if rec.PeerID == excludeID {
			continue
		}
		if include != nil && !include(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
