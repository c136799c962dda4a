// Package accesslist implements the in-memory info-hash allow/deny set
// (C3): an immutable snapshot published via atomic pointer swap so the hot
// path never takes a lock, matching spec.md §4.3/§9's design note.
package accesslist

import (
	"bufio"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/model"
)

// snapshot is the immutable payload swapped atomically on reload.
type snapshot struct {
	mode   config.AccessListMode
	hashes map[model.InfoHash]struct{}
}

// List is a hot-swappable access list. The zero value is not usable; use
// New.
type List struct {
	current atomic.Pointer[snapshot]
}

// New creates a List in the given mode with no entries loaded yet.
func New(mode config.AccessListMode) *List {
	l := &List{}
	l.current.Store(&snapshot{mode: mode, hashes: map[model.InfoHash]struct{}{}})
	return l
}

// IsAllowed is the sole hot-path read: O(1), lock-free.
func (l *List) IsAllowed(h model.InfoHash) bool {
	s := l.current.Load()
	switch s.mode {
	case config.AccessListAllow:
		_, ok := s.hashes[h]
		return ok
	case config.AccessListDeny:
		_, ok := s.hashes[h]
		return !ok
	default: // AccessListOff
		return true
	}
}

// Mode returns the access list's current mode.
func (l *List) Mode() config.AccessListMode {
	return l.current.Load().mode
}

// ReloadFromFile parses a newline-delimited file of hex-encoded 20-byte
// info-hashes and atomically publishes the new snapshot. Malformed lines
// are skipped; a completely unreadable file leaves the previous snapshot
// in place and returns an error, so a bad reload never blanks out a
// previously working list.
func (l *List) ReloadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open access list %s", path)
	}
	defer f.Close()

	hashes := make(map[model.InfoHash]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h, err := model.InfoHashFromHex(line)
		if err != nil {
			continue
		}
		hashes[h] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "read access list %s", path)
	}

	mode := l.current.Load().mode
	l.current.Store(&snapshot{mode: mode, hashes: hashes})
	return nil
}

// Len reports how many info-hashes the current snapshot holds, used for
// logging after a reload.
func (l *List) Len() int {
	return len(l.current.Load().hashes)
}
