// Package connid implements the stateless connection-id handshake (C2):
// a keyed hash over the peer's address and a coarse time bucket, so the
// tracker can verify a previously issued ConnectionID without keeping a
// per-peer table. This is the design spec.md §4.2/§9 recommend over a
// stateful PendingConnections map, since it is immune to connection-table
// exhaustion by an attacker who cannot enumerate a server-side table they
// never get to see.
package connid

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"net"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/kirinse/aquatic-go/internal/model"
)

// Secret is the per-process random key used to derive connection ids. It
// is generated once at startup and shared read-only across all socket
// workers (§5): no locking is needed since it is never mutated after
// creation.
type Secret [32]byte

// NewSecret generates a fresh random secret.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return s, err
	}
	return s, nil
}

// Issuer derives and validates connection ids for a single secret.
//
// The bucket width is half of maxConnectionAge: a token accepted on the
// "current or previous bucket" check is therefore never older than
// approximately maxConnectionAge, so the testable property that a token
// older than maxConnectionAge+1s is rejected holds regardless of what
// max_connection_age is configured to.
type Issuer struct {
	secret        Secret
	bucketSeconds int64
}

// NewIssuer constructs an Issuer bound to secret, with its bucket width
// derived from the configured connection-id validity window.
func NewIssuer(secret Secret, maxConnectionAge time.Duration) *Issuer {
	bucket := int64(maxConnectionAge/time.Second) / 2
	if bucket < 1 {
		bucket = 1
	}
	return &Issuer{secret: secret, bucketSeconds: bucket}
}

// Issue derives the ConnectionID for addr at the current time bucket.
func (iss *Issuer) Issue(addr model.PeerAddress, now time.Time) model.ConnectionID {
	return iss.derive(addr, iss.bucketAt(now))
}

// Validate reports whether id was issued to addr within the current or
// immediately preceding bucket, which is how the validity window in
// spec.md §4.2 is realized without storing anything per connection.
func (iss *Issuer) Validate(id model.ConnectionID, addr model.PeerAddress, now time.Time) bool {
	current := iss.bucketAt(now)
	if constantTimeEqual(id, iss.derive(addr, current)) {
		return true
	}
	return constantTimeEqual(id, iss.derive(addr, current-1))
}

func (iss *Issuer) bucketAt(now time.Time) int64 {
	return now.Unix() / iss.bucketSeconds
}

func (iss *Issuer) derive(addr model.PeerAddress, bucket int64) model.ConnectionID {
	mac, err := blake2b.New256(iss.secret[:])
	if err != nil {
		// blake2b.New256 only fails for an oversized key, which Secret's
		// fixed 32-byte size never produces.
		panic(err)
	}

	ip := addr.IP
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	} else {
		// Normalize to the 16-byte form so v4 and v6 addresses with
		// colliding low bytes never derive the same digest input.
		ip = ip.To16()
	}
	mac.Write(ip)

	var bucketBuf [8]byte
	binary.BigEndian.PutUint64(bucketBuf[:], uint64(bucket))
	mac.Write(bucketBuf[:])

	digest := mac.Sum(nil)
	return model.ConnectionID(binary.BigEndian.Uint64(digest[:8]))
}

func constantTimeEqual(a, b model.ConnectionID) bool {
	var ab, bb [8]byte
	binary.BigEndian.PutUint64(ab[:], uint64(a))
	binary.BigEndian.PutUint64(bb[:], uint64(b))
	return subtle.ConstantTimeCompare(ab[:], bb[:]) == 1
}

// AddressFromUDP is a small helper so callers outside this package can
// build the model.PeerAddress connid expects without duplicating the v4
// classification logic already in model.PeerAddressFromUDP.
func AddressFromUDP(addr *net.UDPAddr) model.PeerAddress {
	return model.PeerAddressFromUDP(addr, uint16(addr.Port))
}
