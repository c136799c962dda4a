package model

import (
	"net"

	"github.com/pkg/errors"
)

var errInfoHashLength = errors.New("info hash must decode to 20 bytes")

// PeerID is the 20-byte identifier a peer supplies on announce. It is never
// interpreted, only compared for equality.
type PeerID [20]byte

// PeerKey is an optional 32-bit secondary identity a peer may supply.
type PeerKey uint32

// TransactionID is the client-chosen nonce echoed in every response.
type TransactionID uint32

// ConnectionID is the 64-bit token the tracker issues on Connect.
type ConnectionID uint64

// AnnounceEvent is the lifecycle event carried on an announce request.
type AnnounceEvent uint32

// Announce event values, matching the BEP 15 wire encoding exactly.
const (
	EventNone AnnounceEvent = iota
	EventCompleted
	EventStarted
	EventStopped
)

// Valid reports whether e is one of the four recognized event values.
func (e AnnounceEvent) Valid() bool {
	return e <= EventStopped
}

// IPFamily distinguishes the two disjoint swarms a tracker maintains.
type IPFamily uint8

const (
	IPv4 IPFamily = iota
	IPv6
)

// PeerAddress is a peer's network address as observed by the socket, never
// the client-claimed "ip" field from the announce request.
type PeerAddress struct {
	IP     net.IP
	Port   uint16
	Family IPFamily
}

// PeerAddressFromUDP derives a PeerAddress from a UDP source address,
// classifying the family from the IP's 4-in-6 representation.
func PeerAddressFromUDP(addr *net.UDPAddr, port uint16) PeerAddress {
	family := IPv6
	ip := addr.IP
	if v4 := ip.To4(); v4 != nil {
		family = IPv4
		ip = v4
	}
	return PeerAddress{IP: ip, Port: port, Family: family}
}

// PeerStatus is Seeder when a peer has nothing left to download.
type PeerStatus uint8

const (
	Leecher PeerStatus = iota
	Seeder
)

// StatusFromLeft derives a PeerStatus from the client-reported bytes left.
func StatusFromLeft(left int64) PeerStatus {
	if left == 0 {
		return Seeder
	}
	return Leecher
}

// PeerRecord is a single peer's entry in a PeerTable.
type PeerRecord struct {
	PeerID     PeerID
	Address    PeerAddress
	Status     PeerStatus
	ValidUntil ValidUntil
}
