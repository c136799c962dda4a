// Package proto implements the BEP 15 UDP tracker wire codec (C1): parsing
// and serializing the Connect/Announce/Scrape request and response frames
// in network byte order, with the strict length and field-range checks
// spec.md §4.1 requires.
package proto

import (
	"encoding/binary"

	"github.com/kirinse/aquatic-go/internal/consts"
	"github.com/kirinse/aquatic-go/internal/model"
)

// ProtocolMagic is the fixed Connect-request magic constant from BEP 15.
const ProtocolMagic uint64 = 0x41727101980

// Action discriminants, shared by requests and responses.
type Action uint32

const (
	ActionConnect  Action = 0
	ActionAnnounce Action = 1
	ActionScrape   Action = 2
	ActionError    Action = 3
)

const (
	connectRequestLen  = 16
	announceRequestLen = 98
	minScrapeLen       = 16 + 20
	maxScrapeInfoHashes = 74
)

// ConnectRequest is the handshake request (§4.1).
type ConnectRequest struct {
	TransactionID model.TransactionID
}

// AnnounceRequest is the announce request (§4.1). IP and Key are carried
// verbatim even though the swarm store (C4) ignores the client-claimed IP
// in favor of the datagram's source address.
type AnnounceRequest struct {
	ConnectionID  model.ConnectionID
	TransactionID model.TransactionID
	InfoHash      model.InfoHash
	PeerID        model.PeerID
	Downloaded    int64
	Left          int64
	Uploaded      int64
	Event         model.AnnounceEvent
	IP            uint32
	Key           model.PeerKey
	NumWant       int32
	Port          uint16
}

// ScrapeRequest is the scrape request (§4.1), 1 to 74 info-hashes.
type ScrapeRequest struct {
	ConnectionID  model.ConnectionID
	TransactionID model.TransactionID
	InfoHashes    []model.InfoHash
}

// Request is the union of the three request kinds, identified by which
// field is non-nil.
type Request struct {
	Connect  *ConnectRequest
	Announce *AnnounceRequest
	Scrape   *ScrapeRequest
}

// ParseRequest dispatches on the action field following the shared prefix.
// A malformed Connect request is reported as consts.ErrDropSilently per
// spec.md §4.1's reflection defense; other malformed frames return the
// specific parse error so the caller can choose to emit an Error response.
func ParseRequest(b []byte) (*Request, error) {
	if len(b) < connectRequestLen {
		return nil, consts.ErrDropSilently
	}

	// Connect and Announce/Scrape share different prefixes: Connect leads
	// with the 8-byte magic, while Announce/Scrape lead with an 8-byte
	// connection id. Both are followed by a 4-byte action field at the
	// same offset, which is what we dispatch on.
	action := Action(binary.BigEndian.Uint32(b[8:12]))

	switch action {
	case ActionConnect:
		magic := binary.BigEndian.Uint64(b[0:8])
		if magic != ProtocolMagic {
			return nil, consts.ErrDropSilently
		}
		if len(b) < connectRequestLen {
			return nil, consts.ErrDropSilently
		}
		return &Request{Connect: &ConnectRequest{
			TransactionID: model.TransactionID(binary.BigEndian.Uint32(b[12:16])),
		}}, nil

	case ActionAnnounce:
		if len(b) < announceRequestLen {
			return nil, consts.ErrMalformedFrame
		}
		event := model.AnnounceEvent(binary.BigEndian.Uint32(b[80:84]))
		if !event.Valid() {
			return nil, consts.ErrBadEvent
		}
		req := &AnnounceRequest{
			ConnectionID:  model.ConnectionID(binary.BigEndian.Uint64(b[0:8])),
			TransactionID: model.TransactionID(binary.BigEndian.Uint32(b[12:16])),
			Downloaded:    int64(binary.BigEndian.Uint64(b[56:64])),
			Left:          int64(binary.BigEndian.Uint64(b[64:72])),
			Uploaded:      int64(binary.BigEndian.Uint64(b[72:80])),
			Event:         event,
			IP:            binary.BigEndian.Uint32(b[84:88]),
			Key:           model.PeerKey(binary.BigEndian.Uint32(b[88:92])),
			NumWant:       int32(binary.BigEndian.Uint32(b[92:96])),
			Port:          binary.BigEndian.Uint16(b[96:98]),
		}
		copy(req.InfoHash[:], b[16:36])
		copy(req.PeerID[:], b[36:56])
		return &Request{Announce: req}, nil

	case ActionScrape:
		if len(b) < minScrapeLen {
			return nil, consts.ErrMalformedFrame
		}
		payload := b[16:]
		if len(payload)%20 != 0 {
			return nil, consts.ErrMalformedFrame
		}
		count := len(payload) / 20
		if count < 1 || count > maxScrapeInfoHashes {
			return nil, consts.ErrTooManyInfoHashes
		}
		hashes := make([]model.InfoHash, count)
		for i := 0; i < count; i++ {
			copy(hashes[i][:], payload[i*20:(i+1)*20])
		}
		return &Request{Scrape: &ScrapeRequest{
			ConnectionID:  model.ConnectionID(binary.BigEndian.Uint64(b[0:8])),
			TransactionID: model.TransactionID(binary.BigEndian.Uint32(b[12:16])),
			InfoHashes:    hashes,
		}}, nil

	default:
		return nil, consts.ErrBadAction
	}
}
