package proto

import (
	"bytes"
	"encoding/binary"

	"github.com/kirinse/aquatic-go/internal/model"
)

// ConnectResponse is the Connect handshake reply.
type ConnectResponse struct {
	TransactionID model.TransactionID
	ConnectionID  model.ConnectionID
}

// ResponsePeer is a single compact peer entry in an AnnounceResponse.
type ResponsePeer struct {
	IP   []byte // 4 bytes for v4, 16 for v6
	Port uint16
}

// AnnounceResponse is the announce reply (§4.1). Peers are packed compact
// (6 bytes v4, 18 bytes v6); every peer must share the same family as the
// requester, enforced by the swarm store rather than by this type.
type AnnounceResponse struct {
	TransactionID model.TransactionID
	Interval      uint32
	Leechers      uint32
	Seeders       uint32
	Peers         []ResponsePeer
}

// ScrapeStat is one info-hash's aggregate counts.
type ScrapeStat struct {
	Complete   uint32
	Downloaded uint32
	Incomplete uint32
}

// ScrapeResponse is the scrape reply (§4.1), in request order.
type ScrapeResponse struct {
	TransactionID model.TransactionID
	Stats         []ScrapeStat
}

// ErrorResponse is the generic failure reply (§4.1 / §7).
type ErrorResponse struct {
	TransactionID model.TransactionID
	Message       string
}

// Marshal serializes a Connect response.
func (r *ConnectResponse) Marshal() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionConnect))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.TransactionID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(r.ConnectionID))
	return buf
}

// Marshal serializes an Announce response, packing peers compact.
func (r *AnnounceResponse) Marshal() []byte {
	var buf bytes.Buffer
	var head [20]byte
	binary.BigEndian.PutUint32(head[0:4], uint32(ActionAnnounce))
	binary.BigEndian.PutUint32(head[4:8], uint32(r.TransactionID))
	binary.BigEndian.PutUint32(head[8:12], r.Interval)
	binary.BigEndian.PutUint32(head[12:16], r.Leechers)
	binary.BigEndian.PutUint32(head[16:20], r.Seeders)
	buf.Write(head[:])

	var portBuf [2]byte
	for _, p := range r.Peers {
		buf.Write(p.IP)
		binary.BigEndian.PutUint16(portBuf[:], p.Port)
		buf.Write(portBuf[:])
	}
	return buf.Bytes()
}

// Marshal serializes a Scrape response in request order.
func (r *ScrapeResponse) Marshal() []byte {
	buf := make([]byte, 8+12*len(r.Stats))
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionScrape))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.TransactionID))
	for i, s := range r.Stats {
		off := 8 + i*12
		binary.BigEndian.PutUint32(buf[off:off+4], s.Complete)
		binary.BigEndian.PutUint32(buf[off+4:off+8], s.Downloaded)
		binary.BigEndian.PutUint32(buf[off+8:off+12], s.Incomplete)
	}
	return buf
}

// Marshal serializes an Error response, appending the message verbatim as
// the remainder of the frame.
func (r *ErrorResponse) Marshal() []byte {
	buf := make([]byte, 8+len(r.Message))
	binary.BigEndian.PutUint32(buf[0:4], uint32(ActionError))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.TransactionID))
	copy(buf[8:], r.Message)
	return buf
}
