package proto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectResponse_Marshal(t *testing.T) {
	r := &ConnectResponse{TransactionID: 7, ConnectionID: 0x0102030405060708}
	b := r.Marshal()
	require.Len(t, b, 16)
	require.EqualValues(t, ActionConnect, binary.BigEndian.Uint32(b[0:4]))
	require.EqualValues(t, 7, binary.BigEndian.Uint32(b[4:8]))
	require.EqualValues(t, 0x0102030405060708, binary.BigEndian.Uint64(b[8:16]))
}

func TestAnnounceResponse_Marshal_CompactV4(t *testing.T) {
	r := &AnnounceResponse{
		TransactionID: 3,
		Interval:      900,
		Leechers:      2,
		Seeders:       1,
		Peers: []ResponsePeer{
			{IP: []byte{10, 0, 0, 1}, Port: 6881},
			{IP: []byte{10, 0, 0, 2}, Port: 6882},
		},
	}
	b := r.Marshal()
	require.Len(t, b, 20+2*6)
	require.EqualValues(t, ActionAnnounce, binary.BigEndian.Uint32(b[0:4]))
	require.EqualValues(t, 900, binary.BigEndian.Uint32(b[8:12]))
	require.EqualValues(t, 2, binary.BigEndian.Uint32(b[12:16]))
	require.EqualValues(t, 1, binary.BigEndian.Uint32(b[16:20]))
	require.Equal(t, []byte{10, 0, 0, 1}, b[20:24])
	require.EqualValues(t, 6881, binary.BigEndian.Uint16(b[24:26]))
}

func TestScrapeResponse_Marshal_PreservesOrder(t *testing.T) {
	r := &ScrapeResponse{
		TransactionID: 1,
		Stats: []ScrapeStat{
			{Complete: 1, Downloaded: 2, Incomplete: 3},
			{Complete: 4, Downloaded: 5, Incomplete: 6},
		},
	}
	b := r.Marshal()
	require.Len(t, b, 8+24)
	require.EqualValues(t, 1, binary.BigEndian.Uint32(b[8:12]))
	require.EqualValues(t, 4, binary.BigEndian.Uint32(b[20:24]))
}

func TestErrorResponse_Marshal(t *testing.T) {
	r := &ErrorResponse{TransactionID: 5, Message: "info hash not allowed"}
	b := r.Marshal()
	require.EqualValues(t, ActionError, binary.BigEndian.Uint32(b[0:4]))
	require.Equal(t, "info hash not allowed", string(b[8:]))
}
