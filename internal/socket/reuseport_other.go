//go:build !linux

package socket

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	sharedMu    sync.Mutex
	sharedConns = make(map[string]net.PacketConn)
)

// Listen on non-Linux platforms opens one plain UDP socket per address,
// without SO_REUSEPORT or kernel-steered affinity, and hands that same
// socket to every worker that asks for the address, so CPU-interrupt
// steering is unavailable. This documents degraded performance rather
// than failing, per spec.md §9's guidance for platforms lacking CBPF
// support.
func Listen(address string, recvBufferSize int) (net.PacketConn, bool, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if conn, ok := sharedConns[address]; ok {
		return conn, true, nil
	}
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, false, errors.Wrapf(err, "listen %s", address)
	}
	sharedConns[address] = conn
	logrus.Warn("SO_REUSEPORT/CBPF steering unavailable on this platform; running with a single shared socket")
	return conn, true, nil
}
