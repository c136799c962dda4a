//go:build linux

package socket

import (
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// cbpfReturnInterruptingCPU is the BPF program spec.md §4.5/§9 describes:
// load the extension that reports which CPU took the interrupt for this
// packet, and return it verbatim as the socket index to steer to. Ported
// from socket_attach_cbpf in the cpu_pinning module this tracker's worker
// layout descends from.
func cbpfReturnInterruptingCPU() *unix.SockFprog {
	const (
		bpfLD  = 0x00
		bpfW   = 0x00
		bpfABS = 0x20
		bpfRET = 0x06
		bpfA   = 0x10

		skfADOff = -0x1000
		skfADCPU = 36
	)

	cpuOff := int32(skfADOff + skfADCPU)
	filter := []unix.SockFilter{
		{Code: bpfLD | bpfW | bpfABS, Jt: 0, Jf: 0, K: uint32(cpuOff)},
		{Code: bpfRET | bpfA, Jt: 0, Jf: 0, K: 0},
	}

	return &unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
}

// Listen opens a SO_REUSEPORT UDP socket bound to address and attaches
// the interrupting-CPU CBPF classifier, so the kernel delivers each
// datagram to the socket owned by the worker pinned to that core. Falls
// back to a plain SO_REUSEPORT bind (no kernel-steered affinity) if
// SO_ATTACH_REUSEPORT_CBPF isn't available, reporting that through the
// returned degraded flag rather than logging it here.
func Listen(address string, recvBufferSize int) (net.PacketConn, bool, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, false, errors.Wrapf(err, "resolve %s", address)
	}

	domain := unix.AF_INET
	sockAddr, err := toSockaddr(udpAddr, &domain)
	if err != nil {
		return nil, false, err
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, false, errors.Wrap(err, "socket")
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, false, errors.Wrap(err, "set SO_REUSEPORT")
	}
	if recvBufferSize > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufferSize)
	}

	if err := unix.Bind(fd, sockAddr); err != nil {
		unix.Close(fd)
		return nil, false, errors.Wrap(err, "bind")
	}

	degraded := false
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_REUSEPORT_CBPF, cbpfReturnInterruptingCPU()); err != nil {
		degraded = true
	}

	f := os.NewFile(uintptr(fd), "udp-reuseport")
	conn, err := net.FilePacketConn(f)
	f.Close()
	if err != nil {
		return nil, false, errors.Wrap(err, "FilePacketConn")
	}

	return conn, degraded, nil
}

func toSockaddr(addr *net.UDPAddr, domain *int) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		*domain = unix.AF_INET
		var b [4]byte
		copy(b[:], ip4)
		return &unix.SockaddrInet4{Port: addr.Port, Addr: b}, nil
	}
	*domain = unix.AF_INET6
	var b [16]byte
	ip := addr.IP.To16()
	if ip == nil {
		return nil, syscall.EINVAL
	}
	copy(b[:], ip)
	return &unix.SockaddrInet6{Port: addr.Port, Addr: b}, nil
}
