//go:build linux

package socket

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func unsafeFilterAt(prog *unix.SockFprog, i int) unix.SockFilter {
	base := uintptr(unsafe.Pointer(prog.Filter))
	ptr := (*unix.SockFilter)(unsafe.Pointer(base + uintptr(i)*unsafe.Sizeof(unix.SockFilter{})))
	return *ptr
}

func TestCBPFProgram_MatchesDocumentedOpcodes(t *testing.T) {
	prog := cbpfReturnInterruptingCPU()
	require.EqualValues(t, 2, prog.Len)

	// Instruction 0: BPF_LD|BPF_W|BPF_ABS loading the SKF_AD_CPU extension.
	loadInsn := unsafeFilterAt(prog, 0)
	require.Equal(t, uint16(0x00|0x00|0x20), loadInsn.Code)
	wantK := int32(-0x1000 + 36)
	require.Equal(t, uint32(wantK), loadInsn.K)

	// Instruction 1: BPF_RET|BPF_A, returning the loaded CPU index verbatim.
	retInsn := unsafeFilterAt(prog, 1)
	require.Equal(t, uint16(0x06|0x10), retInsn.Code)
}
