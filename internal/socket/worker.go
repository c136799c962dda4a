package socket

import (
	"context"
	"errors"
	"net"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kirinse/aquatic-go/internal/model"
)

// readTimeout stands in for the original's recv_with_timeout: it bounds
// how long a blocking ReadFrom can hold the worker before it re-checks
// ctx for shutdown.
const readTimeout = 1 * time.Second

// Worker runs the blocking receive/parse/dispatch/send loop of spec.md
// §4.5 on one goroutine, optionally pinned to a CPU core.
type Worker struct {
	index   int
	conn    net.PacketConn
	handler *Handler
	log     *logrus.Entry
	cleanCh chan time.Time
}

// NewWorker constructs a Worker bound to conn (already SO_REUSEPORT-bound
// by the caller via Listen).
func NewWorker(index int, conn net.PacketConn, handler *Handler, log *logrus.Entry) *Worker {
	return &Worker{
		index:   index,
		conn:    conn,
		handler: handler,
		log:     log.WithField("worker", index),
		cleanCh: make(chan time.Time, 1),
	}
}

// RequestClean signals Run to clean the worker's store between reads. The
// send never blocks: a pending request coalesces with one already queued.
func (w *Worker) RequestClean(now time.Time) {
	select {
	case w.cleanCh <- now:
	default:
	}
}

// Run pins the calling goroutine's OS thread (if policy.Active) and then
// loops until ctx is cancelled or the socket errors unrecoverably.
func (w *Worker) Run(ctx context.Context, pin func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if pin != nil {
		if err := pin(); err != nil {
			return err
		}
	}

	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-w.cleanCh:
			w.handler.Clean(now)
			continue
		default:
		}

		if err := w.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		n, src, err := w.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			w.log.WithError(err).Warn("read error")
			continue
		}

		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		addr := model.PeerAddressFromUDP(udpAddr, uint16(udpAddr.Port))
		now := time.Now()

		resp := w.handler.Dispatch(buf[:n], addr, now)
		if resp == nil {
			continue
		}

		if _, err := w.conn.WriteTo(resp, src); err != nil {
			if isWouldBlock(err) {
				// Non-blocking send dropped under backpressure; the client
				// will retry, per spec.md §4.5.
				continue
			}
			w.log.WithError(err).Debug("write error")
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
