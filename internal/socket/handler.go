// Package socket implements the socket worker (C5): one per-core receive
// loop that parses a request, validates its connection-id, consults the
// access list, mutates its private swarm store, and serializes a
// response, matching spec.md §4.5's blocking recv/parse/dispatch loop.
package socket

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kirinse/aquatic-go/internal/accesslist"
	"github.com/kirinse/aquatic-go/internal/config"
	"github.com/kirinse/aquatic-go/internal/connid"
	"github.com/kirinse/aquatic-go/internal/consts"
	"github.com/kirinse/aquatic-go/internal/model"
	"github.com/kirinse/aquatic-go/internal/proto"
	"github.com/kirinse/aquatic-go/internal/swarm"
)

// Handler owns the per-worker state the dispatch loop needs: the private
// swarm store, the connection-id issuer (sharing the process-wide secret
// but each worker validates independently, since validation is pure), and
// a handle on the shared access list snapshot.
type Handler struct {
	store      *swarm.Store
	connIDs    *connid.Issuer
	accessList *accesslist.List
	cfg        *config.Config
	log        *logrus.Entry
}

// NewHandler constructs a Handler for one socket worker.
func NewHandler(cfg *config.Config, store *swarm.Store, connIDs *connid.Issuer, accessList *accesslist.List, log *logrus.Entry) *Handler {
	return &Handler{store: store, connIDs: connIDs, accessList: accessList, cfg: cfg, log: log}
}

// Dispatch implements spec.md §4.5's match arm: parse, validate, consult
// the access list, mutate the store, and return the bytes to send back.
// A nil return means "drop silently" (reflection defense, a failed
// connection-id check, or a malformed frame; never logged as a failure).
func (h *Handler) Dispatch(b []byte, addr model.PeerAddress, now time.Time) []byte {
	req, err := proto.ParseRequest(b)
	if err != nil {
		return h.handleParseError(err)
	}

	switch {
	case req.Connect != nil:
		return h.handleConnect(req.Connect, addr, now)
	case req.Announce != nil:
		return h.handleAnnounce(req.Announce, addr, now)
	case req.Scrape != nil:
		return h.handleScrape(req.Scrape, addr, now)
	default:
		return nil
	}
}

func (h *Handler) handleParseError(err error) []byte {
	if errors.Is(err, consts.ErrDropSilently) {
		return nil
	}
	// Malformed Announce/Scrape frames are dropped without an Error
	// response, even when the frame is long enough to carry a transaction
	// id.
	h.log.WithError(err).Debug("dropping malformed request")
	return nil
}

func (h *Handler) handleConnect(req *proto.ConnectRequest, addr model.PeerAddress, now time.Time) []byte {
	id := h.connIDs.Issue(addr, now)
	resp := &proto.ConnectResponse{TransactionID: req.TransactionID, ConnectionID: id}
	return resp.Marshal()
}

func (h *Handler) handleAnnounce(req *proto.AnnounceRequest, addr model.PeerAddress, now time.Time) []byte {
	if !h.connIDs.Validate(req.ConnectionID, addr, now) {
		return nil
	}
	if !h.accessList.IsAllowed(req.InfoHash) {
		return h.policyError(req.TransactionID)
	}
	resp := h.store.HandleAnnounce(h.cfg, now, addr, req)
	resp.TransactionID = req.TransactionID
	return resp.Marshal()
}

func (h *Handler) handleScrape(req *proto.ScrapeRequest, addr model.PeerAddress, now time.Time) []byte {
	if !h.connIDs.Validate(req.ConnectionID, addr, now) {
		return nil
	}
	for _, hash := range req.InfoHashes {
		if !h.accessList.IsAllowed(hash) {
			return h.policyError(req.TransactionID)
		}
	}
	resp := h.store.HandleScrape(addr, req)
	resp.TransactionID = req.TransactionID
	return resp.Marshal()
}

func (h *Handler) policyError(txID model.TransactionID) []byte {
	resp := &proto.ErrorResponse{TransactionID: txID, Message: "info hash not allowed"}
	return resp.Marshal()
}

// Clean cleans the worker's private store, called only from the worker's
// own goroutine in response to a supervisor RequestClean signal.
func (h *Handler) Clean(now time.Time) {
	h.store.Clean(h.accessList, now)
}
