// Package consts collects the sentinel errors shared across the tracker
// core, following the same pattern as error handling elsewhere in the
// codebase: callers compare against these with errors.Is rather than
// matching on string content.
package consts

import "github.com/pkg/errors"

var (
	// ErrMalformedFrame is returned by the wire codec when a request frame
	// is too short or has an out-of-range field.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrBadMagic names a Connect request whose magic constant does not
	// match the BEP 15 value. proto.ParseRequest reports that case as
	// ErrDropSilently, not as this error.
	ErrBadMagic = errors.New("bad magic constant")

	// ErrBadAction is returned when a request's action field is not one of
	// Connect/Announce/Scrape.
	ErrBadAction = errors.New("bad action")

	// ErrBadEvent is returned when an announce event field is outside
	// {none, completed, started, stopped}.
	ErrBadEvent = errors.New("bad event")

	// ErrTooManyInfoHashes is returned when a scrape request carries more
	// than the wire format's 74 info-hash budget.
	ErrTooManyInfoHashes = errors.New("too many info hashes in scrape request")

	// ErrDropSilently marks an error whose handling policy is to drop the
	// datagram without a response, never to log it as a failure.
	ErrDropSilently = errors.New("drop silently")

	// ErrConnectionIDMismatch names a token that was not issued to the
	// requesting address within the validity window. connid.Issuer.Validate
	// reports that case as a false result, not as this error.
	ErrConnectionIDMismatch = errors.New("connection id mismatch")

	// ErrInfoHashNotAllowed names an info-hash the access list rejects. The
	// socket handler answers that case with an Error frame carrying the
	// same message text rather than returning this error.
	ErrInfoHashNotAllowed = errors.New("info hash not allowed")

	// ErrInvalidConfig is returned when a config value fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrTooManyWorkers is returned by the CPU pinner when the configured
	// worker count cannot be satisfied by the available core set under the
	// chosen hyperthread policy.
	ErrTooManyWorkers = errors.New("too many workers for available cpu cores")

	// ErrEmptyCPUSet is returned when a pinning computation produces an
	// empty set of logical CPUs to bind to.
	ErrEmptyCPUSet = errors.New("cpu pinning produced an empty cpu set")
)
