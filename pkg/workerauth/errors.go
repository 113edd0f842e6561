// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import "github.com/zeebo/errs"

// Error kinds surfaced by the core state machine (spec.md §7). Each is a
// package-level errs.Class, the same pattern as transport.Error and
// bootstrapserver.Error in the teacher packages.
// Error is this package's general error class, for failures (cork
// buffer I/O, IPC encoding) that aren't one of the five auth-specific
// kinds below.
var Error = errs.Class("workerauth error")

var (
	// ErrAuthFail is terminal: the caller tears the connection down.
	// When HandlePost returns one, the 401 response carrying the
	// FailError's Reason has already been written.
	ErrAuthFail = errs.Class("auth fail")

	// ErrAuthContinue is not really an error: it signals a multi-step
	// continuation that should re-render the challenge document.
	ErrAuthContinue = errs.Class("auth continue")

	// ErrParse covers a missing or empty field in a credential body.
	ErrParse = errs.Class("parse error")

	// ErrInternal covers I/O or IPC failures talking to the security
	// module or supervisor.
	ErrInternal = errs.Class("internal error")

	// ErrCert covers certificate-introspection failures.
	ErrCert = errs.Class("cert error")
)

// Reasons sent verbatim in the X-Reason header,
// matching the originals in worker-auth.c exactly (client compatibility
// depends on some of these strings).
const (
	ReasonInternalError = "Internal error"
	ReasonCertReadError  = "Could not read certificate"
	ReasonNoCertError    = "No certificate"
	ReasonNoPasswordError = "No password"
	ReasonAuthFailed     = "Authentication failed"
)

// FailError carries the X-Reason text for a terminal AuthFail.
type FailError struct {
	Reason string
}

func (e *FailError) Error() string { return e.Reason }

// AuthFail builds a terminal failure with the given operator-facing
// reason.
func AuthFail(reason string) error {
	return ErrAuthFail.Wrap(&FailError{Reason: reason})
}

// FailReason extracts the X-Reason text from err, defaulting to
// ReasonAuthFailed when err doesn't carry one (e.g. a bare ErrAuthFail
// wrapping something else, or any other error reaching the top-level
// handler).
func FailReason(err error) string {
	for e := err; e != nil; {
		if f, ok := e.(*FailError); ok {
			return f.Reason
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return ReasonAuthFailed
}

// ContinueError is the non-terminal signal returned after a MSG reply:
// the challenge document has already been re-rendered (component C),
// and the caller's only job is to keep the connection open for the
// next POST rather than tear it down as a failure.
type ContinueError struct {
	Msg string
}

func (e *ContinueError) Error() string { return "auth continue: " + e.Msg }

// AuthContinue builds the multi-step continuation signal returned by
// recvAuthReply on an ipc.ReplyMSG (spec.md §4(E): "Returns
// ERR_AUTH_CONTINUE").
func AuthContinue(msg string) error {
	return ErrAuthContinue.Wrap(&ContinueError{Msg: msg})
}

// ContinueMsg reports whether err is an AuthContinue signal rather than
// a terminal failure, extracting the challenge message carried with it.
// Callers driving the connection loop must check this before treating a
// non-nil HandlePost error as grounds to close the connection.
func ContinueMsg(err error) (string, bool) {
	for e := err; e != nil; {
		if c, ok := e.(*ContinueError); ok {
			return c.Msg, true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return "", false
}
