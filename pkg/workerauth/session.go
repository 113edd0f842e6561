// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"go.uber.org/zap"

	"gwvpn.io/gateway/pkg/ipc"
	"gwvpn.io/gateway/pkg/utils"
)

// AuthState is one of the four states a worker session moves through,
// monotonically (spec.md §3, §4.5).
type AuthState int

// States, in transition order. There are no backward edges.
const (
	StateInactive AuthState = iota
	StateInit
	StateReq
	StateCookie
)

func (s AuthState) String() string {
	switch s {
	case StateInactive:
		return "INACTIVE"
	case StateInit:
		return "INIT"
	case StateReq:
		return "REQ"
	case StateCookie:
		return "COOKIE"
	default:
		return "UNKNOWN"
	}
}

// VNetInfo is the tunnel interface name and its addresses, each nullable
// (spec.md §3's "vinfo"). A nil pointer means "no address configured".
type VNetInfo struct {
	Name      string
	IPv4      *string
	IPv6      *string
	IPv4Local *string
	IPv6Local *string
}

// setAddr applies the redemption-reply sentinel rule from spec.md §4.7:
// the literal sentinel means "no address" (nil); any other value
// replaces whatever was there before. An absent field (present false,
// which callers pass for an empty string) leaves *dst unchanged.
//
// DESIGN.md records the deliberate choice here: like the original, a
// sentinel always clears a previously-stored address, even if the
// field's presence was meant as "no change" — this is the faithful
// behavior spec.md §9 flags as an open question, not a bug we fix.
func setAddr(dst **string, value string, present bool, sentinel string) {
	if !present {
		return
	}
	if value == sentinel {
		*dst = nil
		return
	}
	v := value
	*dst = &v
}

// Session is the Go rendering of the Worker Session (spec.md §3):
// exclusively owned by the goroutine handling one client connection.
type Session struct {
	Log *zap.Logger

	Config *Config

	// Transport handles, all out-of-scope external collaborators
	// (spec.md §1) reached only through interfaces.
	TLS          TLSSession
	Supervisor   ipc.Transport // persists for the worker's lifetime (cmd_fd)
	SecModDialer func() (ipc.Transport, error)

	AuthState AuthState

	SID    [SIDSize]byte
	SIDSet bool

	Username  string
	Groupname string

	CertUsername string
	CertGroups   []string
	CertAuthOK   bool
	certRead     bool // guards idempotent extraction, component B

	Cookie    []byte
	CookieSet bool

	SessionID [SessionIDSize]byte

	VInfo VNetInfo

	Routes       []string
	DNS          []string
	NBNS         []string
	DefaultRoute bool

	TunFD int // ownership transferred to the session on cookie redemption OK

	RemoteAddr string
	Hostname   string
}

// TLSSession is the out-of-scope TLS termination primitive (spec.md §1):
// its write side (send/cork/uncork) plus peer-certificate access; request
// reads go through the underlying connection, not this interface. A crypto/tls-backed
// implementation lives in internal/gwtls.
type TLSSession interface {
	Cork()
	Uncork() error
	Printf(format string, args ...interface{}) error
	Puts(s string) error
	Write(p []byte) error
	PeerCertificatesDER() ([][]byte, bool)
	FatalClose(reason string)
}

// NewSession builds a fresh, INACTIVE session for one accepted connection.
func NewSession(log *zap.Logger, config *Config, tls TLSSession, supervisor ipc.Transport, dialSecMod func() (ipc.Transport, error)) *Session {
	return &Session{
		Log:          log,
		Config:       config,
		TLS:          tls,
		Supervisor:   supervisor,
		SecModDialer: dialSecMod,
		AuthState:    StateInactive,
		TunFD:        -1,
	}
}

// setUsername applies the bounded-copy truncation invariant from spec.md
// §3 ("bounded ASCII (≤ name-buffer size)").
func (s *Session) setUsername(v string) { s.Username = utils.BoundedCopy(v, NameBufSize) }
func (s *Session) setGroupname(v string) { s.Groupname = utils.BoundedCopy(v, NameBufSize) }

// applyRoutes installs routes, collapsing the default-route sentinels
// per spec.md §3's invariant and §4.7's redundant independent check.
func (s *Session) applyRoutes(routes []string) {
	s.Routes = routes
	for _, r := range s.Routes {
		if isDefaultRouteSentinel(r) {
			s.Routes = nil
			s.DefaultRoute = true
			break
		}
	}
	if checkIfDefaultRoute(s.Routes) {
		s.DefaultRoute = true
	}
}

func isDefaultRouteSentinel(route string) bool {
	return route == "default" || route == "0.0.0.0/0"
}

// checkIfDefaultRoute is the redundant second check the original runs
// independently of the inline scan above (spec.md §4.7); kept distinct
// to preserve both call sites' semantics even though today they agree.
func checkIfDefaultRoute(routes []string) bool {
	for _, r := range routes {
		if isDefaultRouteSentinel(r) {
			return true
		}
	}
	return false
}

// Close tears down every transport the session owns, per spec.md §5's
// "each transient IPC FD is scoped — released on every exit path".
func (s *Session) Close() error {
	var errlist []error
	if s.Supervisor != nil {
		errlist = append(errlist, s.Supervisor.Close())
	}
	return utils.CombineErrors(errlist...)
}
