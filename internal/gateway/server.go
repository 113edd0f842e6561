// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package gateway

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"io/ioutil"
	"net"
	"net/http"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gwvpn.io/gateway/internal/gwtls"
	"gwvpn.io/gateway/pkg/ipc"
	"gwvpn.io/gateway/pkg/ipctransport"
	"gwvpn.io/gateway/pkg/workerauth"
)

// Error is this package's error class, as in every teacher server
// package (bootstrapserver.Error, transport.Error).
var Error = errs.Class("gateway error")

// webvpnCookieName is the long-lived session cookie a reconnecting
// client presents to redeem a tunnel (spec.md §6).
const webvpnCookieName = "webvpn"

// Server accepts TLS client connections and drives each one through a
// pkg/workerauth.Session — the Go analogue of one ocserv worker process
// per connection (spec.md §5), implemented as goroutine-per-connection
// isolation instead of process isolation.
type Server struct {
	log      *zap.Logger
	config   Config
	listener net.Listener
	tlsConf  *tls.Config

	secModAddr *net.UnixAddr
	cmdAddr    *net.UnixAddr
}

// NewServer wires a listener and TLS config against the given config.
// The supervisor command connection is dialed once per accepted client
// connection and held for that worker's lifetime (spec.md §5); the
// security module connection is dialed fresh per round trip.
func NewServer(log *zap.Logger, config Config, listener net.Listener, tlsConf *tls.Config) (*Server, error) {
	secModAddr, err := net.ResolveUnixAddr("unix", config.SecModAddress)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	cmdAddr, err := net.ResolveUnixAddr("unix", config.CmdSocketPath)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	return &Server{
		log:        log,
		config:     config,
		listener:   listener,
		tlsConf:    tlsConf,
		secModAddr: secModAddr,
		cmdAddr:    cmdAddr,
	}, nil
}

// Run accepts connections until ctx is canceled, spawning one goroutine
// per connection (spec.md §5's concurrency model, reimplemented as
// described in SPEC_FULL.md §5).
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	var group errgroup.Group
	group.Go(func() error {
		<-ctx.Done()
		return s.listener.Close()
	})
	group.Go(func() error {
		defer cancel()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				return Error.Wrap(err)
			}
			go s.handleConn(ctx, conn)
		}
	})

	return group.Wait()
}

// Close releases the listener outright.
func (s *Server) Close() error {
	return Error.Wrap(s.listener.Close())
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	tlsConn := tls.Server(conn, s.tlsConf)
	if err := tlsConn.Handshake(); err != nil {
		s.log.Debug("tls handshake failed", zap.Error(err))
		return
	}

	supervisor, err := ipctransport.Dial(s.log, s.cmdAddr)
	if err != nil {
		s.log.Error("failed connecting to supervisor", zap.Error(err))
		return
	}
	defer supervisor.Close()

	tlsSession := gwtls.New(s.log, tlsConn)
	// Each session gets its own copy of the worker config, since cookie
	// redemption writes per-session network settings into it.
	workerConfig := s.config.Worker
	sess := workerauth.NewSession(s.log, &workerConfig, tlsSession, supervisor, s.dialSecMod)
	sess.RemoteAddr = conn.RemoteAddr().String()
	sess.CertAuthOK = certAuthOK(tlsConn)

	s.serveRequests(ctx, sess, tlsConn)
}

func (s *Server) dialSecMod() (ipc.Transport, error) {
	return ipctransport.Dial(s.log, s.secModAddr)
}

// serveRequests is component E/F/G's HTTP driver: it owns HTTP request
// parsing (an out-of-scope concern per spec.md §1) and hands the
// already-decoded method/path/body/cookies to the session.
func (s *Server) serveRequests(ctx context.Context, sess *workerauth.Session, tlsConn *tls.Conn) {
	reader := bufio.NewReader(tlsConn)

	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			return
		}

		sess.Hostname = req.Host
		httpVer := req.ProtoMinor

		switch {
		case req.Method == http.MethodPost && req.URL.Path == "/auth":
			body, err := ioutil.ReadAll(req.Body)
			if err != nil {
				s.log.Debug("error reading POST body", zap.Error(err))
				return
			}
			if err := sess.HandlePost(ctx, httpVer, body); err != nil {
				if _, ok := workerauth.ContinueMsg(err); ok {
					continue
				}
				return
			}

		case req.Method == http.MethodGet:
			if cookie, ok := findCookie(req, webvpnCookieName); ok {
				raw, err := base64.StdEncoding.DecodeString(cookie)
				if err != nil {
					s.log.Debug("malformed webvpn cookie", zap.Error(err))
					return
				}
				if err := sess.RedeemCookie(ctx, raw); err != nil {
					s.log.Info("cookie redemption failed", zap.Error(err))
					return
				}
				s.log.Info("cookie redeemed, handing off to tunnel setup",
					zap.String("user", sess.Username), zap.Int("tun_fd", sess.TunFD))
				return
			}
			if err := sess.RenderInitial(ctx, httpVer); err != nil {
				return
			}

		default:
			return
		}
	}
}

func findCookie(req *http.Request, name string) (string, bool) {
	c, err := req.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// certAuthOK reports whether the client presented a certificate that
// survived handshake-time verification (spec.md §3's cert_auth_ok).
func certAuthOK(conn *tls.Conn) bool {
	return len(conn.ConnectionState().PeerCertificates) > 0
}
