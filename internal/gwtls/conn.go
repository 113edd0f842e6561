// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package gwtls is the out-of-scope TLS termination primitive (spec.md
// §1): a crypto/tls-backed implementation of workerauth.TLSSession,
// supplied as ambient server infrastructure rather than core auth logic.
package gwtls

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is this package's error class.
var Error = errs.Class("gwtls error")

// Session wraps a *tls.Conn with the cork/uncork buffering semantics
// worker-auth.c relies on (tls_cork/tls_puts/tls_printf/tls_uncork):
// writes made while corked accumulate in memory and are flushed as a
// single Write call on Uncork, so a client never observes a response
// split across TCP segments mid-header.
type Session struct {
	conn *tls.Conn
	log  *zap.Logger

	mu     sync.Mutex
	corked bool
	buf    bytes.Buffer
}

// New wraps an already-handshaken *tls.Conn.
func New(log *zap.Logger, conn *tls.Conn) *Session {
	return &Session{conn: conn, log: log}
}

// Cork begins buffering writes in memory instead of sending them.
func (s *Session) Cork() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corked = true
	s.buf.Reset()
}

// Uncork flushes any buffered writes in a single Write call.
func (s *Session) Uncork() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corked = false
	if s.buf.Len() == 0 {
		return nil
	}
	_, err := s.conn.Write(s.buf.Bytes())
	s.buf.Reset()
	return Error.Wrap(err)
}

func (s *Session) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corked {
		s.buf.Write(p)
		return nil
	}
	_, err := s.conn.Write(p)
	return Error.Wrap(err)
}

// Printf formats and writes, corked or not.
func (s *Session) Printf(format string, args ...interface{}) error {
	return s.write([]byte(fmt.Sprintf(format, args...)))
}

// Puts writes a literal string.
func (s *Session) Puts(str string) error {
	return s.write([]byte(str))
}

// Write writes raw bytes (the response body).
func (s *Session) Write(p []byte) error {
	return s.write(p)
}

// PeerCertificatesDER returns the verified peer chain's raw DER, leaf
// first, as handed to the certificate introspector (component B).
func (s *Session) PeerCertificatesDER() ([][]byte, bool) {
	state := s.conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, false
	}
	chain := make([][]byte, len(state.PeerCertificates))
	for i, c := range state.PeerCertificates {
		chain[i] = c.Raw
	}
	return chain, true
}

// FatalClose tears the connection down on a terminal auth failure
// (spec.md §5's "shut the TLS session down with an access-denied alert
// and terminate the worker"). crypto/tls does not expose raw alert
// sending, so the closest faithful substitute is an immediate Close
// rather than a graceful close_notify.
func (s *Session) FatalClose(reason string) {
	s.log.Debug("closing session after auth failure", zap.String("reason", reason))
	if err := s.conn.Close(); err != nil {
		s.log.Debug("error closing tls session", zap.Error(err))
	}
}
