// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gwvpn.io/gateway/pkg/ipc"
)

func newTestSession(t *testing.T, config *Config, transport *fakeTransport) (*Session, *fakeTLS) {
	tls := &fakeTLS{}
	s := &Session{
		Log:    zaptest.NewLogger(t),
		Config: config,
		TLS:    tls,
		SecModDialer: func() (ipc.Transport, error) {
			return transport, nil
		},
		TunFD: -1,
	}
	return s, tls
}

func TestHandlePostPasswordOnlySuccess_S1(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeUsernamePass}

	// First round: INACTIVE -> INIT, security module asks for an OTP.
	round1 := &fakeTransport{}
	round1.replies = append(round1.replies, &ipc.SecAuthReply{
		Reply: ipc.ReplyMSG,
		Msg:   "OTP?",
	})

	s, tls := newTestSession(t, config, round1)

	err := s.HandlePost(context.Background(), 1, []byte("username=alice&password=secret"))
	require.Error(t, err)
	msg, ok := ContinueMsg(err)
	require.True(t, ok)
	assert.Equal(t, "OTP?", msg)
	assert.Equal(t, StateReq, s.AuthState)
	assert.Contains(t, tls.out.String(), "OTP?")
	assert.True(t, round1.closed)

	require.Len(t, round1.sent, 1)
	sentInit, ok := round1.sent[0].(*ipc.SecAuthInit)
	require.True(t, ok)
	assert.Equal(t, "alice", sentInit.UserName)

	// Second round: REQ -> COOKIE.
	tls.out.Reset()
	round2 := &fakeTransport{}
	round2.replies = append(round2.replies, &ipc.SecAuthReply{
		Reply:         ipc.ReplyOK,
		UserName:      "alice",
		HasCookie:     true,
		Cookie:        []byte("C0"),
		DTLSSessionID: make([]byte, SessionIDSize),
	})
	s.SecModDialer = func() (ipc.Transport, error) { return round2, nil }

	err = s.HandlePost(context.Background(), 1, []byte("username=alice&password=secret"))
	require.NoError(t, err)
	assert.Equal(t, StateCookie, s.AuthState)
	assert.True(t, s.CookieSet)
	assert.Contains(t, tls.out.String(), "Set-Cookie: webvpn=")
	assert.Contains(t, tls.out.String(), "<config-auth client=\"vpn\" type=\"complete\">")
}

func TestHandlePostMissingPassword_S2(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeUsernamePass}
	s, tls := newTestSession(t, config, &fakeTransport{})
	s.AuthState = StateInit

	err := s.HandlePost(context.Background(), 1, []byte("username=alice"))
	require.Error(t, err)
	assert.Equal(t, ReasonNoPasswordError, FailReason(err))
	assert.Contains(t, tls.out.String(), "X-Reason: No password")
	assert.True(t, tls.closed)
}

func TestHandlePostCertRequiredButMissing_S5(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeCertificate}
	s, tls := newTestSession(t, config, &fakeTransport{})
	s.CertAuthOK = false

	err := s.HandlePost(context.Background(), 1, []byte{})
	require.Error(t, err)
	assert.Equal(t, ReasonNoCertError, FailReason(err))
	assert.Contains(t, tls.out.String(), "X-Reason: No certificate")
}

func TestHandlePostMissingUsernameAsksAgain(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeUsernamePass}
	s, tls := newTestSession(t, config, &fakeTransport{})

	err := s.HandlePost(context.Background(), 1, []byte("password=x"))
	require.NoError(t, err)
	assert.Equal(t, StateInactive, s.AuthState)
	assert.Contains(t, tls.out.String(), `name="username"`)
	assert.False(t, tls.closed)
}

func TestHandlePostDTLSSessionIDLengthMismatchFails(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeUsernamePass}
	transport := &fakeTransport{}
	transport.replies = append(transport.replies, &ipc.SecAuthReply{
		Reply:         ipc.ReplyOK,
		UserName:      "alice",
		HasCookie:     true,
		Cookie:        []byte("C0"),
		DTLSSessionID: make([]byte, SessionIDSize-1),
	})
	s, tls := newTestSession(t, config, transport)
	s.AuthState = StateInit

	err := s.HandlePost(context.Background(), 1, []byte("password=secret"))
	require.Error(t, err)
	assert.False(t, s.CookieSet)
	assert.Contains(t, tls.out.String(), "401")
}

func TestHandlePostMSGTextIsBoundedToMaxMsgSize(t *testing.T) {
	config := &Config{AuthTypes: AuthTypeUsernamePass}
	overlong := strings.Repeat("A", MaxMsgSize+50)
	transport := &fakeTransport{}
	transport.replies = append(transport.replies, &ipc.SecAuthReply{
		Reply: ipc.ReplyMSG,
		Msg:   overlong,
	})
	s, tls := newTestSession(t, config, transport)
	s.AuthState = StateInit

	err := s.HandlePost(context.Background(), 1, []byte("password=secret"))
	require.Error(t, err)
	msg, ok := ContinueMsg(err)
	require.True(t, ok)
	assert.Len(t, msg, MaxMsgSize)
	assert.NotContains(t, tls.out.String(), overlong)
}
