// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gwvpn.io/gateway/pkg/ipc"
)

func TestRedeemCookieDefaultRouteCollapse_S4(t *testing.T) {
	// Scenario S4 from spec.md §8: a default-route sentinel anywhere in
	// the route list collapses the whole list and sets default_route.
	transport := &fakeTransport{}
	transport.fds = []int{7}
	transport.replies = append(transport.replies, &ipc.AuthCookieReply{
		Reply:    ipc.ReplyOK,
		VName:    "vpn0",
		UserName: "alice",
		Routes:   []string{"10.0.0.0/8", "default", "192.168.1.0/24"},
	})

	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     &Config{},
		Supervisor: transport,
		TunFD:      -1,
	}

	err := s.RedeemCookie(context.Background(), []byte("C0"))
	require.NoError(t, err)

	assert.Nil(t, s.Routes)
	assert.True(t, s.DefaultRoute)
	assert.Equal(t, 7, s.TunFD)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "vpn0", s.VInfo.Name)
}

func TestRedeemCookieFailedReply(t *testing.T) {
	transport := &fakeTransport{}
	transport.replies = append(transport.replies, &ipc.AuthCookieReply{Reply: ipc.ReplyFailed})

	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     &Config{},
		Supervisor: transport,
		TunFD:      -1,
	}

	err := s.RedeemCookie(context.Background(), []byte("C0"))
	require.Error(t, err)
	assert.Equal(t, -1, s.TunFD)
}

func TestRedeemCookieMissingTunFDFails(t *testing.T) {
	transport := &fakeTransport{}
	transport.replies = append(transport.replies, &ipc.AuthCookieReply{
		Reply:    ipc.ReplyOK,
		VName:    "vpn0",
		UserName: "alice",
	})

	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     &Config{},
		Supervisor: transport,
		TunFD:      -1,
	}

	err := s.RedeemCookie(context.Background(), []byte("C0"))
	require.Error(t, err)
}

func TestRedeemCookieAddressSentinelClearsStoredAddress(t *testing.T) {
	transport := &fakeTransport{}
	transport.fds = []int{3}
	transport.replies = append(transport.replies, &ipc.AuthCookieReply{
		Reply:    ipc.ReplyOK,
		VName:    "vpn0",
		UserName: "alice",
		IPv4:     "0.0.0.0",
	})

	existing := "10.1.1.1"
	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     &Config{},
		Supervisor: transport,
		TunFD:      -1,
		VInfo:      VNetInfo{IPv4: &existing},
	}

	err := s.RedeemCookie(context.Background(), []byte("C0"))
	require.NoError(t, err)
	assert.Nil(t, s.VInfo.IPv4)
}

func TestRedeemCookieCiscoCompatSkipsCertCheck(t *testing.T) {
	transport := &fakeTransport{}
	transport.fds = []int{3}
	transport.replies = append(transport.replies, &ipc.AuthCookieReply{
		Reply:    ipc.ReplyOK,
		VName:    "vpn0",
		UserName: "alice",
	})

	s := &Session{
		Log:        zaptest.NewLogger(t),
		Config:     &Config{AuthTypes: AuthTypeCertificate, CiscoClientCompat: true},
		Supervisor: transport,
		TunFD:      -1,
		CertAuthOK: false,
	}

	err := s.RedeemCookie(context.Background(), []byte("C0"))
	require.NoError(t, err)

	req, ok := transport.sent[0].(*ipc.AuthCookieRequest)
	require.True(t, ok)
	assert.False(t, req.TLSAuthOK)
}
