// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"

	"go.uber.org/zap"

	"gwvpn.io/gateway/pkg/ipc"
)

// RedeemCookie is component G (spec.md §4.7), grounded on
// worker-auth.c's auth_cookie/recv_cookie_auth_reply: exchanges a
// previously-issued cookie with the supervisor for a tunnel file
// descriptor and network configuration, on a client reconnect.
func (s *Session) RedeemCookie(ctx context.Context, cookie []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	req := &ipc.AuthCookieRequest{Cookie: cookie}

	if s.Config.AuthTypes.Has(AuthTypeCertificate) && !s.Config.CiscoClientCompat {
		if !s.CertAuthOK {
			s.Log.Info("no certificate provided for cookie authentication")
			return ErrAuthFail.New("no certificate provided for cookie authentication")
		}
		if err := s.getCertInfo(); err != nil {
			s.Log.Info("cannot obtain certificate info", zap.Error(err))
			return ErrAuthFail.Wrap(err)
		}
		req.TLSAuthOK = true
	}

	if err := s.Supervisor.Send(req, -1); err != nil {
		s.Log.Info("error sending cookie authentication request", zap.Error(err))
		return ErrInternal.Wrap(err)
	}

	msg, fd, err := s.Supervisor.Recv()
	if err != nil {
		s.Log.Info("error receiving cookie authentication reply", zap.Error(err))
		return ErrInternal.Wrap(err)
	}

	reply, ok := msg.(*ipc.AuthCookieReply)
	if !ok {
		return ErrInternal.New("unexpected message type from supervisor")
	}

	s.Log.Debug("received auth reply message", zap.Stringer("reply", reply.Reply))

	switch reply.Reply {
	case ipc.ReplyOK:
		return s.applyCookieReply(reply, fd)
	default:
		s.Log.Error("unexpected cookie auth reply", zap.Stringer("reply", reply.Reply))
		return AuthFail(ReasonAuthFailed)
	}
}

// applyCookieReply installs a successful AuthCookieReply's fields onto
// the session, per spec.md §4.7's field-by-field rules.
func (s *Session) applyCookieReply(reply *ipc.AuthCookieReply, fd int) error {
	if fd < 0 {
		s.Log.Error("error in received message: no tunnel descriptor")
		return AuthFail(ReasonAuthFailed)
	}
	s.TunFD = fd

	if reply.VName == "" || reply.UserName == "" {
		return AuthFail(ReasonAuthFailed)
	}

	s.VInfo.Name = reply.VName
	s.setUsername(reply.UserName)

	if reply.GroupName != "" {
		s.setGroupname(reply.GroupName)
	} else {
		s.Groupname = ""
	}

	copy(s.SessionID[:], reply.SessionID)

	setAddr(&s.VInfo.IPv4, reply.IPv4, reply.IPv4 != "", "0.0.0.0")
	setAddr(&s.VInfo.IPv6, reply.IPv6, reply.IPv6 != "", "::")
	setAddr(&s.VInfo.IPv4Local, reply.IPv4Local, reply.IPv4Local != "", "0.0.0.0")
	setAddr(&s.VInfo.IPv6Local, reply.IPv6Local, reply.IPv6Local != "", "::")

	if reply.IPv4Netmask != "" {
		s.Config.Network.IPv4Netmask = reply.IPv4Netmask
	}
	if reply.IPv6Netmask != "" {
		s.Config.Network.IPv6Netmask = reply.IPv6Netmask
	}
	s.Config.Network.IPv6Prefix = reply.IPv6Prefix

	if reply.HasRxPerSec {
		s.Config.Network.RxPerSec = reply.RxPerSec
	}
	if reply.HasTxPerSec {
		s.Config.Network.TxPerSec = reply.TxPerSec
	}
	if reply.HasNetPriority {
		s.Config.Network.NetPriority = reply.NetPriority
	}
	if reply.HasNoUDP && reply.NoUDP {
		s.Config.Network.UDPPort = 0
	}

	s.applyRoutes(reply.Routes)
	s.DNS = reply.DNS
	s.NBNS = reply.NBNS

	return nil
}
