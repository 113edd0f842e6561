// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"

	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"go.uber.org/zap"

	"gwvpn.io/gateway/pkg/ipc"
	"gwvpn.io/gateway/pkg/utils"
)

var mon = monkit.Package()

// HandlePost is component E (spec.md §4.5): dispatches a POST /auth body
// through the state machine, grounded on worker-auth.c's
// post_auth_handler. On AuthFail it has already written the 401 response
// and torn the TLS session down via TLSSession.FatalClose; the caller
// only needs to close the connection. On AuthContinue the challenge
// document has already been re-rendered and the connection should stay
// open for the client's next POST — check ContinueMsg before treating a
// non-nil return as a reason to close the connection.
func (s *Session) HandlePost(ctx context.Context, httpVer int, body []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	if s.SIDSet && s.AuthState == StateInactive {
		s.AuthState = StateInit
	}

	var transport ipc.Transport

	switch {
	case s.AuthState == StateInactive:
		transport, err = s.sendAuthInit(body, httpVer)
		if err != nil {
			if _, ok := err.(askAuthErr); ok {
				return nil
			}
			return err
		}
		s.AuthState = StateInit

	case s.AuthState == StateInit || s.AuthState == StateReq:
		transport, err = s.sendAuthCont(body, httpVer)
		if err != nil {
			return err
		}
		s.AuthState = StateReq

	default:
		s.Log.Error("unexpected POST request in auth state", zap.Stringer("state", s.AuthState))
		return s.authFail(httpVer, ReasonAuthFailed)
	}
	defer transport.Close()

	return s.recvAuthReply(transport, httpVer)
}

// askAuthErr is a sentinel used internally by sendAuthInit to signal the
// "ask_auth" re-prompt path (missing username is not a failure).
type askAuthErr struct{}

func (askAuthErr) Error() string { return "ask auth" }

func (s *Session) sendAuthInit(body []byte, httpVer int) (ipc.Transport, error) {
	ireq := &ipc.SecAuthInit{}

	if s.Config.AuthTypes.Has(AuthTypeUsernamePass) {
		if groupname, ok := parseReply(body, FieldGroupList, FieldGroupListXML); !ok {
			s.Log.Debug("failed reading groupname")
		} else if !s.Config.IsDefaultSelection(groupname) {
			s.setGroupname(groupname)
			ireq.GroupName = s.Groupname
		}

		username, ok := parseReply(body, FieldUsername, "")
		if !ok {
			s.Log.Info("failed reading username")
			if rerr := s.renderChallenge(httpVer, ""); rerr != nil {
				return nil, rerr
			}
			return nil, askAuthErr{}
		}
		s.setUsername(username)
		ireq.UserName = s.Username
	}

	if s.Config.AuthTypes.Has(AuthTypeCertificate) {
		if !s.CertAuthOK {
			s.Log.Info("no certificate provided for authentication")
			return nil, s.authFail(httpVer, ReasonNoCertError)
		}
		if err := s.getCertInfo(); err != nil {
			s.Log.Error("failed reading certificate info", zap.Error(err))
			return nil, s.authFail(httpVer, ReasonCertReadError)
		}
		ireq.TLSAuthOK = true
		ireq.CertUserName = s.CertUsername
		ireq.CertGroupNames = s.CertGroups
	}

	ireq.Hostname = s.Hostname
	ireq.IP = s.RemoteAddr

	transport, err := s.SecModDialer()
	if err != nil {
		s.Log.Error("failed connecting to sec mod", zap.Error(err))
		return nil, s.authFail(httpVer, ReasonInternalError)
	}

	if err := transport.Send(ireq, -1); err != nil {
		transport.Close()
		s.Log.Error("failed sending auth init message to sec mod", zap.Error(err))
		return nil, s.authFail(httpVer, ReasonInternalError)
	}

	return transport, nil
}

func (s *Session) sendAuthCont(body []byte, httpVer int) (ipc.Transport, error) {
	if !s.Config.AuthTypes.Has(AuthTypeUsernamePass) {
		return nil, s.authFail(httpVer, ReasonAuthFailed)
	}

	password, ok := parseReply(body, FieldPassword, "")
	if !ok {
		s.Log.Error("failed reading password")
		return nil, s.authFail(httpVer, ReasonNoPasswordError)
	}

	areq := &ipc.SecAuthCont{Password: password}
	if s.SIDSet {
		areq.HasSID = true
		areq.SID = append([]byte(nil), s.SID[:]...)
	}

	transport, err := s.SecModDialer()
	if err != nil {
		s.Log.Error("failed connecting to sec mod", zap.Error(err))
		return nil, s.authFail(httpVer, ReasonInternalError)
	}

	if err := transport.Send(areq, -1); err != nil {
		transport.Close()
		s.Log.Error("failed sending auth req message to sec mod", zap.Error(err))
		return nil, s.authFail(httpVer, ReasonInternalError)
	}

	return transport, nil
}

func (s *Session) recvAuthReply(transport ipc.Transport, httpVer int) error {
	msg, _, err := transport.Recv()
	if err != nil {
		s.Log.Error("error receiving auth reply message", zap.Error(err))
		return s.authFail(httpVer, ReasonInternalError)
	}

	reply, ok := msg.(*ipc.SecAuthReply)
	if !ok {
		s.Log.Error("received unexpected message type from sec mod")
		return s.authFail(httpVer, ReasonInternalError)
	}

	s.Log.Debug("received auth reply message", zap.Stringer("reply", reply.Reply))

	switch reply.Reply {
	case ipc.ReplyMSG:
		s.adoptSID(reply)
		s.AuthState = StateReq
		msg := utils.BoundedCopy(reply.Msg, MaxMsgSize)
		s.Log.Debug("continuing authentication", zap.String("user", s.Username))
		if err := s.renderChallenge(httpVer, msg); err != nil {
			return ErrInternal.Wrap(err)
		}
		return AuthContinue(msg)

	case ipc.ReplyOK:
		if reply.UserName == "" {
			return s.authFail(httpVer, ReasonAuthFailed)
		}
		s.setUsername(reply.UserName)
		s.adoptSID(reply)

		if !reply.HasCookie || len(reply.Cookie) == 0 || len(reply.DTLSSessionID) != SessionIDSize {
			if len(reply.DTLSSessionID) != SessionIDSize {
				// Open question resolved (SPEC_FULL.md §13 / DESIGN.md):
				// unlike the original, we log the width disagreement
				// instead of silently falling through to AuthFail.
				s.Log.Warn("dtls session id length mismatch",
					zap.Int("got", len(reply.DTLSSessionID)),
					zap.Int("want", SessionIDSize))
			}
			return s.authFail(httpVer, ReasonAuthFailed)
		}

		s.Cookie = append([]byte(nil), reply.Cookie...)
		s.CookieSet = true
		copy(s.SessionID[:], reply.DTLSSessionID)

		s.Log.Info("user obtained cookie", zap.String("user", s.Username))
		s.AuthState = StateCookie
		return s.finalize(httpVer)

	default:
		return s.authFail(httpVer, ReasonAuthFailed)
	}
}

func (s *Session) adoptSID(reply *ipc.SecAuthReply) {
	if reply.HasSID && len(reply.SID) == SIDSize {
		copy(s.SID[:], reply.SID)
		s.SIDSet = true
	}
}

// authFail is the terminal failure path (spec.md §4.5, §5): write the
// 401 response, close the TLS session via TLSSession.FatalClose, and
// return an AuthFail error so the caller knows to tear the connection
// down without a further response. The crypto/tls-backed session in
// internal/gwtls closes the connection without sending an access-denied
// alert.
func (s *Session) authFail(httpVer int, reason string) error {
	if err := s.TLS.Printf("HTTP/1.1 401 Unauthorized\r\nX-Reason: %s\r\n\r\n", reason); err != nil {
		s.Log.Error("failed writing auth-fail response", zap.Error(err))
	}
	s.TLS.FatalClose(reason)
	return AuthFail(reason)
}
