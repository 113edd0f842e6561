// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
)

// RenderInitial renders the first challenge a client sees on GET /
// (spec.md §4.3's "any other state" branch, since a fresh session's
// AuthState is StateInactive).
func (s *Session) RenderInitial(ctx context.Context, httpVer int) (err error) {
	defer mon.Task()(&ctx)(&err)
	return s.renderChallenge(httpVer, "")
}

const versionMsg = `<version who="sg">0.1(1)</version>` + "\n"

const loginMsgUserStart = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<config-auth client="vpn" type="auth-request">` + "\n" +
	versionMsg +
	`<auth id="main">` + "\n" +
	`<message>Please enter your username</message>` + "\n" +
	`<form method="post" action="/auth">` + "\n" +
	`<input type="text" name="username" label="Username:" />` + "\n"

const loginMsgUserEnd = `</form></auth>` + "\n" + `</config-auth>`

const loginMsgNoUserStart = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<config-auth client="vpn" type="auth-request">` + "\n" +
	versionMsg +
	`<auth id="main">` + "\n" +
	`<message>`

const loginMsgNoUserEnd = `</message>` + "\n" +
	`<form method="post" action="/auth">` + "\n" +
	`<input type="password" name="password" label="Password:" />` + "\n" +
	`</form></auth></config-auth>` + "\n"

const defaultPasswordPrompt = "Please enter your password."

// renderChallenge is component C (spec.md §4.3), grounded on
// get_auth_handler2: it emits the HTTP/1.x response headers and an XML
// auth-request body, corked into one atomic flush. pmsg overrides the
// default password-reentry prompt when non-empty (the AuthContinue
// message from the security module).
func (s *Session) renderChallenge(httpVer int, pmsg string) error {
	buf := newCorkBuffer("")
	defer buf.Close()

	if s.AuthState == StateReq {
		if pmsg == "" {
			pmsg = defaultPasswordPrompt
		}
		fmt.Fprint(buf, loginMsgNoUserStart)
		fmt.Fprint(buf, pmsg)
		fmt.Fprint(buf, loginMsgNoUserEnd)
	} else {
		fmt.Fprint(buf, loginMsgUserStart)

		if s.Config.AuthTypes.Has(AuthTypeCertificate) && s.CertAuthOK {
			if err := s.getCertInfo(); err != nil {
				s.Log.Warn("cannot obtain certificate information", zap.Error(err))
				return ErrInternal.Wrap(err)
			}
		}

		if len(s.Config.GroupList) > 0 || len(s.CertGroups) > 0 {
			fmt.Fprint(buf, "<select name=\"group_list\" label=\"GROUP:\">\n")
			s.appendGroupOptions(buf)
			fmt.Fprint(buf, "</select>\n")
		}

		fmt.Fprint(buf, loginMsgUserEnd)
	}

	body, err := buf.Bytes()
	if err != nil {
		return Error.Wrap(err)
	}

	return s.flushDocument(httpVer, body)
}

// appendGroupOptions implements spec.md §4.3's strict four-step option
// ordering, grounded on append_group_idx/append_group_str.
func (s *Session) appendGroupOptions(buf *corkBuffer) {
	emitted := map[string]bool{}

	if s.Groupname != "" {
		s.appendGroupByValue(buf, s.Groupname)
		emitted[s.Groupname] = true
	}

	if s.Config.DefaultSelectGroup != "" {
		fmt.Fprintf(buf, "<option>%s</option>\n", s.Config.DefaultSelectGroup)
	}

	if s.Config.AuthTypes.Has(AuthTypeCertificate) && s.CertAuthOK {
		for _, g := range s.CertGroups {
			if emitted[g] || configuredGroup(s.Config, g) {
				continue
			}
			emitted[g] = true
			fmt.Fprintf(buf, "<option>%s</option>\n", g)
		}
	}

	for i, value := range s.Config.GroupList {
		if value == s.Groupname {
			continue
		}
		name := value
		if i < len(s.Config.FriendlyGroupList) && s.Config.FriendlyGroupList[i] != "" {
			name = s.Config.FriendlyGroupList[i]
		}
		fmt.Fprintf(buf, "<option value=\"%s\">%s</option>\n", value, name)
	}
}

// appendGroupByValue emits a selected group, preferring its friendly
// name when it matches a configured group (append_group_str).
func (s *Session) appendGroupByValue(buf *corkBuffer, group string) {
	name := s.Config.FriendlyName(group)
	fmt.Fprintf(buf, "<option value=\"%s\">%s</option>\n", group, name)
}

func configuredGroup(c *Config, group string) bool {
	for _, v := range c.GroupList {
		if v == group {
			return true
		}
	}
	return false
}

// flushDocument writes the full HTTP response in one corked burst.
func (s *Session) flushDocument(httpVer int, body []byte) error {
	s.TLS.Cork()

	if err := s.TLS.Printf("HTTP/1.%d 200 OK\r\n", httpVer); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("Connection: Keep-Alive\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}

	if s.SIDSet {
		context := base64.StdEncoding.EncodeToString(s.SID[:])
		err := s.TLS.Printf("Set-Cookie: webvpncontext=%s; Max-Age=%d; Secure\r\n", context, MaxAuthSecs)
		if err != nil {
			return ErrInternal.Wrap(err)
		}
		s.Log.Debug("sent sid", zap.String("sid", context))
	}

	if err := s.TLS.Puts("Content-Type: text/xml\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Printf("Content-Length: %d\r\n", len(body)); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("X-Transcend-Version: 1\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Write(body); err != nil {
		return ErrInternal.Wrap(err)
	}

	return ErrInternal.Wrap(s.TLS.Uncork())
}
