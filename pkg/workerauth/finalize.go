// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"encoding/base64"
	"fmt"

	"gwvpn.io/gateway/pkg/utils"
)

const successMsgHead = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
	`<config-auth client="vpn" type="complete">` + "\n" +
	versionMsg +
	`<auth id="success">` + "\n" +
	`<title>SSL VPN Service</title>`

const successMsgFoot = `</auth></config-auth>` + "\n"

// finalize is component F (spec.md §4.6), grounded on
// post_common_handler: emits the 200 success document and the webvpn /
// webvpnc cookies once auth_state reaches COOKIE.
func (s *Session) finalize(httpVer int) error {
	strCookie := base64.StdEncoding.EncodeToString(s.Cookie)

	var banner string
	if s.Config.Banner != "" {
		banner = fmt.Sprintf("<banner>%s</banner>", utils.BoundedCopy(s.Config.Banner, MaxBannerSize))
	}
	bodyLen := len(successMsgHead) + len(banner) + len(successMsgFoot)

	s.TLS.Cork()

	if err := s.TLS.Printf("HTTP/1.%d 200 OK\r\n", httpVer); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("Connection: Keep-Alive\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("Content-Type: text/xml\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Printf("Content-Length: %d\r\n", bodyLen); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Puts("X-Transcend-Version: 1\r\n"); err != nil {
		return ErrInternal.Wrap(err)
	}
	if err := s.TLS.Printf("Set-Cookie: webvpn=%s; Secure\r\n", strCookie); err != nil {
		return ErrInternal.Wrap(err)
	}

	if s.Config.AnyConnectCompat {
		if err := s.writeWebvpncHint(); err != nil {
			return err
		}
	}

	if err := s.TLS.Printf("\r\n%s%s%s", successMsgHead, banner, successMsgFoot); err != nil {
		return ErrInternal.Wrap(err)
	}

	return ErrInternal.Wrap(s.TLS.Uncork())
}

// writeWebvpncHint emits the AnyConnect profile-update hint cookie pair:
// a clear of any stale value followed by a fresh one, per spec.md §4.6
// and SPEC_FULL.md §12.
func (s *Session) writeWebvpncHint() error {
	err := s.TLS.Puts("Set-Cookie: webvpnc=; expires=Thu, 01 Jan 1970 22:00:00 GMT; path=/; Secure\r\n")
	if err != nil {
		return ErrInternal.Wrap(err)
	}

	if s.Config.XMLConfigFile != "" {
		err = s.TLS.Printf(
			"Set-Cookie: webvpnc=bu:/&p:t&iu:1/&sh:%s&lu:/+CSCOT+/translation-table?textdomain%%3DAnyConnect%%26type%%3Dmanifest&fu:profiles%%2F%s&fh:%s; path=/; Secure\r\n",
			s.Config.CertHash, s.Config.XMLConfigFile, s.Config.XMLConfigHash)
	} else {
		err = s.TLS.Printf("Set-Cookie: webvpnc=bu:/&p:t&iu:1/&sh:%s; path=/; Secure\r\n", s.Config.CertHash)
	}
	if err != nil {
		return ErrInternal.Wrap(err)
	}
	return nil
}
