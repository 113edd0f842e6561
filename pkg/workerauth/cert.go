// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"crypto/x509"

	"gwvpn.io/gateway/internal/certinfo"
	"gwvpn.io/gateway/pkg/utils"
)

// getCertInfo is component B's entry point (spec.md §4.2's
// get_cert_info): pulls the peer's DER chain from the TLS session and
// extracts username/groups from the leaf. Idempotent — a session whose
// cert fields are already populated is a no-op, matching
// get_cert_names's "already read, nothing to do" guard.
func (s *Session) getCertInfo() error {
	if s.certRead {
		return nil
	}

	chain, ok := s.TLS.PeerCertificatesDER()
	if !ok || len(chain) == 0 {
		return ErrCert.New("no peer certificate chain")
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return ErrCert.Wrap(err)
	}

	username, err := certinfo.Username(leaf, s.Config.CertUserOID)
	if err != nil {
		return ErrCert.Wrap(err)
	}
	s.CertUsername = utils.BoundedCopy(username, NameBufSize)

	groups, err := certinfo.Groups(leaf, s.Config.CertGroupOID)
	if err != nil {
		return ErrCert.Wrap(err)
	}
	s.CertGroups = groups

	s.certRead = true
	return nil
}
