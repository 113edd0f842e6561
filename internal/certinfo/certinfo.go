// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package certinfo is the certificate introspector (component B):
// extracting a username and group memberships from a peer's X.509
// leaf-certificate DN, by OID, grounded on worker-auth.c's
// get_cert_names.
package certinfo

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base32"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"golang.org/x/crypto/sha3"
)

// Error is this package's error class.
var Error = errs.Class("certinfo error")

// ParseOID parses a dotted string ("2.5.4.3") into an asn1.ObjectIdentifier.
func ParseOID(dotted string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(dotted, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, Error.New("invalid OID component %q in %q", p, dotted)
		}
		oid[i] = n
	}
	return oid, nil
}

// Username returns the leaf certificate's username per spec.md §4.2: the
// first DN attribute matching userOID if configured (dotted form),
// otherwise the full DN string.
func Username(leaf *x509.Certificate, userOID string) (string, error) {
	if userOID == "" {
		return leaf.Subject.String(), nil
	}

	oid, err := ParseOID(userOID)
	if err != nil {
		return "", err
	}

	for _, atv := range leaf.Subject.Names {
		if atv.Type.Equal(oid) {
			return attrString(atv), nil
		}
	}
	return "", Error.New("DN attribute %s not present in certificate", userOID)
}

// Groups returns every DN attribute matching groupOID, in occurrence
// order, per spec.md §4.2's "iterate indices i=0,1,… until not-available".
// An unconfigured groupOID yields no groups, not an error.
func Groups(leaf *x509.Certificate, groupOID string) ([]string, error) {
	if groupOID == "" {
		return nil, nil
	}

	oid, err := ParseOID(groupOID)
	if err != nil {
		return nil, err
	}

	var groups []string
	for _, atv := range leaf.Subject.Names {
		if atv.Type.Equal(oid) {
			groups = append(groups, attrString(atv))
		}
	}
	return groups, nil
}

func attrString(atv pkix.AttributeTypeAndValue) string {
	if s, ok := atv.Value.(string); ok {
		return s
	}
	return ""
}

// HashLeaf computes the gateway's cert_hash (§4.6's webvpnc profile
// hint) from a certificate's raw DER, the same sha3.ShakeSum256
// primitive the teacher uses for node-ID hashing, base32-encoded since
// the hash rides inside a Set-Cookie value.
func HashLeaf(der []byte) string {
	hash := make([]byte, 20)
	sha3.ShakeSum256(hash, der)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(hash)
}
