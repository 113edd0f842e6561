// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package certinfo_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwvpn.io/gateway/internal/certinfo"
)

const commonNameOID = "2.5.4.3"
const orgUnitOID = "2.5.4.11"

func certWithNames(names []pkix.AttributeTypeAndValue) *x509.Certificate {
	return &x509.Certificate{Subject: pkix.Name{Names: names}}
}

func atv(oid string, value string) pkix.AttributeTypeAndValue {
	id, err := certinfo.ParseOID(oid)
	if err != nil {
		panic(err)
	}
	return pkix.AttributeTypeAndValue{Type: id, Value: value}
}

func TestParseOID(t *testing.T) {
	oid, err := certinfo.ParseOID("2.5.4.3")
	require.NoError(t, err)
	assert.Equal(t, "2.5.4.3", oid.String())

	_, err = certinfo.ParseOID("2.x.4")
	assert.Error(t, err)
}

func TestUsernameWithoutOIDReturnsFullDN(t *testing.T) {
	leaf := &x509.Certificate{
		Subject: pkix.Name{CommonName: "alice", Organization: []string{"acme"}},
	}

	username, err := certinfo.Username(leaf, "")
	require.NoError(t, err)
	assert.Contains(t, username, "alice")
}

func TestUsernameByOID(t *testing.T) {
	leaf := certWithNames([]pkix.AttributeTypeAndValue{
		atv(orgUnitOID, "eng"),
		atv(commonNameOID, "alice"),
	})

	username, err := certinfo.Username(leaf, commonNameOID)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestUsernameByOIDNotPresent(t *testing.T) {
	leaf := certWithNames([]pkix.AttributeTypeAndValue{
		atv(orgUnitOID, "eng"),
	})

	_, err := certinfo.Username(leaf, commonNameOID)
	assert.Error(t, err)
}

func TestGroupsCollectsAllMatchesInOrder(t *testing.T) {
	leaf := certWithNames([]pkix.AttributeTypeAndValue{
		atv(orgUnitOID, "eng"),
		atv(commonNameOID, "alice"),
		atv(orgUnitOID, "ops"),
	})

	groups, err := certinfo.Groups(leaf, orgUnitOID)
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "ops"}, groups)
}

func TestGroupsUnconfiguredOIDReturnsNoGroups(t *testing.T) {
	leaf := certWithNames([]pkix.AttributeTypeAndValue{
		atv(orgUnitOID, "eng"),
	})

	groups, err := certinfo.Groups(leaf, "")
	require.NoError(t, err)
	assert.Nil(t, groups)
}

func TestHashLeafIsDeterministicAndFixedLength(t *testing.T) {
	der := []byte("pretend-der-bytes")

	h1 := certinfo.HashLeaf(der)
	h2 := certinfo.HashLeaf(der)
	assert.Equal(t, h1, h2)
	assert.NotEmpty(t, h1)
	// 20 hash bytes, unpadded base32: 160 bits / 5 bits per character.
	assert.Len(t, h1, 32)

	other := certinfo.HashLeaf([]byte("different-bytes"))
	assert.NotEqual(t, h1, other)
	assert.Len(t, other, len(h1))
}
