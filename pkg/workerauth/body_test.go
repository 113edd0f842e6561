// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplyFormURLEncoded(t *testing.T) {
	body := []byte("username=alice&password=s%26p")

	username, ok := parseReply(body, FieldUsername, "")
	require.True(t, ok)
	assert.Equal(t, "alice", username)

	password, ok := parseReply(body, FieldPassword, "")
	require.True(t, ok)
	assert.Equal(t, "s&p", password)
}

func TestParseReplyXML(t *testing.T) {
	body := []byte(`<?xml version="1.0"?><config-auth><username>bob</username><password>s&amp;p</password></config-auth>`)

	username, ok := parseReply(body, FieldUsername, "")
	require.True(t, ok)
	assert.Equal(t, "bob", username)

	password, ok := parseReply(body, FieldPassword, "")
	require.True(t, ok)
	assert.Equal(t, "s&p", password)
}

func TestParseReplyXMLUsesDistinctFieldName(t *testing.T) {
	body := []byte(`<?xml version="1.0"?><config-auth><group-select>eng</group-select></config-auth>`)

	v, ok := parseReply(body, FieldGroupList, FieldGroupListXML)
	require.True(t, ok)
	assert.Equal(t, "eng", v)
}

func TestParseReplyMissingField(t *testing.T) {
	_, ok := parseReply([]byte("password=x"), FieldUsername, "")
	assert.False(t, ok)
}

func TestParseReplyEmptyValueFails(t *testing.T) {
	_, ok := parseReply([]byte("username=&password=x"), FieldUsername, "")
	assert.False(t, ok)
}

func TestParseReplyXMLIsLenientAboutMalformedDocuments(t *testing.T) {
	// Not well-formed XML (unclosed config-auth, stray text) but still
	// contains the delimiters the matcher looks for (spec.md §9).
	body := []byte(`<?xml broken <username>carol</username> trailing garbage`)

	v, ok := parseReply(body, FieldUsername, "")
	require.True(t, ok)
	assert.Equal(t, "carol", v)
}

func TestIsXMLBodyDetectsAnywhereInBody(t *testing.T) {
	assert.True(t, isXMLBody([]byte("junk <?xml stuff")))
	assert.False(t, isXMLBody([]byte("username=a&password=b")))
}
