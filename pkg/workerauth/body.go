// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package workerauth

import (
	"bytes"
	"html"
	"net/url"
)

// Field names recognized in both wire shapes (spec.md §6).
const (
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldGroupList    = "group%5flist"
	FieldGroupListXML = "group-select"
)

// isXMLBody is component A's body-shape detector (spec.md §4.1 step 1):
// any occurrence of "<?xml" anywhere in the body routes to XML parsing,
// intentionally not requiring it at offset zero so a leading BOM or
// whitespace doesn't flip the client into form mode.
func isXMLBody(body []byte) bool {
	return bytes.Contains(body, []byte("<?xml"))
}

// parseReply is component A: a deliberately lenient substring matcher,
// not a real XML parser (spec.md §9), grounded directly on worker-auth.c's
// parse_reply. field/xmlField name the same logical value under its two
// wire spellings; xmlField may be empty to mean "same as field".
func parseReply(body []byte, field, xmlField string) (string, bool) {
	if isXMLBody(body) {
		f := field
		if xmlField != "" {
			f = xmlField
		}
		return parseXMLField(body, f)
	}
	return parseFormField(body, field)
}

// parseXMLField locates "<field>value</field>" by substring search only;
// malformed XML that happens to contain the delimiters is accepted, per
// spec.md §9's explicit lenience requirement.
func parseXMLField(body []byte, field string) (string, bool) {
	open := []byte("<" + field + ">")
	closeTag := []byte("</" + field + ">")

	start := bytes.Index(body, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := bytes.Index(body[start:], closeTag)
	if end < 0 {
		return "", false
	}
	if end == 0 {
		return "", false
	}

	return unescapeOrFail(html.UnescapeString(string(body[start : start+end])))
}

// parseFormField locates "field=value" up to the next '&' or end of body.
func parseFormField(body []byte, field string) (string, bool) {
	prefix := []byte(field + "=")

	idx := bytes.Index(body, prefix)
	if idx < 0 {
		return "", false
	}
	start := idx + len(prefix)

	rest := body[start:]
	end := bytes.IndexByte(rest, '&')
	if end < 0 {
		end = len(rest)
	}
	if end == 0 {
		return "", false
	}

	decoded, err := url.QueryUnescape(string(rest[:end]))
	if err != nil {
		return "", false
	}
	return unescapeOrFail(decoded)
}

func unescapeOrFail(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	return value, true
}
