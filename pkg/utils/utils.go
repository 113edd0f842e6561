// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package utils holds small generic helpers shared across the gateway.
package utils

import (
	"github.com/zeebo/errs"
)

// CombineErrors combines multiple errors into one, discarding nils.
// Used on cleanup paths where several resources (a transient IPC socket,
// a cork buffer, a passed tunnel descriptor) must each be closed even if
// an earlier one already failed.
func CombineErrors(errlist ...error) error {
	var group errs.Group
	group.Add(errlist...)
	return group.Err()
}

// BoundedCopy copies src into a string truncated to max bytes, the Go
// analogue of the original's fixed `char buf[N]` plus `snprintf` pattern
// used throughout the worker session (username, groupname, cert_username).
func BoundedCopy(src string, max int) string {
	if len(src) <= max {
		return src
	}
	return src[:max]
}
