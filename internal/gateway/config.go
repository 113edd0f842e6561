// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package gateway is the ambient accept-loop and HTTP-framing layer: it
// owns the pieces spec.md §1 places out of scope (TLS listener setup,
// HTTP request parsing, cookie extraction) and wires each accepted
// connection into a pkg/workerauth.Session.
package gateway

import (
	"gwvpn.io/gateway/pkg/workerauth"
)

// Config is the gateway's listener-level configuration, using the
// teacher's help/default struct-tag convention. No code reads the tags;
// cmd/gwworker's cobra flags restate the same values by hand.
type Config struct {
	Address string `help:"address to listen for TLS client connections on" default:":443"`

	ServerCertPath string `help:"path to the gateway's TLS server certificate chain" default:""`
	ServerKeyPath  string `help:"path to the gateway's TLS server private key" default:""`
	ClientCAPath   string `help:"path to a CA bundle used to verify client certificates, when certificate auth is enabled" default:""`

	SecModAddress string `help:"unix-domain socket address of the security module" default:"/var/run/ocserv-secmod.socket"`
	CmdSocketPath string `help:"unix-domain socket address the supervisor listens on for worker command connections" default:"/var/run/ocserv-main.socket"`

	Worker workerauth.Config
}
