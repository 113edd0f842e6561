// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

package ipc

import "github.com/gogo/protobuf/proto"

// Transport is the raw framed-message-plus-descriptor-passing primitive
// that component D's codec rides on. It is deliberately an external
// collaborator (spec.md §1): the core auth state machine in
// pkg/workerauth only ever talks to a Transport, never to a raw socket.
// A concrete Unix-domain-socket implementation lives in
// pkg/ipctransport; tests use an in-memory fake.
type Transport interface {
	// Send frames and writes msg. fd is passed alongside the frame when
	// non-negative (used only by the cookie-redemption OK reply, §4.7).
	Send(msg proto.Message, fd int) error

	// Recv reads and decodes the next frame, along with any descriptor
	// passed with it (-1 if none).
	Recv() (msg proto.Message, fd int, err error)

	// Close releases the underlying connection. Every exit path,
	// including error paths, must call this exactly once (spec.md §5).
	Close() error
}
